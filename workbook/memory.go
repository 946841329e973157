package workbook

import (
	"strconv"
	"strings"
	"sync"
)

type memCell struct {
	value   any
	formula *string
	format  Format
}

type memSheet struct {
	id    string
	name  string
	cells map[[2]uint32]*memCell
}

// InMemory is the reference workbook implementation used by tests and by
// the CLI's standalone `run` mode. It fulfills the Document contract
// without persistence, matching the teacher's in-process Sheet (no
// evaluation of formulas is performed here — that responsibility belongs to
// the document controller, which is out of scope for this bridge).
type InMemory struct {
	mu        sync.RWMutex
	sheets    []*memSheet
	byID      map[string]*memSheet
	activeID  string
	selection Range
	nextID    int
}

// NewInMemory returns a workbook with a single default sheet named "Sheet1".
func NewInMemory() *InMemory {
	w := &InMemory{byID: make(map[string]*memSheet)}
	id := w.allocID()
	s := &memSheet{id: id, name: "Sheet1", cells: make(map[[2]uint32]*memCell)}
	w.sheets = append(w.sheets, s)
	w.byID[id] = s
	w.activeID = id
	return w
}

func (w *InMemory) allocID() string {
	w.nextID++
	return "sheet-" + strconv.Itoa(w.nextID)
}

func (w *InMemory) ActiveSheetID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.activeID
}

func (w *InMemory) SheetIDByName(name string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	// Back-compat: if name is itself an existing sheet id, return it.
	if _, ok := w.byID[name]; ok {
		return name, true
	}
	key := normalizedSheetKey(name)
	for _, s := range w.sheets {
		if normalizedSheetKey(s.name) == key {
			return s.id, true
		}
	}
	return "", false
}

func (w *InMemory) CreateSheet(name string, index *int) (string, error) {
	if err := ValidateSheetName(name); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	key := normalizedSheetKey(name)
	for _, s := range w.sheets {
		if normalizedSheetKey(s.name) == key {
			return "", &InvalidSheetNameError{Name: name, Reason: "a sheet with this name already exists"}
		}
	}

	id := w.allocID()
	s := &memSheet{id: id, name: name, cells: make(map[[2]uint32]*memCell)}
	w.byID[id] = s

	pos := len(w.sheets) // default: append
	switch {
	case index == nil:
		for i, existing := range w.sheets {
			if existing.id == w.activeID {
				pos = i + 1
				break
			}
		}
	case *index <= 0:
		pos = 0
	case *index >= len(w.sheets):
		pos = len(w.sheets)
	default:
		pos = *index
	}

	w.sheets = append(w.sheets, nil)
	copy(w.sheets[pos+1:], w.sheets[pos:])
	w.sheets[pos] = s

	return id, nil
}

func (w *InMemory) RenameSheet(sheetID, name string) error {
	if err := ValidateSheetName(name); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.byID[sheetID]
	if !ok {
		return &SheetNotFoundError{SheetID: sheetID}
	}
	key := normalizedSheetKey(name)
	for _, other := range w.sheets {
		if other.id != sheetID && normalizedSheetKey(other.name) == key {
			return &InvalidSheetNameError{Name: name, Reason: "a sheet with this name already exists"}
		}
	}
	s.name = name
	return nil
}

func (w *InMemory) SheetName(sheetID string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.byID[sheetID]
	if !ok {
		return "", &SheetNotFoundError{SheetID: sheetID}
	}
	return s.name, nil
}

func (w *InMemory) Selection() Range {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.selection
}

func (w *InMemory) SetSelection(r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.byID[r.SheetID]; r.SheetID != "" && !ok {
		return &SheetNotFoundError{SheetID: r.SheetID}
	}
	w.selection = r
	return nil
}

func (w *InMemory) sheetLocked(sheetID string) (*memSheet, error) {
	s, ok := w.byID[sheetID]
	if !ok {
		return nil, &SheetNotFoundError{SheetID: sheetID}
	}
	return s, nil
}

func (w *InMemory) RangeValues(r Range) ([][]any, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, err := w.sheetLocked(r.SheetID)
	if err != nil {
		return nil, err
	}
	out := make([][]any, r.Rows())
	for i := range out {
		row := make([]any, r.Cols())
		for j := range row {
			cell := s.cells[[2]uint32{r.StartRow + uint32(i), r.StartCol + uint32(j)}]
			if cell != nil {
				row[j] = cell.value
			}
		}
		out[i] = row
	}
	return out, nil
}

func (w *InMemory) cellLocked(s *memSheet, row, col uint32) *memCell {
	key := [2]uint32{row, col}
	c, ok := s.cells[key]
	if !ok {
		c = &memCell{}
		s.cells[key] = c
	}
	return c
}

// normalizeScalarInput applies spec.md §4.3's single-cell string rules: a
// leading apostrophe escapes formula interpretation and is stripped; a
// string starting (after trimming leading whitespace) with "=" and longer
// than one character is treated as a formula.
func normalizeScalarInput(value any) (stored any, formula *string) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	if strings.HasPrefix(s, "'") {
		return s[1:], nil
	}
	trimmed := strings.TrimLeft(s, " \t")
	if strings.HasPrefix(trimmed, "=") && len(trimmed) > 1 {
		f := trimmed
		return nil, &f
	}
	return s, nil
}

func (w *InMemory) SetCellValue(addr Range, value any) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	if !addr.IsSingleCell() {
		return &InvalidRangeError{Range: addr, Reason: "set_cell_value requires a 1x1 range"}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sheetLocked(addr.SheetID)
	if err != nil {
		return err
	}
	cell := w.cellLocked(s, addr.StartRow, addr.StartCol)
	stored, formula := normalizeScalarInput(value)
	cell.value = stored
	cell.formula = formula
	return nil
}

func (w *InMemory) CellFormula(addr Range) (*string, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	if !addr.IsSingleCell() {
		return nil, &InvalidRangeError{Range: addr, Reason: "get_cell_formula requires a 1x1 range"}
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, err := w.sheetLocked(addr.SheetID)
	if err != nil {
		return nil, err
	}
	cell, ok := s.cells[[2]uint32{addr.StartRow, addr.StartCol}]
	if !ok || cell.formula == nil {
		return nil, nil
	}
	f := *cell.formula
	return &f, nil
}

func (w *InMemory) SetCellFormula(addr Range, formula string) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	if !addr.IsSingleCell() {
		return &InvalidRangeError{Range: addr, Reason: "set_cell_formula requires a 1x1 range"}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sheetLocked(addr.SheetID)
	if err != nil {
		return err
	}
	cell := w.cellLocked(s, addr.StartRow, addr.StartCol)
	f := formula
	cell.formula = &f
	cell.value = nil
	return nil
}

// SetRangeValues accepts either a 2D [][]any matrix or a scalar. A scalar
// written into a multi-cell range fills every cell; a matrix written into a
// 1x1 destination spills to cover the matrix's full shape.
func (w *InMemory) SetRangeValues(r Range, values any) error {
	if err := r.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sheetLocked(r.SheetID)
	if err != nil {
		return err
	}

	matrix, isMatrix := values.([][]any)
	switch {
	case isMatrix && r.IsSingleCell():
		// Spill: expand the effective write range to the matrix's shape.
		for i, row := range matrix {
			for j, v := range row {
				cell := w.cellLocked(s, r.StartRow+uint32(i), r.StartCol+uint32(j))
				stored, formula := normalizeScalarInput(v)
				cell.value, cell.formula = stored, formula
			}
		}
	case isMatrix:
		if len(matrix) != r.Rows() {
			return &InvalidRangeError{Range: r, Reason: "matrix row count does not match range"}
		}
		for i, row := range matrix {
			if len(row) != r.Cols() {
				return &InvalidRangeError{Range: r, Reason: "matrix column count does not match range"}
			}
			for j, v := range row {
				cell := w.cellLocked(s, r.StartRow+uint32(i), r.StartCol+uint32(j))
				stored, formula := normalizeScalarInput(v)
				cell.value, cell.formula = stored, formula
			}
		}
	default:
		for i := 0; i < r.Rows(); i++ {
			for j := 0; j < r.Cols(); j++ {
				cell := w.cellLocked(s, r.StartRow+uint32(i), r.StartCol+uint32(j))
				stored, formula := normalizeScalarInput(values)
				cell.value, cell.formula = stored, formula
			}
		}
	}
	return nil
}

func (w *InMemory) ClearRange(r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sheetLocked(r.SheetID)
	if err != nil {
		return err
	}
	for i := 0; i < r.Rows(); i++ {
		for j := 0; j < r.Cols(); j++ {
			delete(s.cells, [2]uint32{r.StartRow + uint32(i), r.StartCol + uint32(j)})
		}
	}
	return nil
}

func (w *InMemory) RangeFormat(addr Range) (Format, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	if !addr.IsSingleCell() {
		return nil, &InvalidRangeError{Range: addr, Reason: "get_range_format requires a 1x1 range"}
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, err := w.sheetLocked(addr.SheetID)
	if err != nil {
		return nil, err
	}
	cell, ok := s.cells[[2]uint32{addr.StartRow, addr.StartCol}]
	if !ok || cell.format == nil {
		return Format{}, nil
	}
	out := make(Format, len(cell.format))
	for k, v := range cell.format {
		out[k] = v
	}
	return out, nil
}

func (w *InMemory) SetRangeFormat(r Range, format Format) error {
	if err := r.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sheetLocked(r.SheetID)
	if err != nil {
		return err
	}
	for i := 0; i < r.Rows(); i++ {
		for j := 0; j < r.Cols(); j++ {
			cell := w.cellLocked(s, r.StartRow+uint32(i), r.StartCol+uint32(j))
			merged := make(Format, len(cell.format)+len(format))
			for k, v := range cell.format {
				merged[k] = v
			}
			for k, v := range format {
				merged[k] = v
			}
			cell.format = merged
		}
	}
	return nil
}

var _ Document = (*InMemory)(nil)
