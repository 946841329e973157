package workbook

import "testing"

func singleCell(sheetID string, row, col uint32) Range {
	return Range{SheetID: sheetID, StartRow: row, StartCol: col, EndRow: row, EndCol: col}
}

func TestSetCellValueAndFormula(t *testing.T) {
	w := NewInMemory()
	sheet := w.ActiveSheetID()

	if err := w.SetCellValue(singleCell(sheet, 0, 0), float64(42)); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if err := w.SetCellFormula(singleCell(sheet, 1, 0), "=A1*2"); err != nil {
		t.Fatalf("SetCellFormula: %v", err)
	}

	vals, err := w.RangeValues(singleCell(sheet, 0, 0))
	if err != nil {
		t.Fatalf("RangeValues: %v", err)
	}
	if vals[0][0] != float64(42) {
		t.Fatalf("expected A1 == 42, got %v", vals[0][0])
	}

	formula, err := w.CellFormula(singleCell(sheet, 1, 0))
	if err != nil {
		t.Fatalf("CellFormula: %v", err)
	}
	if formula == nil || *formula != "=A1*2" {
		t.Fatalf("expected A2 formula == '=A1*2', got %v", formula)
	}
}

func TestSetCellValueStringFormulaDetection(t *testing.T) {
	w := NewInMemory()
	sheet := w.ActiveSheetID()

	if err := w.SetCellValue(singleCell(sheet, 0, 0), "=1+1"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	formula, err := w.CellFormula(singleCell(sheet, 0, 0))
	if err != nil {
		t.Fatalf("CellFormula: %v", err)
	}
	if formula == nil || *formula != "=1+1" {
		t.Fatalf("expected formula detection, got %v", formula)
	}

	if err := w.SetCellValue(singleCell(sheet, 0, 1), "'=not-a-formula"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	formula2, err := w.CellFormula(singleCell(sheet, 0, 1))
	if err != nil {
		t.Fatalf("CellFormula: %v", err)
	}
	if formula2 != nil {
		t.Fatalf("expected escaped apostrophe to suppress formula detection, got %v", formula2)
	}
	vals, err := w.RangeValues(singleCell(sheet, 0, 1))
	if err != nil {
		t.Fatalf("RangeValues: %v", err)
	}
	if vals[0][0] != "=not-a-formula" {
		t.Fatalf("expected leading apostrophe stripped, got %v", vals[0][0])
	}
}

func TestSetCellValueRejectsMultiCellRange(t *testing.T) {
	w := NewInMemory()
	sheet := w.ActiveSheetID()
	r := Range{SheetID: sheet, StartRow: 0, StartCol: 0, EndRow: 1, EndCol: 1}
	if err := w.SetCellValue(r, 1.0); err == nil {
		t.Fatalf("expected error for non-1x1 range")
	}
}

func TestSpillMatrixIntoSingleCell(t *testing.T) {
	w := NewInMemory()
	sheet := w.ActiveSheetID()
	matrix := [][]any{{1.0, 2.0}, {3.0, 4.0}}
	if err := w.SetRangeValues(singleCell(sheet, 0, 0), matrix); err != nil {
		t.Fatalf("SetRangeValues: %v", err)
	}
	got, err := w.RangeValues(Range{SheetID: sheet, StartRow: 0, StartCol: 0, EndRow: 1, EndCol: 1})
	if err != nil {
		t.Fatalf("RangeValues: %v", err)
	}
	want := [][]any{{1.0, 2.0}, {3.0, 4.0}}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("spill mismatch at (%d,%d): got %v want %v", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestClearRange(t *testing.T) {
	w := NewInMemory()
	sheet := w.ActiveSheetID()
	if err := w.SetCellValue(singleCell(sheet, 0, 0), "hello"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if err := w.ClearRange(singleCell(sheet, 0, 0)); err != nil {
		t.Fatalf("ClearRange: %v", err)
	}
	vals, err := w.RangeValues(singleCell(sheet, 0, 0))
	if err != nil {
		t.Fatalf("RangeValues: %v", err)
	}
	if vals[0][0] != nil {
		t.Fatalf("expected cleared cell to be nil, got %v", vals[0][0])
	}
}

func TestCreateSheetNameValidation(t *testing.T) {
	w := NewInMemory()
	cases := []string{"", "   ", "A:B", "Sheet/1", "'leading", "trailing'", "this-name-is-definitely-more-than-thirty-one-chars"}
	for _, name := range cases {
		if _, err := w.CreateSheet(name, nil); err == nil {
			t.Fatalf("expected CreateSheet(%q) to fail validation", name)
		}
	}
}

func TestCreateSheetUniquenessIsCaseInsensitiveNFKC(t *testing.T) {
	w := NewInMemory()
	if _, err := w.CreateSheet("Budget", nil); err != nil {
		t.Fatalf("CreateSheet: %v", err)
	}
	if _, err := w.CreateSheet("budget", nil); err == nil {
		t.Fatalf("expected case-insensitive collision to be rejected")
	}
	if _, err := w.CreateSheet("Ｂｕｄｇｅｔ", nil); err == nil {
		t.Fatalf("expected fullwidth NFKC-equivalent collision to be rejected")
	}
}

func TestCreateSheetIndexing(t *testing.T) {
	w := NewInMemory() // Sheet1 at index 0

	idFirst, err := w.CreateSheet("First", intPtr(0))
	if err != nil {
		t.Fatalf("CreateSheet: %v", err)
	}
	idLast, err := w.CreateSheet("Last", intPtr(100))
	if err != nil {
		t.Fatalf("CreateSheet: %v", err)
	}

	names := w.sheetNamesForTest()
	if names[0] != "First" {
		t.Fatalf("expected 'First' prepended at index 0, got order %v", names)
	}
	if names[len(names)-1] != "Last" {
		t.Fatalf("expected 'Last' appended at end, got order %v", names)
	}
	if idFirst == idLast {
		t.Fatalf("expected distinct sheet ids")
	}
}

func intPtr(i int) *int { return &i }

func (w *InMemory) sheetNamesForTest() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.sheets))
	for i, s := range w.sheets {
		out[i] = s.name
	}
	return out
}

func TestSheetIDByNameBackCompatAcceptsID(t *testing.T) {
	w := NewInMemory()
	id := w.ActiveSheetID()
	gotID, ok := w.SheetIDByName(id)
	if !ok || gotID != id {
		t.Fatalf("expected SheetIDByName to accept an existing id as a pass-through")
	}
}
