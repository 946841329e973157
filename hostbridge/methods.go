package hostbridge

import (
	"encoding/json"
	"strings"

	"sandsheet/workbook"
)

// wireRange is the JSON shape of a Range on the wire.
type wireRange struct {
	SheetID  string `json:"sheet_id"`
	StartRow uint32 `json:"start_row"`
	StartCol uint32 `json:"start_col"`
	EndRow   uint32 `json:"end_row"`
	EndCol   uint32 `json:"end_col"`
}

func (wr wireRange) toRange() workbook.Range {
	return workbook.Range{
		SheetID:  wr.SheetID,
		StartRow: wr.StartRow,
		StartCol: wr.StartCol,
		EndRow:   wr.EndRow,
		EndCol:   wr.EndCol,
	}
}

func fromRange(r workbook.Range) wireRange {
	return wireRange{
		SheetID:  r.SheetID,
		StartRow: r.StartRow,
		StartCol: r.StartCol,
		EndRow:   r.EndRow,
		EndCol:   r.EndCol,
	}
}

func mapDocError(err error) error {
	switch err.(type) {
	case *workbook.InvalidRangeError, *workbook.InvalidAddressError, *workbook.InvalidSheetNameError, *workbook.SheetNotFoundError:
		return invalidParams(err.Error())
	default:
		return hostError(err.Error())
	}
}

func (s *Server) checkBudget(r workbook.Range) error {
	if n := r.CellCount(); n > s.budget {
		tooLarge := &workbook.RangeTooLargeError{Range: r, Cells: n, Limit: s.budget}
		return budgetExceeded(tooLarge.Error())
	}
	return nil
}

func (s *Server) getActiveSheetID(_ json.RawMessage) (any, error) {
	return s.doc.ActiveSheetID(), nil
}

type getSheetIDParams struct {
	Name string `json:"name"`
}

func (s *Server) getSheetID(params json.RawMessage) (any, error) {
	var p getSheetIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed get_sheet_id params: " + err.Error())
	}
	id, ok := s.doc.SheetIDByName(p.Name)
	if !ok {
		return nil, nil
	}
	return id, nil
}

type createSheetParams struct {
	Name  string `json:"name"`
	Index *int   `json:"index,omitempty"`
}

func (s *Server) createSheet(params json.RawMessage) (any, error) {
	var p createSheetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed create_sheet params: " + err.Error())
	}
	id, err := s.doc.CreateSheet(p.Name, p.Index)
	if err != nil {
		return nil, mapDocError(err)
	}
	return id, nil
}

type renameSheetParams struct {
	SheetID string `json:"sheet_id"`
	Name    string `json:"name"`
}

func (s *Server) renameSheet(params json.RawMessage) (any, error) {
	var p renameSheetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed rename_sheet params: " + err.Error())
	}
	if err := s.doc.RenameSheet(p.SheetID, p.Name); err != nil {
		return nil, mapDocError(err)
	}
	return nil, nil
}

type getSheetNameParams struct {
	SheetID string `json:"sheet_id"`
}

func (s *Server) getSheetName(params json.RawMessage) (any, error) {
	var p getSheetNameParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed get_sheet_name params: " + err.Error())
	}
	name, err := s.doc.SheetName(p.SheetID)
	if err != nil {
		return nil, mapDocError(err)
	}
	return name, nil
}

func (s *Server) getSelection(_ json.RawMessage) (any, error) {
	return fromRange(s.doc.Selection()), nil
}

type setSelectionParams struct {
	Selection wireRange `json:"selection"`
}

func (s *Server) setSelection(params json.RawMessage) (any, error) {
	var p setSelectionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed set_selection params: " + err.Error())
	}
	if err := s.doc.SetSelection(p.Selection.toRange()); err != nil {
		return nil, mapDocError(err)
	}
	return nil, nil
}

type rangeOnlyParams struct {
	Range wireRange `json:"range"`
}

func (s *Server) getRangeValues(params json.RawMessage) (any, error) {
	var p rangeOnlyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed get_range_values params: " + err.Error())
	}
	r := p.Range.toRange()
	if err := s.checkBudget(r); err != nil {
		return nil, err
	}
	values, err := s.doc.RangeValues(r)
	if err != nil {
		return nil, mapDocError(err)
	}
	return values, nil
}

type setCellValueParams struct {
	Range wireRange `json:"range"`
	Value any       `json:"value"`
}

func (s *Server) setCellValue(params json.RawMessage) (any, error) {
	var p setCellValueParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed set_cell_value params: " + err.Error())
	}
	r := p.Range.toRange()
	if !r.IsSingleCell() {
		return nil, invalidParams("set_cell_value requires a 1x1 range")
	}
	if err := s.doc.SetCellValue(r, p.Value); err != nil {
		return nil, mapDocError(err)
	}
	return nil, nil
}

func (s *Server) getCellFormula(params json.RawMessage) (any, error) {
	var p rangeOnlyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed get_cell_formula params: " + err.Error())
	}
	r := p.Range.toRange()
	if !r.IsSingleCell() {
		return nil, invalidParams("get_cell_formula requires a 1x1 range")
	}
	formula, err := s.doc.CellFormula(r)
	if err != nil {
		return nil, mapDocError(err)
	}
	if formula == nil {
		return nil, nil
	}
	return *formula, nil
}

type setCellFormulaParams struct {
	Range   wireRange `json:"range"`
	Formula string    `json:"formula"`
}

func (s *Server) setCellFormula(params json.RawMessage) (any, error) {
	var p setCellFormulaParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed set_cell_formula params: " + err.Error())
	}
	r := p.Range.toRange()
	if !r.IsSingleCell() {
		return nil, invalidParams("set_cell_formula requires a 1x1 range")
	}
	if !strings.HasPrefix(strings.TrimSpace(p.Formula), "=") {
		return nil, invalidParams("formula must start with '='")
	}
	if err := s.doc.SetCellFormula(r, p.Formula); err != nil {
		return nil, mapDocError(err)
	}
	return nil, nil
}

type setRangeValuesParams struct {
	Range  wireRange `json:"range"`
	Values any       `json:"values"`
}

func (s *Server) setRangeValues(params json.RawMessage) (any, error) {
	var p setRangeValuesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed set_range_values params: " + err.Error())
	}
	r := p.Range.toRange()
	if _, isMatrix := p.Values.([]any); !isMatrix {
		if err := s.checkBudget(r); err != nil {
			return nil, err
		}
	}
	values := normalizeMatrix(p.Values)
	if err := s.doc.SetRangeValues(r, values); err != nil {
		return nil, mapDocError(err)
	}
	return nil, nil
}

// normalizeMatrix converts a JSON-decoded []any-of-[]any into the
// [][]any shape workbook.Document.SetRangeValues expects; any other shape
// (scalar) passes through unchanged.
func normalizeMatrix(values any) any {
	rows, ok := values.([]any)
	if !ok {
		return values
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells, ok := row.([]any)
		if !ok {
			return values // not actually a matrix; let the document reject it
		}
		out[i] = cells
	}
	return out
}

func (s *Server) clearRange(params json.RawMessage) (any, error) {
	var p rangeOnlyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed clear_range params: " + err.Error())
	}
	if err := s.doc.ClearRange(p.Range.toRange()); err != nil {
		return nil, mapDocError(err)
	}
	return nil, nil
}

func (s *Server) getRangeFormat(params json.RawMessage) (any, error) {
	var p rangeOnlyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed get_range_format params: " + err.Error())
	}
	r := p.Range.toRange()
	if !r.IsSingleCell() {
		return nil, invalidParams("get_range_format requires a 1x1 range")
	}
	format, err := s.doc.RangeFormat(r)
	if err != nil {
		return nil, mapDocError(err)
	}
	return format, nil
}

type setRangeFormatParams struct {
	Range  wireRange       `json:"range"`
	Format workbook.Format `json:"format"`
}

func (s *Server) setRangeFormat(params json.RawMessage) (any, error) {
	var p setRangeFormatParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("malformed set_range_format params: " + err.Error())
	}
	if err := s.doc.SetRangeFormat(p.Range.toRange(), p.Format); err != nil {
		return nil, mapDocError(err)
	}
	return nil, nil
}
