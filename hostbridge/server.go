// Package hostbridge implements the host side of the JSON-RPC bridge: it
// receives framed Requests from the sandboxed child over a pipe, dispatches
// them against a workbook.Document, and writes back framed Responses.
package hostbridge

import (
	"encoding/json"
	"io"
	"sync"

	"sandsheet/bridge"
	"sandsheet/workbook"
)

// DefaultCellBudget is the maximum number of cells a single RPC may touch
// (spec.md §4.3).
const DefaultCellBudget = 200_000

// Server dispatches the host API RPC method set against a workbook.Document.
// A Server instance serves exactly one child connection; the RPC service
// loop for that connection is serialized (spec.md §5): each request is
// processed to completion before the next is read.
type Server struct {
	doc    workbook.Document
	budget int

	mu sync.Mutex // serializes Dispatch against the document
}

// New returns a Server dispatching against doc, using DefaultCellBudget
// unless budget > 0.
func New(doc workbook.Document, budget int) *Server {
	if budget <= 0 {
		budget = DefaultCellBudget
	}
	return &Server{doc: doc, budget: budget}
}

// Serve reads framed Requests from r and writes framed Responses to w until
// r is exhausted or returns an error. It returns nil on a clean EOF.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	for {
		req, err := bridge.ReadRequest(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		resp := s.Dispatch(req)
		if err := bridge.WriteResponse(w, resp); err != nil {
			return err
		}
	}
}

// Dispatch services a single Request against the document and returns its
// Response. Safe for the Serve loop's strict FIFO usage; also exported
// directly for tests and for embedding in an in-process transport.
func (s *Server) Dispatch(req bridge.Request) bridge.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	handler, ok := methodTable[req.Method]
	if !ok {
		return bridge.NewErrorResponse(req.ID, bridge.ErrInvalidMethod, "unknown method: "+req.Method)
	}
	result, err := handler(s, req.Params)
	if err != nil {
		if be, ok := err.(*bridgeError); ok {
			return bridge.NewErrorResponse(req.ID, be.code, be.message)
		}
		return bridge.NewErrorResponse(req.ID, bridge.ErrHostError, err.Error())
	}
	resp, err := bridge.NewResultResponse(req.ID, result)
	if err != nil {
		return bridge.NewErrorResponse(req.ID, bridge.ErrHostError, err.Error())
	}
	return resp
}

type bridgeError struct {
	code    string
	message string
}

func (e *bridgeError) Error() string { return e.message }

func invalidParams(msg string) error { return &bridgeError{code: bridge.ErrInvalidParams, message: msg} }
func budgetExceeded(msg string) error {
	return &bridgeError{code: bridge.ErrBudgetExceeded, message: msg}
}
func hostError(msg string) error { return &bridgeError{code: bridge.ErrHostError, message: msg} }

type methodFunc func(s *Server, params json.RawMessage) (any, error)

var methodTable = map[string]methodFunc{
	"get_active_sheet_id": (*Server).getActiveSheetID,
	"get_sheet_id":        (*Server).getSheetID,
	"create_sheet":        (*Server).createSheet,
	"rename_sheet":        (*Server).renameSheet,
	"get_sheet_name":      (*Server).getSheetName,
	"get_selection":       (*Server).getSelection,
	"set_selection":       (*Server).setSelection,
	"get_range_values":    (*Server).getRangeValues,
	"set_cell_value":      (*Server).setCellValue,
	"get_cell_formula":    (*Server).getCellFormula,
	"set_cell_formula":    (*Server).setCellFormula,
	"set_range_values":    (*Server).setRangeValues,
	"clear_range":         (*Server).clearRange,
	"get_range_format":    (*Server).getRangeFormat,
	"set_range_format":    (*Server).setRangeFormat,
}
