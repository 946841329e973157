package supervisor

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"sandsheet/policy"
	"sandsheet/workbook"
)

// requirePython3 skips the test unless a real python3 binary is on PATH.
// These tests exercise the full child-process pipeline end to end; they
// are integration tests, not unit tests, and are gated accordingly.
func requirePython3(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(PythonInterpreter); err != nil {
		t.Skipf("python3 not available: %v", err)
	}
}

func TestExecuteWritesValueThroughBridge(t *testing.T) {
	requirePython3(t)
	doc := workbook.NewInMemory()
	sheet := doc.ActiveSheetID()
	pol := policy.Resolve(policy.Config{Filesystem: policy.FilesystemNone, Network: policy.NetworkNone, TimeoutMillis: 5000})

	s := &Supervisor{}
	script := `
sheet = formula.active_sheet
sheet["A1"] = 42
sheet["A2"] = "=A1*2"
`
	result, err := s.Execute(context.Background(), doc, pol, script)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.ExitKind != ExitNormal {
		t.Fatalf("expected normal exit, got %v (stdout=%q stderr=%q)", result.ExitKind, result.Stdout, result.Stderr)
	}

	values, err := doc.RangeValues(workbook.Range{SheetID: sheet, StartRow: 0, StartCol: 0, EndRow: 0, EndCol: 0})
	if err != nil {
		t.Fatalf("RangeValues: %v", err)
	}
	if values[0][0] != float64(42) {
		t.Fatalf("expected A1 == 42, got %v", values[0][0])
	}

	formula, err := doc.CellFormula(workbook.Range{SheetID: sheet, StartRow: 1, StartCol: 0, EndRow: 1, EndCol: 0})
	if err != nil {
		t.Fatalf("CellFormula: %v", err)
	}
	if formula == nil || *formula != "=A1*2" {
		t.Fatalf("expected A2 formula == \"=A1*2\", got %v", formula)
	}
}

func TestExecuteCapturesStderrAndTracebackOnFailure(t *testing.T) {
	requirePython3(t)
	doc := workbook.NewInMemory()
	pol := policy.Resolve(policy.Config{TimeoutMillis: 5000})

	s := &Supervisor{}
	script := `
print("before boom")
raise Exception("boom")
`
	result, err := s.Execute(context.Background(), doc, pol, script)
	if err == nil {
		t.Fatalf("expected an error for the abnormal exit, got nil")
	}
	if !strings.Contains(err.Error(), "Traceback") {
		t.Fatalf("expected the thrown error to contain a traceback, got %v", err)
	}
	if !strings.Contains(result.Stdout, "before boom") {
		t.Fatalf("expected stdout to contain %q, got %q", "before boom", result.Stdout)
	}
	if result.ExitKind != ExitAbnormal {
		t.Fatalf("expected abnormal exit, got %v", result.ExitKind)
	}
}

func TestExecuteDeniesFilesystemByDefault(t *testing.T) {
	requirePython3(t)
	doc := workbook.NewInMemory()
	pol := policy.Resolve(policy.Config{TimeoutMillis: 5000})

	s := &Supervisor{}
	script := `open("/tmp/should-not-exist-sandsheet-test", "w")`
	result, err := s.Execute(context.Background(), doc, pol, script)
	if err == nil {
		t.Fatalf("expected an error for the denied write's abnormal exit")
	}
	if result.ExitKind != ExitAbnormal {
		t.Fatalf("expected abnormal exit from the denied write, got %v", result.ExitKind)
	}
	if !strings.Contains(result.Stderr, "PermissionError") {
		t.Fatalf("expected PermissionError in captured stderr, got %q", result.Stderr)
	}
}

func TestExecuteTimesOut(t *testing.T) {
	requirePython3(t)
	doc := workbook.NewInMemory()
	pol := policy.Resolve(policy.Config{TimeoutMillis: 200})

	s := &Supervisor{}
	script := `
import time
time.sleep(30)
`
	start := time.Now()
	result, err := s.Execute(context.Background(), doc, pol, script)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.ExitKind != ExitTimeout {
		t.Fatalf("expected timeout exit, got %v", result.ExitKind)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("expected the kill grace period to bound wall time, took %v", elapsed)
	}
}
