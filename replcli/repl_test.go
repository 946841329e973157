package replcli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"sandsheet/policy"
	"sandsheet/runtime"
	"sandsheet/supervisor"
	"sandsheet/workbook"
)

type fakeBackend struct {
	lastScript string
}

func (f *fakeBackend) Execute(ctx context.Context, doc workbook.Document, pol policy.Policy, script string) (supervisor.ExecutionResult, error) {
	f.lastScript = script
	return supervisor.ExecutionResult{ExitKind: supervisor.ExitNormal, Stdout: "ok\n"}, nil
}

func TestStartExecutesBlankTerminatedBlocks(t *testing.T) {
	backend := &fakeBackend{}
	doc := workbook.NewInMemory()
	rt := runtime.New(doc, backend, runtime.Hooks{})

	in := strings.NewReader("formula.active_sheet[\"A1\"] = 1\n\n")
	var out bytes.Buffer

	Start(context.Background(), in, &out, rt, policy.Resolve(policy.Config{}))

	if backend.lastScript != "formula.active_sheet[\"A1\"] = 1" {
		t.Fatalf("unexpected script sent to backend: %q", backend.lastScript)
	}
	if !strings.Contains(out.String(), "ok") || !strings.Contains(out.String(), "[normal]") {
		t.Fatalf("expected output to contain captured stdout and exit kind, got %q", out.String())
	}
}
