package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"sandsheet/supervisor"
)

// requireDSN skips the test unless a real Postgres DSN is supplied: these
// are integration tests against a live database, not unit tests.
func requireDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SANDSHEET_LEDGER_TEST_DSN")
	if dsn == "" {
		t.Skip("SANDSHEET_LEDGER_TEST_DSN not set")
	}
	return dsn
}

func TestWriteAndRecentFailures(t *testing.T) {
	dsn := requireDSN(t)
	ctx := context.Background()

	l, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	now := time.Now()
	l.Write(ctx, Record{
		Script:         "open('/etc/passwd')",
		Filesystem:     "none",
		Network:        "none",
		ExitKind:       supervisor.ExitAbnormal,
		ExitCode:       1,
		FailureMessage: "PermissionError: Filesystem access is not permitted",
		StartedAt:      now,
		FinishedAt:     now.Add(10 * time.Millisecond),
	})

	failures, err := l.RecentFailures(ctx, 10)
	if err != nil {
		t.Fatalf("RecentFailures: %v", err)
	}
	found := false
	for _, f := range failures {
		if f.Script == "open('/etc/passwd')" && f.ExitKind == supervisor.ExitAbnormal {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the written record to appear in RecentFailures, got %+v", failures)
	}
}
