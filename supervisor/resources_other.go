//go:build !unix

package supervisor

import (
	"os/exec"

	"sandsheet/policy"
)

func applyResourceLimits(cmd *exec.Cmd, pol policy.Policy) {}

func tightenRlimits(pid int, pol policy.Policy) error { return nil }

func isMemoryExceeded(waitErr error) bool { return false }
