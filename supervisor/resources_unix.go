//go:build unix

package supervisor

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"sandsheet/policy"
)

// applyResourceLimits puts the child in a new process group. The rlimits
// are set separately by tightenRlimits, which Execute calls once the child
// has started: it sets RLIMIT_CORE, RLIMIT_AS and RLIMIT_CPU via
// prlimit(2). Setting the limits after Start rather than between fork and
// exec leaves a brief window where the child could observe its parent's
// limits.
func applyResourceLimits(cmd *exec.Cmd, pol policy.Policy) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func tightenRlimits(pid int, pol policy.Policy) error {
	zero := unix.Rlimit{Cur: 0, Max: 0}
	if err := unix.Prlimit(pid, unix.RLIMIT_CORE, &zero, nil); err != nil {
		return err
	}
	if pol.MaxMemoryBytes() > 0 {
		limit := unix.Rlimit{Cur: uint64(pol.MaxMemoryBytes()), Max: uint64(pol.MaxMemoryBytes())}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &limit, nil); err != nil {
			return err
		}
	}
	if pol.TimeoutMillis() > 0 {
		cpuSeconds := uint64((pol.TimeoutMillis()+999)/1000) + 1
		limit := unix.Rlimit{Cur: cpuSeconds, Max: cpuSeconds}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &limit, nil); err != nil {
			return err
		}
	}
	return nil
}

// isMemoryExceeded reports whether waitErr reflects the child being killed
// by the kernel for exceeding its RLIMIT_AS/RLIMIT_CPU allowance: the
// process is terminated by SIGKILL, SIGSEGV or SIGXCPU rather than exiting
// with a Python-level traceback.
func isMemoryExceeded(waitErr error) bool {
	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	if !status.Signaled() {
		return false
	}
	switch status.Signal() {
	case syscall.SIGKILL, syscall.SIGSEGV, syscall.SIGXCPU:
		return true
	default:
		return false
	}
}
