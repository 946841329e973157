// Package policy resolves the three capability enums plus a network
// allowlist into an immutable Policy, and provides the decision function
// every sandbox hook consults at call time.
package policy

import "strings"

// FilesystemMode controls the sandbox's file I/O surface.
type FilesystemMode string

const (
	FilesystemNone      FilesystemMode = "none"
	FilesystemRead      FilesystemMode = "read"
	FilesystemReadWrite FilesystemMode = "read_write"
)

// NetworkMode controls the sandbox's network surface.
type NetworkMode string

const (
	NetworkNone         NetworkMode = "none"
	NetworkAllowlist    NetworkMode = "allowlist"
	NetworkUnrestricted NetworkMode = "unrestricted"
)

// ProcessExecMode controls process-spawning permission. Only "none" is
// exposed to callers in this specification.
type ProcessExecMode string

const (
	ProcessExecNone ProcessExecMode = "none"
)

// Config is the request-time, mutable configuration a caller builds before
// asking the engine to resolve an immutable Policy.
type Config struct {
	Filesystem       FilesystemMode
	Network          NetworkMode
	NetworkAllowlist []string
	TimeoutMillis    int64
	MaxMemoryBytes   int64
}

// Policy is immutable once constructed and must be treated as read-only for
// the lifetime of an execution. It carries no exported mutator methods.
type Policy struct {
	filesystem       FilesystemMode
	network          NetworkMode
	processExec      ProcessExecMode
	networkAllowlist map[string]struct{} // lower-cased, literal host match only
	timeoutMillis    int64
	maxMemoryBytes   int64
}

// Resolve builds an immutable Policy from a Config, defaulting unset enums
// to their deny-by-default value.
func Resolve(cfg Config) Policy {
	fs := cfg.Filesystem
	if fs == "" {
		fs = FilesystemNone
	}
	net := cfg.Network
	if net == "" {
		net = NetworkNone
	}
	allow := make(map[string]struct{}, len(cfg.NetworkAllowlist))
	for _, h := range cfg.NetworkAllowlist {
		allow[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return Policy{
		filesystem:       fs,
		network:          net,
		processExec:      ProcessExecNone,
		networkAllowlist: allow,
		timeoutMillis:    cfg.TimeoutMillis,
		maxMemoryBytes:   cfg.MaxMemoryBytes,
	}
}

func (p Policy) Filesystem() FilesystemMode   { return p.filesystem }
func (p Policy) Network() NetworkMode         { return p.network }
func (p Policy) ProcessExec() ProcessExecMode { return p.processExec }
func (p Policy) TimeoutMillis() int64         { return p.timeoutMillis }
func (p Policy) MaxMemoryBytes() int64        { return p.maxMemoryBytes }

// NetworkAllowlistSlice returns the allowlisted hosts in unspecified order,
// for callers (such as the sandbox bootstrap renderer) that need a plain
// slice rather than the internal set representation.
func (p Policy) NetworkAllowlistSlice() []string {
	out := make([]string, 0, len(p.networkAllowlist))
	for h := range p.networkAllowlist {
		out = append(out, h)
	}
	return out
}

// AllowsHost reports whether host is permitted under the current network
// mode, matching only the literal host string (no DNS resolution is
// consulted — this neutralizes fake-resolver attacks).
func (p Policy) AllowsHost(host string) bool {
	switch p.network {
	case NetworkUnrestricted:
		return true
	case NetworkAllowlist:
		_, ok := p.networkAllowlist[strings.ToLower(strings.TrimSpace(host))]
		return ok
	default:
		return false
	}
}

// Op identifies the category of primitive a Decision is being requested
// for. It exists purely to make Deny reasons legible; the policy checks
// themselves are specific (CheckFilesystem*/CheckNetwork/CheckProcessExec).
type Op string

const (
	OpFilesystemRead  Op = "filesystem_read"
	OpFilesystemWrite Op = "filesystem_write"
	OpNetwork         Op = "network"
	OpProcessExec     Op = "process_exec"
)

// Decision is the result of a policy check: either Allow or Deny{reason}.
type Decision struct {
	Allowed bool
	Op      Op
	Detail  string // the literal host/path, for the denial message
}

// Uniform denial messages (spec.md §4.6, §8).
const (
	MsgFilesystemRead    = "Filesystem access is not permitted"
	MsgFilesystemWrite   = "Filesystem write access is not permitted"
	MsgProcessExecDenied = "Process execution is not permitted"
)

func allow(op Op) Decision          { return Decision{Allowed: true, Op: op} }
func deny(op Op, detail string) Decision {
	return Decision{Allowed: false, Op: op, Detail: detail}
}

// CheckFilesystemRead decides whether a read-only filesystem primitive
// (open for read, scandir, lstat) is permitted.
func (p Policy) CheckFilesystemRead(path string) Decision {
	if p.filesystem == FilesystemNone {
		return deny(OpFilesystemRead, path)
	}
	return allow(OpFilesystemRead)
}

// CheckFilesystemWrite decides whether a mutating filesystem primitive
// (write, truncate, remove, rename, chmod, mkdir, rmdir) is permitted.
func (p Policy) CheckFilesystemWrite(path string) Decision {
	if p.filesystem != FilesystemReadWrite {
		return deny(OpFilesystemWrite, path)
	}
	return allow(OpFilesystemWrite)
}

// CheckNetwork decides whether connecting/sending to host is permitted.
// host must be the literal argument passed by user code — never a
// DNS-resolved address.
func (p Policy) CheckNetwork(host string) Decision {
	if p.AllowsHost(host) {
		return allow(OpNetwork)
	}
	return deny(OpNetwork, host)
}

// CheckProcessExec always denies: process_exec is always "none" in this
// specification.
func (p Policy) CheckProcessExec(detail string) Decision {
	return deny(OpProcessExec, detail)
}

// DenialMessage renders the uniform, literal-detail-embedding message for a
// denied Decision, matching the phrasing spec.md §8 requires verbatim.
func (d Decision) DenialMessage() string {
	if d.Allowed {
		return ""
	}
	switch d.Op {
	case OpFilesystemRead:
		return MsgFilesystemRead
	case OpFilesystemWrite:
		return MsgFilesystemWrite
	case OpNetwork:
		return "Network access to '" + d.Detail + "' is not permitted"
	case OpProcessExec:
		return MsgProcessExecDenied
	default:
		return "operation is not permitted"
	}
}
