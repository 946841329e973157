package policy

import "testing"

func TestResolveDefaultsDenyByDefault(t *testing.T) {
	p := Resolve(Config{})
	if p.Filesystem() != FilesystemNone {
		t.Fatalf("expected default filesystem=none, got %v", p.Filesystem())
	}
	if p.Network() != NetworkNone {
		t.Fatalf("expected default network=none, got %v", p.Network())
	}
	if p.ProcessExec() != ProcessExecNone {
		t.Fatalf("expected process_exec always none, got %v", p.ProcessExec())
	}
}

func TestFilesystemNoneDeniesReadAndWrite(t *testing.T) {
	p := Resolve(Config{Filesystem: FilesystemNone})
	if d := p.CheckFilesystemRead("/etc/passwd"); d.Allowed {
		t.Fatalf("expected read to be denied")
	} else if d.DenialMessage() != MsgFilesystemRead {
		t.Fatalf("unexpected message: %q", d.DenialMessage())
	}
	if d := p.CheckFilesystemWrite("/tmp/x"); d.Allowed {
		t.Fatalf("expected write to be denied")
	} else if d.DenialMessage() != MsgFilesystemWrite {
		t.Fatalf("unexpected message: %q", d.DenialMessage())
	}
}

func TestFilesystemReadAllowsReadNotWrite(t *testing.T) {
	p := Resolve(Config{Filesystem: FilesystemRead})
	if d := p.CheckFilesystemRead("/etc/passwd"); !d.Allowed {
		t.Fatalf("expected read to be allowed")
	}
	if d := p.CheckFilesystemWrite("/tmp/x"); d.Allowed {
		t.Fatalf("expected write to still be denied under read-only policy")
	}
}

func TestFilesystemReadWriteAllowsBoth(t *testing.T) {
	p := Resolve(Config{Filesystem: FilesystemReadWrite})
	if d := p.CheckFilesystemRead("/etc/passwd"); !d.Allowed {
		t.Fatalf("expected read to be allowed")
	}
	if d := p.CheckFilesystemWrite("/tmp/x"); !d.Allowed {
		t.Fatalf("expected write to be allowed")
	}
}

func TestNetworkAllowlistLiteralCaseInsensitiveMatch(t *testing.T) {
	p := Resolve(Config{Network: NetworkAllowlist, NetworkAllowlist: []string{"Example.COM", "127.0.0.1"}})
	if d := p.CheckNetwork("example.com"); !d.Allowed {
		t.Fatalf("expected example.com to be allowed (case-insensitive)")
	}
	if d := p.CheckNetwork("127.0.0.1"); !d.Allowed {
		t.Fatalf("expected 127.0.0.1 to be allowed")
	}
	if d := p.CheckNetwork("127.0.0.2"); d.Allowed {
		t.Fatalf("expected 127.0.0.2 to be denied")
	} else if d.DenialMessage() != "Network access to '127.0.0.2' is not permitted" {
		t.Fatalf("unexpected denial message: %q", d.DenialMessage())
	}
}

func TestNetworkNoneDeniesEverything(t *testing.T) {
	p := Resolve(Config{Network: NetworkNone})
	if d := p.CheckNetwork("example.com"); d.Allowed {
		t.Fatalf("expected network=none to deny all hosts")
	}
}

func TestNetworkUnrestrictedAllowsAnyHost(t *testing.T) {
	p := Resolve(Config{Network: NetworkUnrestricted})
	if d := p.CheckNetwork("anything.invalid"); !d.Allowed {
		t.Fatalf("expected unrestricted network to allow any host")
	}
}

func TestProcessExecAlwaysDenied(t *testing.T) {
	p := Resolve(Config{})
	d := p.CheckProcessExec("subprocess.Popen")
	if d.Allowed {
		t.Fatalf("process exec must never be allowed in this specification")
	}
	if d.DenialMessage() != MsgProcessExecDenied {
		t.Fatalf("unexpected message: %q", d.DenialMessage())
	}
}

func TestPolicyIsValueTypeNoMutatorsLeak(t *testing.T) {
	cfg := Config{Network: NetworkAllowlist, NetworkAllowlist: []string{"example.com"}}
	p := Resolve(cfg)
	cfg.NetworkAllowlist[0] = "mutated.example"
	if !p.AllowsHost("example.com") {
		t.Fatalf("mutating the source config slice must not affect an already-resolved Policy")
	}
}
