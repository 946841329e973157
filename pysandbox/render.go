// Package pysandbox holds the embedded Python bootstrap and the formula
// client-proxy module source, and renders a policy.Policy into the single
// program text a sandboxed child interpreter reads from stdin.
package pysandbox

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"sandsheet/policy"
)

//go:embed assets/installer.py
var installerSource string

//go:embed assets/proxy.py
var proxySource string

//go:embed assets/entrypoint.py
var entrypointTemplate string

// wirePolicy is the JSON shape installer.py reads as _POLICY.
type wirePolicy struct {
	Filesystem       string   `json:"filesystem"`
	Network          string   `json:"network"`
	NetworkAllowlist []string `json:"network_allowlist"`
}

func policyJSON(p policy.Policy) ([]byte, error) {
	allowlist := p.NetworkAllowlistSlice()
	if allowlist == nil {
		allowlist = []string{}
	}
	return json.Marshal(wirePolicy{
		Filesystem:       string(p.Filesystem()),
		Network:          string(p.Network()),
		NetworkAllowlist: allowlist,
	})
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

// Render assembles the full program text a child interpreter executes: the
// entrypoint template with the policy, the installer source, the formula
// proxy source, and the user's script embedded as base64 payloads. The
// result is fed to `python3 -` on the child's stdin; fds 3 and 4 must be
// the RPC request/response pipes the supervisor opened before start.
func Render(p policy.Policy, userScript string) (string, error) {
	pj, err := policyJSON(p)
	if err != nil {
		return "", fmt.Errorf("pysandbox: marshal policy: %w", err)
	}

	out := entrypointTemplate
	replacements := map[string]string{
		"__SANDBOX_POLICY_JSON__":      b64(string(pj)),
		"__SANDBOX_INSTALLER_SOURCE__": b64(installerSource),
		"__SANDBOX_PROXY_SOURCE__":     b64(proxySource),
		"__SANDBOX_USER_SCRIPT__":      b64(userScript),
	}
	for token, value := range replacements {
		out = strings.Replace(out, token, value, 1)
	}
	return out, nil
}
