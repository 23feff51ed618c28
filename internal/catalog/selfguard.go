package catalog

import (
	"os"
	"path/filepath"
	"strings"
)

// GuardFinding records an attempt to write to a file JadeGate itself (or a
// host IDE's integration with it) depends on for protection — tampering
// with these could disable the gateway entirely.
type GuardFinding struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
	ArgName  string `json:"arg_name"`
}

type guardPattern struct {
	pattern  string
	category string
	reason   string
}

// protectedPaths is resolved once at package init against $HOME, same as
// the teacher's protected-config list, narrowed to paths a tampering call
// could use to blind or disable JadeGate itself.
var protectedPaths []guardPattern

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}

	templates := []guardPattern{
		{"~/.jadegate/**", "jadegate-config", "writing to JadeGate's own config directory could disable security protections"},
		{"~/.jadegate/policy.json", "jadegate-config", "writing to the policy file could disable security protections"},
		{"~/.jadegate/trust/**", "jadegate-config", "writing to the trust store could forge certificates or hide tampering"},
		{"~/.ssh/config", "ssh-config", "writing to SSH config could redirect connections through an attacker-controlled proxy"},
		{"~/.gitconfig", "git-config", "writing to git config could set malicious hooks or aliases"},
		{"~/.npmrc", "package-config", "writing to npm config could redirect package installs to a malicious registry"},
	}

	for _, t := range templates {
		protectedPaths = append(protectedPaths, guardPattern{
			pattern:  strings.Replace(t.pattern, "~", home, 1),
			category: t.category,
			reason:   t.reason,
		})
	}
}

// CheckSelfProtection scans a tool call's arguments for paths that fall
// under JadeGate's own protected set — a built-in guardrail that applies
// independently of the active Policy, since a policy loaded from a
// compromised config file cannot be trusted to protect itself.
func CheckSelfProtection(arguments map[string]any) []GuardFinding {
	var findings []GuardFinding
	for argName, argValue := range arguments {
		for _, p := range extractPaths(argValue) {
			for _, guard := range protectedPaths {
				if matchGuardPath(p, guard.pattern) {
					findings = append(findings, GuardFinding{
						Path: p, Category: guard.category, Reason: guard.reason, ArgName: argName,
					})
				}
			}
		}
	}
	return findings
}

func extractPaths(v any) []string {
	switch val := v.(type) {
	case string:
		return pathsFromString(val)
	case map[string]any:
		var paths []string
		for _, nested := range val {
			paths = append(paths, extractPaths(nested)...)
		}
		return paths
	case []any:
		var paths []string
		for _, item := range val {
			paths = append(paths, extractPaths(item)...)
		}
		return paths
	default:
		return nil
	}
}

func pathsFromString(s string) []string {
	var paths []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if looksLikeProtectablePath(line) {
			paths = append(paths, expandHomePath(line))
		}
	}
	return paths
}

func looksLikeProtectablePath(s string) bool {
	if s == "" || len(s) >= 512 {
		return false
	}
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~/")
}

func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func matchGuardPath(path, pattern string) bool {
	path = filepath.Clean(path)
	if !strings.HasSuffix(pattern, "/**") {
		matched, _ := filepath.Match(pattern, path)
		return matched
	}
	prefix := strings.TrimSuffix(pattern, "/**")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
