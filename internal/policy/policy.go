// Package policy defines JadeGate's declarative security policy: blocked
// actions, approval lists, network/file allow-deny rules, and the limits
// the runtime enforces. Policy is an immutable value once constructed —
// every predicate here is pure.
package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// FileMode distinguishes read vs write checks for isFilePathAllowed.
type FileMode string

const (
	ModeRead  FileMode = "read"
	ModeWrite FileMode = "write"
)

// Policy is the full set of rules the interceptor evaluates a call against.
// Zero value is not meaningful — use Default/Strict/Permissive or From*.
type Policy struct {
	NetworkAllowlist []string `json:"network_allowlist"`
	NetworkBlocklist []string `json:"network_blocklist"`

	FileReadAllow  []string `json:"file_read_allow"`
	FileWriteAllow []string `json:"file_write_allow"`
	FileBlocklist  []string `json:"file_blocklist"`

	BlockedActions   []string `json:"blocked_actions"`
	ApprovalRequired []string `json:"approval_required"`

	UploadExtAllowlist []string `json:"upload_ext_allowlist"`

	MaxCallsPerMinute int `json:"max_calls_per_minute"`
	MaxCallDepth      int `json:"max_call_depth"`

	BreakerThreshold  int `json:"breaker_threshold"`
	BreakerTimeoutSec int `json:"breaker_timeout_sec"`

	EnableDangerousPatternScan bool `json:"enable_dangerous_pattern_scan"`
	EnableAuditLog             bool `json:"enable_audit_log"`
	AuditLogPath               string `json:"audit_log_path"`
}

// defaultBlockedDomains are always refused regardless of allowlist content.
var defaultBlockedDomains = []string{
	"169.254.169.254",
	"metadata.google.internal",
}

// Default returns JadeGate's baseline policy: conservative but usable.
func Default() Policy {
	return Policy{
		NetworkAllowlist: nil,
		NetworkBlocklist: append([]string{}, defaultBlockedDomains...),
		FileReadAllow:    nil,
		FileWriteAllow:   nil,
		FileBlocklist: []string{
			"/etc/shadow", "/etc/passwd", ".ssh/id_",
			".gnupg/", ".aws/credentials", ".config/gcloud",
		},
		BlockedActions:   []string{"shell_exec", "process_spawn", "kernel_module"},
		ApprovalRequired: []string{"email_send", "git_push", "file_delete"},
		UploadExtAllowlist: []string{
			".json", ".txt", ".md", ".csv", ".yaml", ".yml",
			".png", ".jpg", ".jpeg", ".gif", ".svg", ".pdf",
		},
		MaxCallsPerMinute:          60,
		MaxCallDepth:               20,
		BreakerThreshold:           5,
		BreakerTimeoutSec:          60,
		EnableDangerousPatternScan: true,
		EnableAuditLog:             true,
	}
}

// Permissive allows nearly everything; still blocks kernel-module loading.
func Permissive() Policy {
	p := Default()
	p.NetworkAllowlist = []string{"*"}
	p.FileReadAllow = []string{"*"}
	p.FileWriteAllow = []string{"*"}
	p.BlockedActions = []string{"kernel_module"}
	p.ApprovalRequired = nil
	p.MaxCallsPerMinute = 300
	p.MaxCallDepth = 50
	return p
}

// Strict is a lockdown policy: empty allowlists, broad blocked-action set.
func Strict() Policy {
	p := Default()
	p.NetworkAllowlist = nil
	p.FileReadAllow = nil
	p.FileWriteAllow = nil
	p.BlockedActions = []string{
		"shell_exec", "process_spawn", "kernel_module",
		"file_delete", "file_write", "http_post",
	}
	p.ApprovalRequired = []string{"http_get", "file_read", "email_send", "git_push"}
	p.MaxCallsPerMinute = 20
	p.MaxCallDepth = 10
	p.BreakerThreshold = 3
	return p
}

// ─── Predicates ──────────────────────────────────────────────────────────

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// IsActionBlocked reports whether a tool name is in blockedActions.
func (p Policy) IsActionBlocked(name string) bool {
	return containsFold(p.BlockedActions, name)
}

// NeedsApproval reports whether a tool name requires human approval.
func (p Policy) NeedsApproval(name string) bool {
	return containsFold(p.ApprovalRequired, name)
}

// IsDomainAllowed applies the blocklist-first, then-allowlist rule of
// spec.md §4.1. Blocklist always wins.
func (p Policy) IsDomainAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, blocked := range p.NetworkBlocklist {
		blocked = strings.ToLower(blocked)
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return false
		}
	}
	if len(p.NetworkAllowlist) == 0 {
		return true
	}
	for _, allowed := range p.NetworkAllowlist {
		if allowed == "*" {
			return true
		}
		allowed = strings.ToLower(allowed)
		if host == allowed {
			return true
		}
		if strings.HasPrefix(allowed, "*.") && strings.HasSuffix(host, allowed[1:]) {
			return true
		}
	}
	return false
}

// IsFilePathAllowed expands ~ and env vars, denies on blocklist match
// (glob or substring), then applies the mode-appropriate allowlist.
func (p Policy) IsFilePathAllowed(path string, mode FileMode) bool {
	expanded := expandPath(path)

	for _, pattern := range p.FileBlocklist {
		expPattern := expandPath(pattern)
		if ok, _ := filepath.Match(expPattern, expanded); ok {
			return false
		}
		if strings.Contains(expanded, expPattern) {
			return false
		}
	}

	allowed := p.FileReadAllow
	if mode == ModeWrite {
		allowed = p.FileWriteAllow
	}
	if len(allowed) == 0 {
		return true
	}
	for _, pattern := range allowed {
		if pattern == "*" {
			return true
		}
		if ok, _ := filepath.Match(expandPath(pattern), expanded); ok {
			return true
		}
	}
	return false
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return os.ExpandEnv(p)
}

// IsUploadAllowed reports whether filename's extension (case-folded) is
// in the upload allowlist, or the allowlist is empty.
func (p Policy) IsUploadAllowed(filename string) bool {
	if len(p.UploadExtAllowlist) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range p.UploadExtAllowlist {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

// ─── Merge / Serialize ───────────────────────────────────────────────────

func unionStrings(base, override []string) []string {
	seen := make(map[string]bool, len(base)+len(override))
	out := make([]string, 0, len(base)+len(override))
	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range override {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Merge combines override on top of p: lists are unioned (order-preserving
// dedupe), scalars take override's value iff it differs from the
// zero-config default, otherwise p's value is kept.
func (p Policy) Merge(override Policy) Policy {
	d := Default()
	merged := p

	merged.NetworkAllowlist = unionStrings(p.NetworkAllowlist, override.NetworkAllowlist)
	merged.NetworkBlocklist = unionStrings(p.NetworkBlocklist, override.NetworkBlocklist)
	merged.FileReadAllow = unionStrings(p.FileReadAllow, override.FileReadAllow)
	merged.FileWriteAllow = unionStrings(p.FileWriteAllow, override.FileWriteAllow)
	merged.FileBlocklist = unionStrings(p.FileBlocklist, override.FileBlocklist)
	merged.BlockedActions = unionStrings(p.BlockedActions, override.BlockedActions)
	merged.ApprovalRequired = unionStrings(p.ApprovalRequired, override.ApprovalRequired)
	merged.UploadExtAllowlist = unionStrings(p.UploadExtAllowlist, override.UploadExtAllowlist)

	if override.MaxCallsPerMinute != d.MaxCallsPerMinute {
		merged.MaxCallsPerMinute = override.MaxCallsPerMinute
	}
	if override.MaxCallDepth != d.MaxCallDepth {
		merged.MaxCallDepth = override.MaxCallDepth
	}
	if override.BreakerThreshold != d.BreakerThreshold {
		merged.BreakerThreshold = override.BreakerThreshold
	}
	if override.BreakerTimeoutSec != d.BreakerTimeoutSec {
		merged.BreakerTimeoutSec = override.BreakerTimeoutSec
	}
	if override.EnableDangerousPatternScan != d.EnableDangerousPatternScan {
		merged.EnableDangerousPatternScan = override.EnableDangerousPatternScan
	}
	if override.EnableAuditLog != d.EnableAuditLog {
		merged.EnableAuditLog = override.EnableAuditLog
	}
	if override.AuditLogPath != d.AuditLogPath {
		merged.AuditLogPath = override.AuditLogPath
	}
	return merged
}

// envelope is the on-disk shape of a policy file (spec.md §6).
type envelope struct {
	Policy Policy `json:"jadegate_policy"`
}

// FromFile loads a policy from a JSON file wrapped in a top-level
// "jadegate_policy" key.
func FromFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Policy{}, err
	}
	return env.Policy, nil
}

// Save persists p to path as JSON wrapped in "jadegate_policy".
func (p Policy) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(envelope{Policy: p}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
