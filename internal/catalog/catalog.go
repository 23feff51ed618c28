// Package catalog holds the keyword-category and dangerous-pattern tables
// the runtime's anomaly detector and interceptor match tool names and
// parameter strings against. They are data, not code (see DESIGN.md), so a
// deployment can teach JadeGate a new tool-naming convention by dropping a
// YAML file next to the policy instead of recompiling.
package catalog

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Categories is the full set of keyword tables used by risk heuristics and
// the dynamic call graph's detectors.
type Categories struct {
	SensitiveRead   []string `yaml:"sensitive_read"`
	NetworkSend     []string `yaml:"network_send"`
	HighRisk        []string `yaml:"high_risk"`
	NetworkKeywords []string `yaml:"network_keywords"`
	FileKeywords    []string `yaml:"file_keywords"`
	ShellKeywords   []string `yaml:"shell_keywords"`
	SendKeywords    []string `yaml:"send_keywords"`
	ReadOnlyWords   []string `yaml:"read_only_keywords"`
	WriteKeywords   []string `yaml:"write_keywords"`
}

// Default returns the fixed category sets from the specification (§6).
func Default() Categories {
	return Categories{
		SensitiveRead: []string{
			"file_read", "read_file", "readfile", "cat", "read",
			"database_query", "db_query", "sql_query",
		},
		NetworkSend: []string{
			"http_post", "http_put", "fetch", "curl", "request",
			"email_send", "send_email", "webhook",
			"http_request", "api_call",
		},
		HighRisk: []string{
			"shell_exec", "execute", "run_command", "exec",
			"file_delete", "rm", "process_spawn",
		},
		NetworkKeywords: []string{"http", "fetch", "request", "url", "api", "webhook", "curl"},
		FileKeywords:    []string{"file", "read", "write", "path", "directory", "folder"},
		ShellKeywords:   []string{"exec", "shell", "command", "run", "bash", "terminal"},
		SendKeywords:    []string{"send", "email", "post", "upload", "push"},
		ReadOnlyWords:   []string{"search", "query", "list", "get"},
		WriteKeywords:   []string{"write", "create", "delete", "modify", "update"},
	}
}

// LoadFile merges a YAML categories file on top of Default. A missing file
// is not an error — Default() alone is a complete, usable catalog.
func LoadFile(path string) (Categories, error) {
	cats := Default()
	if path == "" {
		return cats, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cats, nil
		}
		return cats, err
	}
	var override Categories
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cats, err
	}
	cats = mergeCategories(cats, override)
	return cats, nil
}

func mergeCategories(base, override Categories) Categories {
	merge := func(a, b []string) []string {
		if len(b) == 0 {
			return a
		}
		seen := make(map[string]bool, len(a)+len(b))
		out := make([]string, 0, len(a)+len(b))
		for _, s := range append(append([]string{}, a...), b...) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
		return out
	}
	return Categories{
		SensitiveRead:   merge(base.SensitiveRead, override.SensitiveRead),
		NetworkSend:     merge(base.NetworkSend, override.NetworkSend),
		HighRisk:        merge(base.HighRisk, override.HighRisk),
		NetworkKeywords: merge(base.NetworkKeywords, override.NetworkKeywords),
		FileKeywords:    merge(base.FileKeywords, override.FileKeywords),
		ShellKeywords:   merge(base.ShellKeywords, override.ShellKeywords),
		SendKeywords:    merge(base.SendKeywords, override.SendKeywords),
		ReadOnlyWords:   merge(base.ReadOnlyWords, override.ReadOnlyWords),
		WriteKeywords:   merge(base.WriteKeywords, override.WriteKeywords),
	}
}

// MatchesAny reports whether name (case-folded) contains or equals any
// token in the list — the "contains-or-equals" rule from spec.md §4.2.
func MatchesAny(name string, tokens []string) bool {
	lower := strings.ToLower(name)
	for _, t := range tokens {
		if lower == t || strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// DangerousPatterns is the fixed, case-insensitive regex set from spec.md §6,
// compiled once at package init.
var DangerousPatterns = compileDangerousPatterns()

func compileDangerousPatterns() []*regexp.Regexp {
	raw := []string{
		`\brm\s+-rf\b`,
		`\bmkfs\b`,
		`\bdd\s+if=`,
		`\bchmod\s+777\b`,
		`\beval\s*\(`,
		`\bexec\s*\(`,
		`\b__import__\s*\(`,
		`\bos\.system\s*\(`,
		`\bsubprocess\b`,
		`curl\s+.*\|\s*(?:ba)?sh`,
		`wget\s+.*\|\s*(?:ba)?sh`,
		`>\s*/dev/sda`,
		`\bshutdown\b`,
		`\breboot\b`,
		`\bkillall\b`,
	}
	out := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// SensitiveFilePatterns is the fixed substring set from spec.md §6 used by
// the interceptor's path scan.
var SensitiveFilePatterns = []string{
	"/etc/shadow", "/etc/passwd", ".ssh/id_", ".gnupg/",
	".aws/credentials", ".config/gcloud",
}
