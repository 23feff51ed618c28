package runtime

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jadegate/jadegate/internal/catalog"
	"github.com/jadegate/jadegate/internal/policy"
	"github.com/jadegate/jadegate/internal/unicode"
)

// Verdict is the interceptor's decision for a single call.
type Verdict string

const (
	VerdictAllow         Verdict = "allow"
	VerdictDeny          Verdict = "deny"
	VerdictNeedsApproval Verdict = "needs_approval"
)

// InterceptResult is the full outcome of evaluating one tool call.
type InterceptResult struct {
	Verdict   Verdict
	CallID    string
	ToolName  string
	Reasons   []string
	Anomalies []Anomaly
	RiskLevel catalog.RiskLevel
}

// Allowed reports whether the call may proceed.
func (r InterceptResult) Allowed() bool { return r.Verdict == VerdictAllow }

// AuditEntry is one record in the session's audit trail (spec.md §4.6
// step 9). Success/Error are filled in by afterCall.
type AuditEntry struct {
	CallID    string
	ToolName  string
	ParamKeys []string
	Verdict   Verdict
	Reasons   []string
	Timestamp time.Time
	Success   *bool
	Error     string
}

// AuditSink receives audit entries as they are created and updated. The
// runtime package only depends on this interface — internal/audit supplies
// the JSONL-backed implementation, internal/telemetry the metrics one.
type AuditSink interface {
	Append(AuditEntry)
	Update(callID string, success bool, errMsg string)
}

// Interceptor is the ordered pre-call evaluation pipeline plus post-call
// bookkeeping described in spec.md §4.6.
type Interceptor struct {
	policy  policy.Policy
	dag     *DynamicDAG
	breaker *CircuitBreaker
	cats    catalog.Categories
	audit   AuditSink
}

// NewInterceptor wires a policy, DAG, and breaker into an interceptor. audit
// may be nil, in which case auditing is skipped regardless of policy.
func NewInterceptor(p policy.Policy, dag *DynamicDAG, breaker *CircuitBreaker, cats catalog.Categories, audit AuditSink) *Interceptor {
	return &Interceptor{policy: p, dag: dag, breaker: breaker, cats: cats, audit: audit}
}

// BeforeCall runs the ordered pipeline: breaker gate, blocked-action check,
// approval check, parameter/domain/path scans, DAG append, anomaly
// override, and audit — exactly the order spec.md §4.6 mandates.
func (i *Interceptor) BeforeCall(toolName string, params map[string]any) InterceptResult {
	callID := newCallID()

	// 1. Breaker gate — short-circuits everything, including DAG append.
	if !i.breaker.CanCall(toolName) {
		result := InterceptResult{
			Verdict:   VerdictDeny,
			CallID:    callID,
			ToolName:  toolName,
			Reasons:   []string{"circuit breaker is open for '" + toolName + "'"},
			RiskLevel: catalog.RiskHigh,
		}
		i.logAudit(result, params)
		return result
	}

	var reasons []string
	verdict := VerdictAllow
	risk := catalog.RiskLow

	// 2. Blocked-action check.
	if i.policy.IsActionBlocked(toolName) {
		reasons = append(reasons, "action '"+toolName+"' is blocked by policy")
		verdict = VerdictDeny
		risk = catalog.RiskHigh
	}

	// 3. Approval check — only escalates further from ALLOW.
	if verdict == VerdictAllow && i.policy.NeedsApproval(toolName) {
		reasons = append(reasons, "action '"+toolName+"' requires human approval")
		verdict = VerdictNeedsApproval
		risk = catalog.RiskMedium
	}

	// 4. Parameter pattern scan — dangerous shell/command patterns plus
	// credential-shaped content that suggests the call is exfiltrating a
	// secret through its arguments.
	if verdict == VerdictAllow && i.policy.EnableDangerousPatternScan {
		if issue := scanDangerousPatterns(params); issue != "" {
			reasons = append(reasons, issue)
			verdict = VerdictDeny
			risk = catalog.RiskHigh
		}
	}
	if verdict == VerdictAllow && i.policy.EnableDangerousPatternScan {
		if findings := catalog.ScanArguments(params); len(findings) > 0 {
			reasons = append(reasons, "sensitive content in arguments: "+findings[0].Detail)
			verdict = VerdictDeny
			risk = catalog.RiskHigh
		}
	}

	// 5. Domain scan.
	if verdict == VerdictAllow {
		if issue := i.scanDomains(params); issue != "" {
			reasons = append(reasons, issue)
			verdict = VerdictDeny
			risk = catalog.RiskHigh
		}
	}

	// 6. Path scan, plus the self-protection guard over JadeGate's own
	// config and a handful of high-value host dotfiles.
	if verdict == VerdictAllow {
		if issue := i.scanPaths(toolName, params); issue != "" {
			reasons = append(reasons, issue)
			verdict = VerdictDeny
			risk = catalog.RiskHigh
		}
	}
	if verdict == VerdictAllow {
		if findings := catalog.CheckSelfProtection(params); len(findings) > 0 {
			reasons = append(reasons, "self-protection: "+findings[0].Reason)
			verdict = VerdictDeny
			risk = catalog.RiskCritical
		}
	}

	// 7. DAG append — always, regardless of verdict so far.
	node := DAGNode{
		CallID:        callID,
		ToolName:      toolName,
		ParamsSummary: sanitizeParams(params),
		Timestamp:     time.Now(),
		RiskLevel:     risk,
	}
	anomalies := i.dag.AddCall(node)

	// 8. Anomaly override — escalate at most once, even if several
	// anomalies fire on this call.
	escalated := false
	for _, a := range anomalies {
		if !escalated && verdict == VerdictAllow && (a.Severity == SeverityHigh || a.Severity == SeverityCritical) {
			verdict = VerdictDeny
			risk = catalog.RiskHigh
			escalated = true
		}
		reasons = append(reasons, "anomaly detected: "+a.Message)
	}

	result := InterceptResult{
		Verdict:   verdict,
		CallID:    callID,
		ToolName:  toolName,
		Reasons:   reasons,
		Anomalies: anomalies,
		RiskLevel: risk,
	}

	// 9. Audit.
	i.logAudit(result, params)
	return result
}

// AfterCall reports a completed call's outcome: updates the DAG node,
// informs the breaker, and patches the audit entry in place. Returns true
// if this call just tripped the tool's circuit breaker.
func (i *Interceptor) AfterCall(callID string, toolName string, success bool, errMsg string) bool {
	i.dag.UpdateCall(callID, success, 0)
	tripped := false
	if success {
		i.breaker.RecordSuccess(toolName)
	} else {
		tripped = i.breaker.RecordFailure(toolName)
	}
	if i.audit != nil {
		i.audit.Update(callID, success, errMsg)
	}
	return tripped
}

func (i *Interceptor) logAudit(r InterceptResult, params map[string]any) {
	if i.audit == nil || !i.policy.EnableAuditLog {
		return
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	i.audit.Append(AuditEntry{
		CallID:    r.CallID,
		ToolName:  r.ToolName,
		ParamKeys: keys,
		Verdict:   r.Verdict,
		Reasons:   r.Reasons,
		Timestamp: time.Now(),
	})
}

func newCallID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ─── Deep scans ────────────────────────────────────────────────────────

// deepStringScan extracts every string value from a nested params
// structure, bounded to depth 10 (spec.md §4.6 step 4).
func deepStringScan(v any, depth int) []string {
	if depth > 10 {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case map[string]any:
		var out []string
		for _, sub := range t {
			out = append(out, deepStringScan(sub, depth+1)...)
		}
		return out
	case []any:
		var out []string
		for _, sub := range t {
			out = append(out, deepStringScan(sub, depth+1)...)
		}
		return out
	default:
		return nil
	}
}

func scanDangerousPatterns(params map[string]any) string {
	for _, s := range deepStringScan(params, 0) {
		for _, re := range catalog.DangerousPatterns {
			if re.MatchString(s) {
				return "dangerous pattern detected: " + re.String()
			}
		}
		if res := unicode.Scan(s); !res.Clean {
			if t, ok := blockingThreat(res); ok {
				return "unicode smuggling detected: " + t.Category + " (" + t.Description + ")"
			}
		}
	}
	return ""
}

// blockingThreat reports the first threat in res severe enough to deny the
// call outright, rather than merely note in the audit trail.
func blockingThreat(res unicode.ScanResult) (unicode.Threat, bool) {
	for _, t := range res.Threats {
		if t.Severity == "block" {
			return t, true
		}
	}
	return unicode.Threat{}, false
}

func (i *Interceptor) scanDomains(params map[string]any) string {
	for _, s := range deepStringScan(params, 0) {
		if !strings.Contains(s, "://") {
			continue
		}
		u, err := url.Parse(s)
		if err != nil || u.Hostname() == "" {
			continue
		}
		if !i.policy.IsDomainAllowed(u.Hostname()) {
			return "domain '" + u.Hostname() + "' not allowed by network policy"
		}
	}
	return ""
}

func (i *Interceptor) scanPaths(toolName string, params map[string]any) string {
	for _, s := range deepStringScan(params, 0) {
		for _, pattern := range catalog.SensitiveFilePatterns {
			if strings.Contains(s, pattern) {
				return "sensitive file path detected: " + s
			}
		}
	}
	// Additive divergence documented in SPEC_FULL.md §4.6: also consult the
	// glob allow/deny lists for calls the catalog recognizes as file I/O,
	// so Policy.IsFilePathAllowed is no longer unused in the request path.
	lower := strings.ToLower(toolName)
	if !catalog.MatchesAny(lower, i.cats.FileKeywords) {
		return ""
	}
	mode := policy.ModeRead
	if catalog.MatchesAny(lower, i.cats.WriteKeywords) {
		mode = policy.ModeWrite
	}
	for _, s := range deepStringScan(params, 0) {
		if looksLikePath(s) && !i.policy.IsFilePathAllowed(s, mode) {
			return "file path '" + s + "' not allowed by policy"
		}
	}
	return ""
}

func looksLikePath(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}

func sanitizeParams(params map[string]any) map[string]any {
	const maxStrLen = 200
	out := make(map[string]any, len(params))
	for k, v := range params {
		switch t := v.(type) {
		case string:
			if len(t) > maxStrLen {
				out[k] = t[:maxStrLen] + "..."
			} else {
				out[k] = t
			}
		case bool, int, int64, float64:
			out[k] = t
		case []any:
			out[k] = "[list, len=" + strconv.Itoa(len(t)) + "]"
		case map[string]any:
			out[k] = "{dict, keys=" + strconv.Itoa(len(t)) + "}"
		default:
			out[k] = "unknown"
		}
	}
	return out
}
