package runtime

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jadegate/jadegate/internal/catalog"
	"github.com/jadegate/jadegate/internal/policy"
)

// Recorder receives observability signals from a Session. It never
// influences a verdict — implementations (internal/telemetry) only count
// and log. nil is a valid Recorder-less Session.
type Recorder interface {
	SessionOpened(sessionID string)
	SessionClosed(sessionID string, callCount, blockedCount int)
	CallRecorded(toolName string, verdict Verdict)
	BreakerTripped(toolName string)
	TOFUAlert(toolID, kind, message string)
}

// Session is a single conversation's security context: one policy, one
// DAG, one breaker map, one interceptor (spec.md §4.7). A Session is a
// single-writer structure guarded by mu.
type Session struct {
	mu sync.Mutex

	sessionID string
	policy    policy.Policy
	dag       *DynamicDAG
	breaker   *CircuitBreaker
	interceptor *Interceptor

	createdAt    time.Time
	callCount    int
	blockedCount int
	closed       bool

	recorder Recorder
}

// NewSession composes a Policy, DynamicDAG, CircuitBreaker, and Interceptor
// into a fresh session. audit and recorder may both be nil.
func NewSession(p policy.Policy, cats catalog.Categories, audit AuditSink, recorder Recorder) *Session {
	dag := NewDynamicDAG(p.MaxCallDepth, cats)
	breaker := NewCircuitBreaker(p.BreakerThreshold, time.Duration(p.BreakerTimeoutSec)*time.Second)
	interceptor := NewInterceptor(p, dag, breaker, cats, audit)

	s := &Session{
		sessionID:   strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		policy:      p,
		dag:         dag,
		breaker:     breaker,
		interceptor: interceptor,
		createdAt:   time.Now(),
		recorder:    recorder,
	}
	if recorder != nil {
		recorder.SessionOpened(s.sessionID)
	}
	return s
}

// SessionID returns the session's opaque identifier.
func (s *Session) SessionID() string { return s.sessionID }

// Policy returns the session's (immutable, shared) policy.
func (s *Session) Policy() policy.Policy { return s.policy }

// DAG returns the session's call graph, for status/introspection.
func (s *Session) DAG() *DynamicDAG { return s.dag }

// Breaker returns the session's circuit breaker map.
func (s *Session) Breaker() *CircuitBreaker { return s.breaker }

// BeforeCall delegates to the interceptor and updates counters. After the
// session is closed, every call is denied without touching the DAG.
func (s *Session) BeforeCall(toolName string, params map[string]any) InterceptResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return InterceptResult{
			Verdict:   VerdictDeny,
			CallID:    "closed",
			ToolName:  toolName,
			Reasons:   []string{"session is closed"},
			RiskLevel: catalog.RiskHigh,
		}
	}

	if params == nil {
		params = map[string]any{}
	}
	result := s.interceptor.BeforeCall(toolName, params)
	s.callCount++
	if !result.Allowed() {
		s.blockedCount++
	}
	if s.recorder != nil {
		s.recorder.CallRecorded(toolName, result.Verdict)
	}
	return result
}

// AfterCall delegates to the interceptor's post-call bookkeeping. No-op on
// a closed session.
func (s *Session) AfterCall(callID, toolName string, success bool, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	tripped := s.interceptor.AfterCall(callID, toolName, success, errMsg)
	if tripped && s.recorder != nil {
		s.recorder.BreakerTripped(toolName)
	}
}

// RecordTOFUAlert forwards a trust-on-first-use observation to the
// session's recorder, if any. Called from the proxy's tools/list
// annotation path, not from BeforeCall/AfterCall — TOFU alerts are raised
// per discovered tool, not per call.
func (s *Session) RecordTOFUAlert(toolID, kind, message string) {
	if s.recorder != nil {
		s.recorder.TOFUAlert(toolID, kind, message)
	}
}

// Status is a read-only snapshot of the session's counters and breaker map.
type Status struct {
	SessionID    string
	UptimeSec    float64
	TotalCalls   int
	BlockedCalls int
	BlockRate    float64
	DAGDepth     int
	AnomalyCount int
	Breakers     map[string]BreakerStatus
	Closed       bool
}

// GetStatus returns a read-only snapshot of the session.
func (s *Session) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	rate := 0.0
	if s.callCount > 0 {
		rate = float64(s.blockedCount) / float64(s.callCount)
	}
	return Status{
		SessionID:    s.sessionID,
		UptimeSec:    time.Since(s.createdAt).Seconds(),
		TotalCalls:   s.callCount,
		BlockedCalls: s.blockedCount,
		BlockRate:    rate,
		DAGDepth:     s.dag.Depth(),
		AnomalyCount: len(s.dag.Anomalies()),
		Breakers:     s.breaker.Status(),
		Closed:       s.closed,
	}
}

// Close idempotently closes the session; subsequent BeforeCall calls are
// denied without touching the DAG. Returns the final status snapshot.
func (s *Session) Close() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		if s.recorder != nil {
			s.recorder.SessionClosed(s.sessionID, s.callCount, s.blockedCount)
		}
	}
	return s.statusLocked()
}
