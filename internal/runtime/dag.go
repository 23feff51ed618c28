// Package runtime holds the per-session call graph, circuit breaker,
// interceptor pipeline, and session object — the core interception
// pipeline described in spec.md §2/§4.
package runtime

import (
	"strings"
	"time"

	"github.com/jadegate/jadegate/internal/catalog"
)

// Tri is a tri-state success flag for a DAG node: unknown until after_call.
type Tri int

const (
	TriUnknown Tri = iota
	TriOK
	TriFail
)

// DAGNode is a single tool call recorded in the session's call graph.
// Created at before_call; Success/DurationMs are filled at after_call.
type DAGNode struct {
	CallID        string
	ToolName      string
	ParamsSummary map[string]any
	Timestamp     time.Time
	Success       Tri
	DurationMs    float64
	RiskLevel     catalog.RiskLevel
}

// DAGEdge is a sequential edge between two consecutive calls. The "DAG"
// name reflects the design intent to generalize beyond a simple chain, not
// the current (strictly sequential) topology — see spec.md §3.
type DAGEdge struct {
	From string
	To   string
	Type string
}

// AnomalyKind enumerates the detector categories spec.md §3 defines.
type AnomalyKind string

const (
	AnomalyDataExfiltration  AnomalyKind = "data_exfiltration"
	AnomalyCircularCall      AnomalyKind = "circular_call"
	AnomalyDepthExceeded     AnomalyKind = "depth_exceeded"
	AnomalyRapidFire         AnomalyKind = "rapid_fire"
	AnomalyPrivilegeEscalate AnomalyKind = "privilege_escalation"
)

// Severity is the anomaly's impact rating.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly is a single detected pattern over recent calls. Anomalies are
// append-only within a session.
type Anomaly struct {
	Kind           AnomalyKind
	Severity       Severity
	Message        string
	InvolvedCallIDs []string
	Timestamp      time.Time
}

// DynamicDAG is the per-session, append-only call chain plus its anomaly
// detectors. Detector state (recent reads, tool history) lives here and is
// only mutated via AddCall, keeping Session single-writer (spec.md §9).
type DynamicDAG struct {
	cats Categories

	nodes     map[string]*DAGNode
	order     []string
	edges     []DAGEdge
	anomalies []Anomaly

	toolHistory []string
	recentReads []string // call ids of recent sensitive reads, bounded to 3

	maxDepth int
}

// Categories is an alias kept local so callers don't need to import
// catalog just to build a DynamicDAG from defaults.
type Categories = catalog.Categories

// NewDynamicDAG creates an empty DAG bounded by maxDepth, matched against
// cats' keyword tables.
func NewDynamicDAG(maxDepth int, cats Categories) *DynamicDAG {
	return &DynamicDAG{
		cats:     cats,
		nodes:    make(map[string]*DAGNode),
		maxDepth: maxDepth,
	}
}

// Depth returns the number of calls appended so far.
func (d *DynamicDAG) Depth() int { return len(d.order) }

// Nodes returns a snapshot copy of the node map.
func (d *DynamicDAG) Nodes() map[string]*DAGNode {
	out := make(map[string]*DAGNode, len(d.nodes))
	for k, v := range d.nodes {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Edges returns a snapshot copy of the edge chain.
func (d *DynamicDAG) Edges() []DAGEdge {
	return append([]DAGEdge{}, d.edges...)
}

// Anomalies returns a snapshot copy of all anomalies raised so far.
func (d *DynamicDAG) Anomalies() []Anomaly {
	return append([]Anomaly{}, d.anomalies...)
}

// AddCall appends node to the graph in the fixed order spec.md §4.2
// mandates: link the edge first, then run each detector. Returns any new
// anomalies raised by this call.
func (d *DynamicDAG) AddCall(node DAGNode) []Anomaly {
	d.nodes[node.CallID] = &node
	if len(d.order) > 0 {
		d.edges = append(d.edges, DAGEdge{From: d.order[len(d.order)-1], To: node.CallID, Type: "sequential"})
	}
	d.order = append(d.order, node.CallID)
	d.toolHistory = append(d.toolHistory, node.ToolName)

	var fresh []Anomaly
	fresh = append(fresh, d.detectDepthExceeded(node)...)
	fresh = append(fresh, d.detectDataExfiltration(node)...)
	fresh = append(fresh, d.detectCircularCall(node)...)
	fresh = append(fresh, d.detectPrivilegeEscalation(node)...)

	d.anomalies = append(d.anomalies, fresh...)
	return fresh
}

func (d *DynamicDAG) detectDepthExceeded(node DAGNode) []Anomaly {
	if d.maxDepth <= 0 || len(d.order) <= d.maxDepth {
		return nil
	}
	return []Anomaly{{
		Kind:            AnomalyDepthExceeded,
		Severity:        SeverityHigh,
		Message:         "call chain depth exceeds configured limit",
		InvolvedCallIDs: []string{node.CallID},
		Timestamp:       time.Now(),
	}}
}

func (d *DynamicDAG) detectDataExfiltration(node DAGNode) []Anomaly {
	lower := strings.ToLower(node.ToolName)
	isRead := catalog.MatchesAny(lower, d.cats.SensitiveRead) || strings.Contains(lower, "read") || strings.Contains(lower, "file_read")
	if isRead {
		d.recentReads = append(d.recentReads, node.CallID)
		if len(d.recentReads) > 3 {
			d.recentReads = d.recentReads[len(d.recentReads)-3:]
		}
	}

	isSend := catalog.MatchesAny(lower, d.cats.NetworkSend) || strings.Contains(lower, "http_post") || strings.Contains(lower, "send")
	if !isSend || len(d.recentReads) == 0 {
		return nil
	}

	involved := append(append([]string{}, d.recentReads...), node.CallID)
	return []Anomaly{{
		Kind:            AnomalyDataExfiltration,
		Severity:        SeverityCritical,
		Message:         "potential data exfiltration: sensitive read followed by network send (" + node.ToolName + ")",
		InvolvedCallIDs: involved,
		Timestamp:       time.Now(),
	}}
}

func (d *DynamicDAG) detectCircularCall(node DAGNode) []Anomaly {
	n := len(d.toolHistory)
	if n < 3 {
		return nil
	}
	a, b, c := d.toolHistory[n-3], d.toolHistory[n-2], d.toolHistory[n-1]
	if a != c || a == b {
		return nil
	}
	return []Anomaly{{
		Kind:            AnomalyCircularCall,
		Severity:        SeverityMedium,
		Message:         "circular call pattern: " + a + " -> " + b + " -> " + c,
		InvolvedCallIDs: append([]string{}, d.order[len(d.order)-3:]...),
		Timestamp:       time.Now(),
	}}
}

func (d *DynamicDAG) detectPrivilegeEscalation(node DAGNode) []Anomaly {
	lower := strings.ToLower(node.ToolName)
	if !catalog.MatchesAny(lower, d.cats.HighRisk) || len(d.toolHistory) < 2 {
		return nil
	}
	prev := strings.ToLower(d.toolHistory[len(d.toolHistory)-2])
	if catalog.MatchesAny(prev, d.cats.HighRisk) {
		return nil
	}
	return []Anomaly{{
		Kind:            AnomalyPrivilegeEscalate,
		Severity:        SeverityHigh,
		Message:         "privilege escalation: " + prev + " -> " + node.ToolName,
		InvolvedCallIDs: append([]string{}, d.order[len(d.order)-2:]...),
		Timestamp:       time.Now(),
	}}
}

// UpdateCall patches an existing node with the call's execution result.
func (d *DynamicDAG) UpdateCall(callID string, success bool, durationMs float64) {
	node, ok := d.nodes[callID]
	if !ok {
		return
	}
	if success {
		node.Success = TriOK
	} else {
		node.Success = TriFail
	}
	node.DurationMs = durationMs
}
