package runtime

import (
	"testing"
	"time"

	"github.com/jadegate/jadegate/internal/catalog"
)

func call(id, tool string) DAGNode {
	return DAGNode{CallID: id, ToolName: tool, Timestamp: time.Now(), RiskLevel: catalog.RiskLow}
}

func TestDynamicDAGAppendsSequentialEdges(t *testing.T) {
	d := NewDynamicDAG(20, catalog.Default())
	d.AddCall(call("1", "list_files"))
	d.AddCall(call("2", "read_file"))

	if d.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", d.Depth())
	}
	edges := d.Edges()
	if len(edges) != 1 || edges[0].From != "1" || edges[0].To != "2" {
		t.Errorf("expected a single sequential edge 1->2, got %v", edges)
	}
}

func TestDynamicDAGDepthExceeded(t *testing.T) {
	d := NewDynamicDAG(2, catalog.Default())
	d.AddCall(call("1", "list_files"))
	d.AddCall(call("2", "list_files"))
	anomalies := d.AddCall(call("3", "list_files"))

	found := false
	for _, a := range anomalies {
		if a.Kind == AnomalyDepthExceeded {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a depth_exceeded anomaly on the 3rd call with maxDepth=2, got %v", anomalies)
	}
}

func TestDynamicDAGDataExfiltration(t *testing.T) {
	d := NewDynamicDAG(20, catalog.Default())
	d.AddCall(call("1", "read_file"))
	anomalies := d.AddCall(call("2", "http_post"))

	found := false
	for _, a := range anomalies {
		if a.Kind == AnomalyDataExfiltration {
			found = true
		}
	}
	if !found {
		t.Errorf("expected data_exfiltration anomaly after read then send, got %v", anomalies)
	}
}

func TestDynamicDAGCircularCall(t *testing.T) {
	d := NewDynamicDAG(20, catalog.Default())
	d.AddCall(call("1", "toolA"))
	d.AddCall(call("2", "toolB"))
	anomalies := d.AddCall(call("3", "toolA"))

	found := false
	for _, a := range anomalies {
		if a.Kind == AnomalyCircularCall {
			found = true
		}
	}
	if !found {
		t.Errorf("expected circular_call anomaly for A->B->A, got %v", anomalies)
	}
}

func TestDynamicDAGPrivilegeEscalation(t *testing.T) {
	d := NewDynamicDAG(20, catalog.Default())
	d.AddCall(call("1", "list_files"))
	anomalies := d.AddCall(call("2", "shell_exec"))

	found := false
	for _, a := range anomalies {
		if a.Kind == AnomalyPrivilegeEscalate {
			found = true
		}
	}
	if !found {
		t.Errorf("expected privilege_escalation anomaly moving into a high-risk tool, got %v", anomalies)
	}
}

func TestDynamicDAGUpdateCall(t *testing.T) {
	d := NewDynamicDAG(20, catalog.Default())
	d.AddCall(call("1", "list_files"))
	d.UpdateCall("1", true, 42)

	node := d.Nodes()["1"]
	if node.Success != TriOK {
		t.Errorf("expected TriOK after a successful update, got %v", node.Success)
	}
	if node.DurationMs != 42 {
		t.Errorf("expected duration 42, got %v", node.DurationMs)
	}
}
