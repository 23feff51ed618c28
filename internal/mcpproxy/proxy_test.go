package mcpproxy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jadegate/jadegate/internal/catalog"
	"github.com/jadegate/jadegate/internal/policy"
	"github.com/jadegate/jadegate/internal/runtime"
	"github.com/jadegate/jadegate/internal/trust"
)

type tofuRecorder struct {
	alerts []string
}

func (r *tofuRecorder) SessionOpened(string)                  {}
func (r *tofuRecorder) SessionClosed(string, int, int)         {}
func (r *tofuRecorder) CallRecorded(string, runtime.Verdict)   {}
func (r *tofuRecorder) BreakerTripped(string)                  {}
func (r *tofuRecorder) TOFUAlert(toolID, kind, _ string) {
	r.alerts = append(r.alerts, toolID+":"+kind)
}

func TestSchemaPropertyKeys(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"recursive":{"type":"boolean"}}}`)
	keys := schemaPropertyKeys(schema)
	if len(keys) != 2 {
		t.Fatalf("expected 2 property keys, got %v", keys)
	}
}

func TestSchemaPropertyKeysEmptySchema(t *testing.T) {
	if keys := schemaPropertyKeys(nil); keys != nil {
		t.Errorf("expected nil keys for empty schema, got %v", keys)
	}
}

func TestAnnotateToolsListAddsSecurityProfile(t *testing.T) {
	p := New(Config{Categories: catalog.Default()})

	list := ListToolsResult{Tools: []ToolDefinition{
		{Name: "shell_exec", Description: "runs a shell command", InputSchema: json.RawMessage(`{"properties":{"cmd":{"type":"string"}}}`)},
	}}
	result, _ := json.Marshal(list)
	msg := &Message{ID: rawID("1"), Result: result}

	out := p.annotateToolsList(msg)
	if out == nil {
		t.Fatal("expected annotateToolsList to produce annotated output for a tools/list response")
	}

	var annotated Message
	if err := json.Unmarshal(out, &annotated); err != nil {
		t.Fatalf("unmarshal annotated message: %v", err)
	}
	var annotatedList ListToolsResult
	if err := json.Unmarshal(annotated.Result, &annotatedList); err != nil {
		t.Fatalf("unmarshal annotated tools: %v", err)
	}
	profile := annotatedList.Tools[0].SecurityProfile
	if profile == nil {
		t.Fatal("expected a jade_security profile to be attached")
	}
	if profile["risk_level"] != string(catalog.RiskCritical) {
		t.Errorf("expected shell_exec to be profiled as critical risk, got %v", profile["risk_level"])
	}
}

func TestAnnotateToolsListRaisesTOFUAlertOnFirstSighting(t *testing.T) {
	store, err := trust.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open trust store: %v", err)
	}
	tofu := trust.NewTrustOnFirstUse(store, catalog.Default())
	rec := &tofuRecorder{}
	session := runtime.NewSession(policy.Default(), catalog.Default(), nil, rec)
	p := New(Config{
		UpstreamCmd: []string{"/usr/bin/npx", "-y", "@modelcontextprotocol/server-filesystem"},
		Session:     session,
		Categories:  catalog.Default(),
		TOFU:        tofu,
	})

	list := ListToolsResult{Tools: []ToolDefinition{
		{Name: "read_file", Description: "reads a file", InputSchema: json.RawMessage(`{"properties":{"path":{"type":"string"}}}`)},
	}}
	result, _ := json.Marshal(list)
	msg := &Message{ID: rawID("1"), Result: result}

	if out := p.annotateToolsList(msg); out == nil {
		t.Fatal("expected annotateToolsList to produce annotated output")
	}

	want := "npx/read_file:new_tool"
	if len(rec.alerts) != 1 || rec.alerts[0] != want {
		t.Errorf("expected a TOFU new_tool alert %q to be forwarded to the session recorder, got %v", want, rec.alerts)
	}
}

func TestAnnotateToolsListWithoutTOFUSkipsChecks(t *testing.T) {
	p := New(Config{Categories: catalog.Default()})

	list := ListToolsResult{Tools: []ToolDefinition{
		{Name: "read_file", Description: "reads a file"},
	}}
	result, _ := json.Marshal(list)
	msg := &Message{ID: rawID("1"), Result: result}

	if out := p.annotateToolsList(msg); out == nil {
		t.Fatal("expected annotateToolsList to still annotate when TOFU is nil")
	}
}

func TestAnnotateToolsListIgnoresNonListMessages(t *testing.T) {
	p := New(Config{Categories: catalog.Default()})
	msg := &Message{ID: rawID("1"), Method: MethodToolsCall}
	if out := p.annotateToolsList(msg); out != nil {
		t.Errorf("expected nil for a non tools/list message, got %s", out)
	}
}

func TestSweepExpiredSynthesizesTimeoutAndClosesCall(t *testing.T) {
	session := runtime.NewSession(policy.Default(), catalog.Default(), nil, nil)
	p := New(Config{Session: session})

	result := session.BeforeCall("list_files", map[string]any{"path": "/tmp"})
	id := rawID("99")
	p.pending["99"] = pendingCall{callID: result.CallID, toolName: "list_files", rawID: id, deadline: time.Now().Add(-time.Second)}

	p.sweepExpired(time.Now())

	p.pendingMu.Lock()
	_, stillPending := p.pending["99"]
	p.pendingMu.Unlock()
	if stillPending {
		t.Error("expected sweepExpired to remove the expired call from the pending map")
	}

	status := session.GetStatus()
	if status.TotalCalls != 1 {
		t.Errorf("expected the original call to be counted, got %+v", status)
	}
}

func TestResolvePendingMarksSuccessFromAbsentError(t *testing.T) {
	p := New(Config{})
	id := rawID("42")
	p.pending["42"] = pendingCall{callID: "call-1", toolName: "list_files", rawID: id, deadline: time.Now().Add(time.Minute)}

	p.resolvePending(Message{ID: id})

	p.pendingMu.Lock()
	_, stillPending := p.pending["42"]
	p.pendingMu.Unlock()
	if stillPending {
		t.Error("expected resolvePending to remove the call from the pending map")
	}
}
