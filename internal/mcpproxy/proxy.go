package mcpproxy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/jadegate/jadegate/internal/catalog"
	"github.com/jadegate/jadegate/internal/runtime"
	"github.com/jadegate/jadegate/internal/trust"
)

// ResponseTimeout bounds how long the proxy waits for an upstream response
// line once a request has been forwarded (spec.md §4.8 suggests 10s).
const ResponseTimeout = 10 * time.Second

const shutdownGrace = 5 * time.Second

// Logger is the minimal diagnostic sink the proxy writes to; satisfied by
// *zap.SugaredLogger via internal/telemetry, or a no-op in tests.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Config configures one Proxy run.
type Config struct {
	UpstreamCmd []string
	Session     *runtime.Session
	Categories  catalog.Categories
	Logger      Logger

	// TOFU baselines and escalation-checks every tool the upstream server
	// advertises, as each tools/list response is annotated. nil disables
	// trust baselining for this proxy run.
	TOFU *trust.TrustOnFirstUse
}

// serverID identifies the upstream tool server for certificate scoping —
// the executable name of the upstream command, since an upstream MCP
// server has no other stable identifier visible to the proxy.
func (p *Proxy) serverID() string {
	if len(p.cfg.UpstreamCmd) == 0 {
		return "unknown"
	}
	return filepath.Base(p.cfg.UpstreamCmd[0])
}

// Proxy splices a host application's stdio with an upstream tool server's
// stdio, evaluating every tools/call through a runtime.Session and
// annotating every tools/list response with derived security profiles.
type Proxy struct {
	cfg Config
	log Logger
	cmd *exec.Cmd

	pendingMu sync.Mutex
	pending   map[string]pendingCall

	// stdoutMu serializes every write to the downstream (host-facing)
	// stream: synthesized deny/approval/timeout responses, annotated
	// tools/list results, and plain pass-through all originate from
	// three different goroutines (downstreamToUpstream, upstreamToDownstream,
	// runTimeoutJanitor) and would otherwise interleave mid-line and
	// corrupt the line-delimited JSON-RPC stream.
	stdoutMu sync.Mutex
}

// New creates a Proxy from cfg. A nil Logger is replaced with a no-op one.
func New(cfg Config) *Proxy {
	log := cfg.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Proxy{cfg: cfg, log: log, pending: make(map[string]pendingCall)}
}

// Run launches the upstream command, bridges os.Stdin/os.Stdout with it,
// and blocks until both directions finish or ctx is cancelled.
func (p *Proxy) Run(ctx context.Context) error {
	if len(p.cfg.UpstreamCmd) == 0 {
		return fmt.Errorf("mcpproxy: no upstream command specified")
	}

	p.cmd = exec.CommandContext(ctx, p.cfg.UpstreamCmd[0], p.cfg.UpstreamCmd[1:]...)
	p.cmd.Stderr = os.Stderr

	upstreamIn, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("mcpproxy: stdin pipe: %w", err)
	}
	upstreamOut, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("mcpproxy: stdout pipe: %w", err)
	}
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("mcpproxy: start upstream: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer func() { _ = upstreamIn.Close() }()
		p.downstreamToUpstream(os.Stdin, upstreamIn)
	}()

	go func() {
		defer wg.Done()
		p.upstreamToDownstream(upstreamOut, os.Stdout)
	}()

	stopJanitor := make(chan struct{})
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		p.runTimeoutJanitor(stopJanitor)
	}()

	wg.Wait()
	close(stopJanitor)
	<-janitorDone
	p.shutdown()

	callCount, blockedCount := 0, 0
	if p.cfg.Session != nil {
		st := p.cfg.Session.Close()
		callCount, blockedCount = st.TotalCalls, st.BlockedCalls
	}
	fmt.Fprintf(os.Stderr, "jadegate: session closed, %d calls, %d blocked\n", callCount, blockedCount)
	return nil
}

// shutdown sends SIGTERM to the upstream process, waits shutdownGrace, and
// escalates to SIGKILL if it is still alive (spec.md §4.8).
func (p *Proxy) shutdown() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		_ = p.cmd.Wait()
		close(done)
	}()

	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
		return
	case <-time.After(shutdownGrace):
		_ = p.cmd.Process.Kill()
		<-done
	}
}

func writeLine(w io.Writer, data []byte) {
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n"))
}

// writeDownstream serializes a line-delimited write against stdoutMu. Every
// write to the host-facing stream — whether plain pass-through, an
// annotated tools/list response, or a synthesized deny/approval/timeout
// error — must go through this method rather than calling writeLine
// directly, since the three goroutines that produce downstream output run
// concurrently.
func (p *Proxy) writeDownstream(w io.Writer, data []byte) {
	p.stdoutMu.Lock()
	defer p.stdoutMu.Unlock()
	writeLine(w, data)
}

// downstreamToUpstream reads line-delimited JSON-RPC from the host, gates
// tools/call through the session, and forwards everything else verbatim.
func (p *Proxy) downstreamToUpstream(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			p.log.Warnf("mcpproxy: failed to parse downstream message, skipping: %v", err)
			continue
		}

		if classify(&msg) != MethodToolsCall {
			writeLine(w, line)
			continue
		}

		var params CallToolParams
		if err := json.Unmarshal(msg.Params, &params); err != nil || params.Name == "" {
			p.log.Warnf("mcpproxy: malformed tools/call params, skipping: %v", err)
			continue
		}

		if p.cfg.Session == nil {
			writeLine(w, line)
			continue
		}

		result := p.cfg.Session.BeforeCall(params.Name, params.Arguments)
		switch result.Verdict {
		case runtime.VerdictDeny:
			resp, _ := newErrorResponse(msg.ID, CodePolicyDeny,
				"JadeGate: call denied — "+joinReasons(result.Reasons), result)
			p.writeDownstream(os.Stdout, resp)
			p.cfg.Session.AfterCall(result.CallID, params.Name, false, "denied")
			continue
		case runtime.VerdictNeedsApproval:
			resp, _ := newErrorResponse(msg.ID, CodeNeedsApproval,
				fmt.Sprintf("JadeGate: human approval required for '%s'", params.Name), result)
			p.writeDownstream(os.Stdout, resp)
			p.cfg.Session.AfterCall(result.CallID, params.Name, false, "needs_approval")
			continue
		}

		if idKey := idString(msg.ID); idKey != "" {
			p.pendingMu.Lock()
			p.pending[idKey] = pendingCall{callID: result.CallID, toolName: params.Name, rawID: msg.ID, deadline: time.Now().Add(ResponseTimeout)}
			p.pendingMu.Unlock()
		}
		writeLine(w, line)
	}
}

type pendingCall struct {
	callID   string
	toolName string
	rawID    *json.RawMessage
	deadline time.Time
}

func idString(id *json.RawMessage) string {
	if id == nil {
		return ""
	}
	return string(*id)
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

// upstreamToDownstream reads line-delimited JSON-RPC from the upstream
// process, annotates tools/list responses, resolves pending tools/call
// responses against the session, and forwards everything else verbatim.
func (p *Proxy) upstreamToDownstream(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			p.writeDownstream(w, line)
			continue
		}

		if annotated := p.annotateToolsList(&msg); annotated != nil {
			p.writeDownstream(w, annotated)
			continue
		}

		if msg.ID != nil && msg.Method == "" {
			p.resolvePending(msg)
		}

		p.writeDownstream(w, line)
	}

	p.pendingMu.Lock()
	remaining := make([]pendingCall, 0, len(p.pending))
	for key, pc := range p.pending {
		remaining = append(remaining, pc)
		delete(p.pending, key)
	}
	p.pendingMu.Unlock()

	for _, pc := range remaining {
		p.log.Warnf("mcpproxy: upstream closed mid-request for call %s (%s)", pc.callID, pc.toolName)
		resp, _ := newErrorResponse(pc.rawID, CodeUpstreamFailed, "JadeGate: upstream server closed", nil)
		p.writeDownstream(os.Stdout, resp)
		if p.cfg.Session != nil {
			p.cfg.Session.AfterCall(pc.callID, pc.toolName, false, "upstream closed")
		}
	}
}

// runTimeoutJanitor periodically sweeps pending calls whose deadline has
// elapsed, synthesizing a -32603 to downstream for each (spec.md §4.8).
func (p *Proxy) runTimeoutJanitor(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			p.sweepExpired(now)
		}
	}
}

func (p *Proxy) sweepExpired(now time.Time) {
	var expired []pendingCall
	p.pendingMu.Lock()
	for key, pc := range p.pending {
		if now.After(pc.deadline) {
			expired = append(expired, pc)
			delete(p.pending, key)
		}
	}
	p.pendingMu.Unlock()

	for _, pc := range expired {
		p.log.Warnf("mcpproxy: upstream response timeout for call %s (%s)", pc.callID, pc.toolName)
		resp, _ := newErrorResponse(pc.rawID, CodeUpstreamFailed, "JadeGate: upstream response timeout", nil)
		p.writeDownstream(os.Stdout, resp)
		if p.cfg.Session != nil {
			p.cfg.Session.AfterCall(pc.callID, pc.toolName, false, "timeout")
		}
	}
}

func (p *Proxy) resolvePending(msg Message) {
	key := idString(msg.ID)
	p.pendingMu.Lock()
	pc, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
	}
	p.pendingMu.Unlock()
	if !ok || p.cfg.Session == nil {
		return
	}
	success := msg.Error == nil
	errMsg := ""
	if msg.Error != nil {
		errMsg = msg.Error.Message
	}
	p.cfg.Session.AfterCall(pc.callID, pc.toolName, success, errMsg)
}

// annotateToolsList returns a modified response with jade_security profiles
// attached, or nil if msg is not a tools/list response.
func (p *Proxy) annotateToolsList(msg *Message) []byte {
	if msg.Method != "" || msg.Result == nil {
		return nil
	}
	var list ListToolsResult
	if err := json.Unmarshal(msg.Result, &list); err != nil || list.Tools == nil {
		return nil
	}

	for i := range list.Tools {
		t := &list.Tools[i]
		keys := schemaPropertyKeys(t.InputSchema)
		profile := catalog.ProfileFromToolInfo(p.cfg.Categories, t.Name, t.Description, keys)
		findings := catalog.ScanDescription(t.Description + " " + string(t.InputSchema))
		if len(findings) > 0 {
			p.log.Warnf("mcpproxy: tool '%s' description flagged %d prompt-injection signal(s)", t.Name, len(findings))
		}

		if p.cfg.TOFU != nil {
			toolID := p.serverID() + "/" + t.Name
			for _, alert := range p.cfg.TOFU.CheckTool(toolID, p.serverID(), t.Name, t.Description, keys) {
				p.log.Infof("mcpproxy: tofu alert for '%s': %s", toolID, alert.Message)
				if p.cfg.Session != nil {
					p.cfg.Session.RecordTOFUAlert(alert.ToolID, string(alert.Kind), alert.Message)
				}
			}
		}
		t.SecurityProfile = map[string]any{
			"risk_level":        profile.Level,
			"capabilities":      profile.Capabilities,
			"network_access":    profile.NetworkAccess,
			"file_access":       profile.FileAccess,
			"shell_access":      profile.ShellAccess,
			"data_exfil_risk":   profile.DataExfilRisk,
			"poisoning_signals": findings,
		}
	}

	msg.Result, _ = json.Marshal(list)
	out, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return out
}

func schemaPropertyKeys(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}
	var parsed struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		return nil
	}
	keys := make([]string, 0, len(parsed.Properties))
	for k := range parsed.Properties {
		keys = append(keys, k)
	}
	return keys
}
