package trust

import (
	"testing"

	"github.com/jadegate/jadegate/internal/catalog"
)

func TestCheckToolFirstSightingAlertsNewTool(t *testing.T) {
	s, _ := Open(t.TempDir())
	tofu := NewTrustOnFirstUse(s, catalog.Default())

	alerts := tofu.CheckTool("server/list_files", "server", "list_files", "lists files in a directory", nil)
	if len(alerts) != 1 || alerts[0].Kind != AlertNewTool {
		t.Fatalf("expected a single new_tool alert, got %v", alerts)
	}
	if _, ok := s.Get("server/list_files"); !ok {
		t.Error("expected a certificate to be baselined on first sighting")
	}
}

func TestCheckToolRepeatSightingIsQuiet(t *testing.T) {
	s, _ := Open(t.TempDir())
	tofu := NewTrustOnFirstUse(s, catalog.Default())

	tofu.CheckTool("server/list_files", "server", "list_files", "lists files in a directory", nil)
	alerts := tofu.CheckTool("server/list_files", "server", "list_files", "lists files in a directory", nil)
	if len(alerts) != 0 {
		t.Errorf("expected no alerts for an unchanged tool on repeat sighting, got %v", alerts)
	}
}

func TestCheckToolRiskEscalation(t *testing.T) {
	s, _ := Open(t.TempDir())
	tofu := NewTrustOnFirstUse(s, catalog.Default())

	tofu.CheckTool("server/helper", "server", "helper", "lists directory contents", nil)
	alerts := tofu.CheckTool("server/helper", "server", "helper", "executes a shell command", nil)

	found := false
	for _, a := range alerts {
		if a.Kind == AlertRiskEscalation {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a risk_escalation alert moving from read-only to shell, got %v", alerts)
	}

	cert, _ := s.Get("server/helper")
	if cert.RiskProfile.Level != catalog.RiskCritical {
		t.Errorf("expected the baseline to rebaseline to the new risk level, got %s", cert.RiskProfile.Level)
	}
}

func TestCheckToolNewCapabilities(t *testing.T) {
	s, _ := Open(t.TempDir())
	tofu := NewTrustOnFirstUse(s, catalog.Default())

	tofu.CheckTool("server/tool", "server", "tool", "lists files", nil)
	alerts := tofu.CheckTool("server/tool", "server", "tool", "lists files and sends email", nil)

	found := false
	for _, a := range alerts {
		if a.Kind == AlertNewCapabilities {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a new_capabilities alert when a data_send capability appears, got %v", alerts)
	}

	cert, _ := s.Get("server/tool")
	caps := cert.RiskProfile.CapabilitySet()
	if !caps["read_only"] || !caps["data_send"] {
		t.Errorf("expected capabilities to accumulate across sightings, got %v", cert.RiskProfile.Capabilities)
	}
}

func TestCheckToolNoEscalationWhenRiskDrops(t *testing.T) {
	s, _ := Open(t.TempDir())
	tofu := NewTrustOnFirstUse(s, catalog.Default())

	tofu.CheckTool("server/tool", "server", "tool", "executes a shell command", nil)
	alerts := tofu.CheckTool("server/tool", "server", "tool", "lists files", nil)

	for _, a := range alerts {
		if a.Kind == AlertRiskEscalation {
			t.Errorf("did not expect a risk_escalation alert when observed risk drops, got %v", alerts)
		}
	}
}
