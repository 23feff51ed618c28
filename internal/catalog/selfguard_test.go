package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckSelfProtectionFlagsJadeGateConfig(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	path := filepath.Join(home, ".jadegate", "policy.json")

	findings := CheckSelfProtection(map[string]any{"path": path})
	if len(findings) == 0 {
		t.Fatalf("expected a finding for writes to %s", path)
	}
	if findings[0].Category != "jadegate-config" {
		t.Errorf("expected jadegate-config category, got %s", findings[0].Category)
	}
}

func TestCheckSelfProtectionIgnoresOrdinaryPaths(t *testing.T) {
	findings := CheckSelfProtection(map[string]any{"path": "/tmp/scratch/output.txt"})
	if len(findings) != 0 {
		t.Errorf("expected no findings for an unrelated path, got %v", findings)
	}
}
