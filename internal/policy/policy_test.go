package policy

import (
	"path/filepath"
	"testing"
)

func TestDefaultBlocksShellExec(t *testing.T) {
	p := Default()
	if !p.IsActionBlocked("shell_exec") {
		t.Error("expected shell_exec to be blocked by default")
	}
	if !p.NeedsApproval("git_push") {
		t.Error("expected git_push to require approval by default")
	}
}

func TestIsDomainAllowedBlocklistWinsOverAllowlist(t *testing.T) {
	p := Default()
	p.NetworkAllowlist = []string{"169.254.169.254"}
	if p.IsDomainAllowed("169.254.169.254") {
		t.Error("expected the cloud metadata IP to be blocked even when explicitly allowlisted")
	}
}

func TestIsDomainAllowedWildcardSubdomain(t *testing.T) {
	p := Default()
	p.NetworkAllowlist = []string{"*.example.com"}
	if !p.IsDomainAllowed("api.example.com") {
		t.Error("expected a wildcard allowlist entry to match a subdomain")
	}
	if p.IsDomainAllowed("evil.com") {
		t.Error("expected a host outside the allowlist to be denied")
	}
}

func TestIsFilePathAllowedBlocklistSubstring(t *testing.T) {
	p := Default()
	if p.IsFilePathAllowed("/home/user/.ssh/id_rsa", ModeRead) {
		t.Error("expected an ssh private key path to be blocked")
	}
}

func TestIsUploadAllowedExtension(t *testing.T) {
	p := Default()
	if !p.IsUploadAllowed("report.pdf") {
		t.Error("expected .pdf to be an allowed upload extension")
	}
	if p.IsUploadAllowed("payload.exe") {
		t.Error("expected .exe to not be an allowed upload extension")
	}
}

func TestMergeUnionsListsAndOverridesChangedScalars(t *testing.T) {
	base := Default()
	override := Policy{
		BlockedActions:    []string{"custom_action"},
		MaxCallDepth:      5,
		BreakerThreshold:  Default().BreakerThreshold, // unchanged, should not override
	}
	merged := base.Merge(override)

	if !merged.IsActionBlocked("shell_exec") || !merged.IsActionBlocked("custom_action") {
		t.Errorf("expected merged blocked actions to union base and override, got %v", merged.BlockedActions)
	}
	if merged.MaxCallDepth != 5 {
		t.Errorf("expected overridden MaxCallDepth to win, got %d", merged.MaxCallDepth)
	}
	if merged.BreakerThreshold != base.BreakerThreshold {
		t.Errorf("expected unchanged BreakerThreshold to keep the base value, got %d", merged.BreakerThreshold)
	}
}

func TestSaveAndFromFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	p := Strict()
	if err := p.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if loaded.MaxCallDepth != p.MaxCallDepth || loaded.BreakerThreshold != p.BreakerThreshold {
		t.Errorf("expected loaded policy to match saved policy, got %+v", loaded)
	}
}

func TestFromFileMissingReturnsError(t *testing.T) {
	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing policy file")
	}
}
