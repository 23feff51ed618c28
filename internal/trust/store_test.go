package trust

import (
	"path/filepath"
	"testing"

	"github.com/jadegate/jadegate/internal/catalog"
)

func TestStoreSaveAndReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	cert := NewCertificate("server/read_file", "server", "Read File", "reads a file", catalog.RiskProfile{Level: catalog.RiskMedium})
	if err := s.Save(cert); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Get("server/read_file")
	if !ok {
		t.Fatal("expected certificate to survive a reopen")
	}
	if got.DisplayName != "Read File" {
		t.Errorf("expected DisplayName to round-trip, got %q", got.DisplayName)
	}
}

func TestStoreSafeFileNameEscapesSlashes(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)
	cert := NewCertificate("server/weird tool", "", "", "", catalog.RiskProfile{})
	if err := s.Save(cert); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// The on-disk filename must not contain a path separator derived from ToolID.
	entries, _ := filepath.Glob(filepath.Join(dir, "*.cert.json"))
	if len(entries) != 1 {
		t.Fatalf("expected exactly one cert file, got %v", entries)
	}
}

func TestStoreIsTrustedThreshold(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)
	cert := NewCertificate("tool-1", "", "", "", catalog.RiskProfile{})
	cert.TrustScore = 0.7
	s.Save(cert)

	if !s.IsTrusted("tool-1", 0.6) {
		t.Error("expected tool-1 to be trusted at threshold 0.6")
	}
	if s.IsTrusted("tool-1", 0.8) {
		t.Error("expected tool-1 to not be trusted at threshold 0.8")
	}
	if s.IsTrusted("unknown-tool", 0.0) {
		t.Error("expected an unknown tool to never be trusted")
	}
}

func TestStoreUpdateTrustPersists(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)
	s.Save(NewCertificate("tool-1", "", "", "", catalog.RiskProfile{}))

	score, ok := s.UpdateTrust("tool-1", true)
	if !ok {
		t.Fatal("expected UpdateTrust to find the certificate")
	}
	if score <= 0.5 {
		t.Errorf("expected trust score to rise after a success, got %v", score)
	}

	reopened, _ := Open(dir)
	got, _ := reopened.Get("tool-1")
	if got.SuccessCount != 1 {
		t.Errorf("expected the success count to persist, got %d", got.SuccessCount)
	}
}

func TestStoreSummary(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)

	trusted := NewCertificate("tool-trusted", "", "", "", catalog.RiskProfile{Level: catalog.RiskLow})
	trusted.TrustScore = 0.9
	s.Save(trusted)

	risky := NewCertificate("tool-risky", "", "", "", catalog.RiskProfile{Level: catalog.RiskCritical})
	s.Save(risky)

	sum := s.Summary()
	if sum.TotalCertificates != 2 {
		t.Errorf("expected 2 certificates, got %d", sum.TotalCertificates)
	}
	if sum.Trusted != 1 {
		t.Errorf("expected 1 trusted certificate, got %d", sum.Trusted)
	}
	if sum.HighRisk != 1 {
		t.Errorf("expected 1 high-risk certificate, got %d", sum.HighRisk)
	}
}
