package trust

import (
	"crypto/ed25519"
	"testing"

	"github.com/jadegate/jadegate/internal/catalog"
)

func TestNewCertificateHasNeutralPrior(t *testing.T) {
	c := NewCertificate("tool-1", "server-1", "Tool One", "does things", catalog.RiskProfile{Level: catalog.RiskLow})
	if c.TrustScore != 0.5 {
		t.Errorf("expected a fresh certificate to start at trust 0.5, got %v", c.TrustScore)
	}
	if c.Signature != "" {
		t.Error("expected a fresh certificate to be unsigned")
	}
}

func TestUpdateTrustConvergesWithSuccesses(t *testing.T) {
	c := NewCertificate("tool-1", "", "", "", catalog.RiskProfile{})
	var score float64
	for i := 0; i < 20; i++ {
		score = c.UpdateTrust(true)
	}
	if score < 0.9 {
		t.Errorf("expected trust score to climb toward 1 after many successes, got %v", score)
	}
}

func TestUpdateTrustFallsWithFailures(t *testing.T) {
	c := NewCertificate("tool-1", "", "", "", catalog.RiskProfile{})
	var score float64
	for i := 0; i < 20; i++ {
		score = c.UpdateTrust(false)
	}
	if score > 0.1 {
		t.Errorf("expected trust score to fall toward 0 after many failures, got %v", score)
	}
}

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	c := NewCertificate("tool-1", "server-1", "Tool One", "does things",
		catalog.RiskProfile{Level: catalog.RiskMedium, Capabilities: []string{"network"}})
	c.Sign(priv)

	if !c.Verify(pub) {
		t.Error("expected signature to verify against the signing key's public half")
	}

	otherPub, _, _ := ed25519.GenerateKey(nil)
	if c.Verify(otherPub) {
		t.Error("expected signature to fail verification against an unrelated key")
	}
}

func TestVerifyUnsignedCertificateFails(t *testing.T) {
	c := NewCertificate("tool-1", "", "", "", catalog.RiskProfile{})
	pub, _, _ := ed25519.GenerateKey(nil)
	if c.Verify(pub) {
		t.Error("expected an unsigned certificate to never verify")
	}
}

func TestComputeFingerprintStableAcrossRepeatedCalls(t *testing.T) {
	c := NewCertificate("tool-1", "s", "n", "d", catalog.RiskProfile{Capabilities: []string{"network", "filesystem"}})
	if c.ComputeFingerprint() != c.ComputeFingerprint() {
		t.Error("expected repeated fingerprint computation on the same certificate to be stable")
	}
}

func TestComputeFingerprintDiffersOnCapabilityOrder(t *testing.T) {
	// Capability order is preserved verbatim (mirrors the Python original,
	// where json.dumps(sort_keys=True) sorts dict keys but never touches
	// list element order), so two certificates differing only in the order
	// their capabilities were appended must fingerprint differently.
	c1 := NewCertificate("tool-1", "s", "n", "d", catalog.RiskProfile{Capabilities: []string{"network", "filesystem"}})
	c2 := NewCertificate("tool-1", "s", "n", "d", catalog.RiskProfile{Capabilities: []string{"filesystem", "network"}})
	if c1.ComputeFingerprint() == c2.ComputeFingerprint() {
		t.Error("expected fingerprint to depend on capability order, matching the Python original's list semantics")
	}
}

// TestComputeFingerprintMatchesPythonFixture pins canonicalBytes' output
// against a fingerprint computed independently from the exact sorted-key,
// minified JSON string the Python original (_examples/original_source/
// jadegate/trust/certificate.py) would produce for the same certificate:
//
//	{"display_name":"Read File","risk_profile":{"capabilities":["filesystem"],
//	"data_exfil_risk":false,"file_access":true,"level":"medium",
//	"network_access":false,"shell_access":false},"server_id":"server",
//	"tool_id":"server/read_file","version":"1.0"}
func TestComputeFingerprintMatchesPythonFixture(t *testing.T) {
	c := NewCertificate("server/read_file", "server", "Read File", "reads a file", catalog.RiskProfile{
		Level:       catalog.RiskMedium,
		Capabilities: []string{"filesystem"},
		FileAccess:  true,
	})
	const want = "3bdd35c370e20995317aaa1c76d05de9"
	if got := c.ComputeFingerprint(); got != want {
		t.Errorf("fingerprint = %s, want %s (sorted-key JSON must match the Python original byte-for-byte)", got, want)
	}
}
