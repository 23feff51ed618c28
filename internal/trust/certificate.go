// Package trust implements JadeGate's local per-tool capability baseline:
// signed certificates, a Bayesian trust score, and the file-backed store
// and trust-on-first-use checker built on top of it (spec.md §4.4/§4.5).
package trust

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/jadegate/jadegate/internal/catalog"
)

// Certificate is a signed-or-unsigned record describing a tool's identity,
// capabilities, risk, and local trust score. Identity is ToolID.
type Certificate struct {
	ToolID       string              `json:"tool_id"`
	ServerID     string              `json:"server_id,omitempty"`
	DisplayName  string              `json:"display_name,omitempty"`
	Description  string              `json:"description,omitempty"`
	RiskProfile  catalog.RiskProfile `json:"risk_profile"`
	TrustScore   float64             `json:"trust_score"`
	SuccessCount int                 `json:"success_count"`
	FailureCount int                 `json:"failure_count"`
	FirstSeen    time.Time           `json:"first_seen"`
	LastSeen     time.Time           `json:"last_seen"`
	SignedBy     string              `json:"signed_by,omitempty"`
	Signature    string              `json:"signature,omitempty"`
	Version      string              `json:"version"`
}

// NewCertificate creates a fresh certificate with the 0.5 Bayesian prior
// and no signature.
func NewCertificate(toolID, serverID, displayName, description string, profile catalog.RiskProfile) Certificate {
	now := time.Now()
	return Certificate{
		ToolID:      toolID,
		ServerID:    serverID,
		DisplayName: displayName,
		Description: description,
		RiskProfile: profile,
		TrustScore:  0.5,
		FirstSeen:   now,
		LastSeen:    now,
		Version:     "1.0",
	}
}

// canonicalBytes renders the signable subset of the certificate — excludes
// TrustScore and the success/failure counters, which are local observations,
// not attestations — as sorted-key, minified JSON, matching the Python
// original's `json.dumps(..., sort_keys=True, separators=(",", ":"))`
// (spec.md §4.4/§9) so fingerprints are byte-for-byte reproducible across
// implementations. encoding/json sorts map[string]any keys alphabetically
// at every nesting level, but emits struct fields in declaration order —
// so the subset is built as nested maps, not structs, here. Capability
// order is preserved as given (a JSON array's element order isn't touched
// by sort_keys, and catalog.ProfileFromToolInfo already builds it in the
// same fixed order the Python original does).
func (c Certificate) canonicalBytes() []byte {
	caps := c.RiskProfile.Capabilities
	if caps == nil {
		caps = []string{}
	}
	riskProfile := map[string]any{
		"level":           string(c.RiskProfile.Level),
		"capabilities":    caps,
		"network_access":  c.RiskProfile.NetworkAccess,
		"file_access":     c.RiskProfile.FileAccess,
		"shell_access":    c.RiskProfile.ShellAccess,
		"data_exfil_risk": c.RiskProfile.DataExfilRisk,
	}
	sub := map[string]any{
		"tool_id":      c.ToolID,
		"server_id":    c.ServerID,
		"display_name": c.DisplayName,
		"risk_profile": riskProfile,
		"version":      c.Version,
	}
	data, _ := json.Marshal(sub)
	return data
}

// ComputeFingerprint returns the first 32 hex chars of SHA-256 over the
// canonicalized signable subset.
func (c Certificate) ComputeFingerprint() string {
	sum := sha256.Sum256(c.canonicalBytes())
	return hex.EncodeToString(sum[:])[:32]
}

// UpdateTrust performs the Laplace-smoothed Bernoulli posterior mean
// update: score = (success+1) / (success+fail+2). Returns the new score.
func (c *Certificate) UpdateTrust(success bool) float64 {
	if success {
		c.SuccessCount++
	} else {
		c.FailureCount++
	}
	alpha := float64(c.SuccessCount) + 1
	beta := float64(c.FailureCount) + 1
	c.TrustScore = alpha / (alpha + beta)
	c.LastSeen = time.Now()
	return c.TrustScore
}

// Sign signs the certificate's canonical signable subset with sk and
// records the public key's fingerprint as SignedBy.
func (c *Certificate) Sign(sk ed25519.PrivateKey) {
	sig := ed25519.Sign(sk, c.canonicalBytes())
	c.Signature = hex.EncodeToString(sig)
	pk := sk.Public().(ed25519.PublicKey)
	sum := sha256.Sum256(pk)
	c.SignedBy = hex.EncodeToString(sum[:])[:16]
}

// Verify re-canonicalizes the certificate and checks the signature against
// pk. A certificate with no signature never verifies.
func (c Certificate) Verify(pk ed25519.PublicKey) bool {
	if c.Signature == "" {
		return false
	}
	sig, err := hex.DecodeString(c.Signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(pk, c.canonicalBytes(), sig)
}
