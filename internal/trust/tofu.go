package trust

import (
	"fmt"
	"time"

	"github.com/jadegate/jadegate/internal/catalog"
)

// AlertKind distinguishes why TrustOnFirstUse raised an alert.
type AlertKind string

const (
	AlertNewTool           AlertKind = "new_tool"
	AlertRiskEscalation    AlertKind = "risk_escalation"
	AlertNewCapabilities   AlertKind = "new_capabilities"
)

// Alert is one observation raised by CheckTool.
type Alert struct {
	Kind      AlertKind
	ToolID    string
	Message   string
	Timestamp time.Time
}

// TrustOnFirstUse baselines a tool's certificate the first time it is seen
// and flags subsequent sightings that escalate risk or add capabilities
// beyond the baseline (spec.md §4.5).
//
// Open Question resolved in SPEC_FULL.md §4: the baseline risk level is
// rebaselined to the newly observed level on every encounter, not frozen at
// first sight — so an alert fires once per escalation rather than on every
// call after the first one. Capabilities accumulate instead: a tool is
// only flagged again if it exhibits a capability never seen before.
type TrustOnFirstUse struct {
	store *Store
	cats  catalog.Categories
}

// NewTrustOnFirstUse wires a checker against store, using cats to derive
// risk profiles for tools seen without an explicit one.
func NewTrustOnFirstUse(store *Store, cats catalog.Categories) *TrustOnFirstUse {
	return &TrustOnFirstUse{store: store, cats: cats}
}

// CheckTool baselines or updates the certificate for toolID and returns any
// alerts raised by this sighting. schemaKeys is the flattened set of input
// schema property names, used by the risk heuristic.
func (t *TrustOnFirstUse) CheckTool(toolID, serverID, name, description string, schemaKeys []string) []Alert {
	profile := catalog.ProfileFromToolInfo(t.cats, name, description, schemaKeys)
	now := time.Now()

	existing, ok := t.store.Get(toolID)
	if !ok {
		cert := NewCertificate(toolID, serverID, name, description, profile)
		_ = t.store.Save(cert)
		return []Alert{{
			Kind:      AlertNewTool,
			ToolID:    toolID,
			Message:   fmt.Sprintf("first sighting of tool '%s' (risk=%s)", toolID, profile.Level),
			Timestamp: now,
		}}
	}

	var alerts []Alert

	if existing.RiskProfile.Level.Less(profile.Level) {
		alerts = append(alerts, Alert{
			Kind:      AlertRiskEscalation,
			ToolID:    toolID,
			Message:   fmt.Sprintf("tool '%s' risk level escalated from %s to %s", toolID, existing.RiskProfile.Level, profile.Level),
			Timestamp: now,
		})
	}

	newCaps := diffCapabilities(existing.RiskProfile.CapabilitySet(), profile.Capabilities)
	if len(newCaps) > 0 {
		alerts = append(alerts, Alert{
			Kind:      AlertNewCapabilities,
			ToolID:    toolID,
			Message:   fmt.Sprintf("tool '%s' exhibited new capabilities: %v", toolID, newCaps),
			Timestamp: now,
		})
	}

	existing.RiskProfile = mergeCapabilities(existing.RiskProfile, profile)
	existing.Description = description
	existing.LastSeen = now
	_ = t.store.Save(existing)

	return alerts
}

func diffCapabilities(seen map[string]bool, observed []string) []string {
	var out []string
	for _, c := range observed {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return out
}

// mergeCapabilities rebaselines risk to the newly observed level while
// accumulating capabilities across sightings (see TrustOnFirstUse doc).
func mergeCapabilities(existing, observed catalog.RiskProfile) catalog.RiskProfile {
	seen := existing.CapabilitySet()
	caps := append([]string{}, existing.Capabilities...)
	for _, c := range observed.Capabilities {
		if !seen[c] {
			caps = append(caps, c)
			seen[c] = true
		}
	}
	return catalog.RiskProfile{
		Level:         observed.Level,
		Capabilities:  caps,
		NetworkAccess: existing.NetworkAccess || observed.NetworkAccess,
		FileAccess:    existing.FileAccess || observed.FileAccess,
		ShellAccess:   existing.ShellAccess || observed.ShellAccess,
		DataExfilRisk: existing.DataExfilRisk || observed.DataExfilRisk,
	}
}
