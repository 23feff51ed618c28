package catalog

// RiskLevel orders tool risk from least to most dangerous. The numeric
// value is the ordering used by TOFU's escalation check (spec.md §4.5).
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "unknown"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = map[RiskLevel]int{
	RiskUnknown:  -1,
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Less reports whether a ranks strictly below b.
func (a RiskLevel) Less(b RiskLevel) bool {
	return riskOrder[a] < riskOrder[b]
}

// RiskProfile is the derived capability/risk assessment for a tool, built
// from its name, description, and (optionally) its input schema keys.
type RiskProfile struct {
	Level          RiskLevel `json:"level"`
	Capabilities   []string  `json:"capabilities"`
	NetworkAccess  bool      `json:"network_access"`
	FileAccess     bool      `json:"file_access"`
	ShellAccess    bool      `json:"shell_access"`
	DataExfilRisk  bool      `json:"data_exfil_risk"`
}

// ProfileFromToolInfo derives a RiskProfile from a tool's name, description,
// and input schema property names, using the keyword tables in cats.
// Mirrors spec.md §4.4/§4.5's shared heuristic.
func ProfileFromToolInfo(cats Categories, name, description string, schemaKeys []string) RiskProfile {
	text := name + " " + description
	for _, k := range schemaKeys {
		text += " " + k
	}

	p := RiskProfile{Level: RiskLow}

	if MatchesAny(text, cats.NetworkKeywords) {
		p.NetworkAccess = true
		p.Capabilities = append(p.Capabilities, "network")
	}
	if MatchesAny(text, cats.FileKeywords) {
		p.FileAccess = true
		p.Capabilities = append(p.Capabilities, "filesystem")
	}
	if MatchesAny(text, cats.ShellKeywords) {
		p.ShellAccess = true
		p.Capabilities = append(p.Capabilities, "shell")
	}
	if MatchesAny(text, cats.SendKeywords) {
		p.DataExfilRisk = true
		p.Capabilities = append(p.Capabilities, "data_send")
	}
	if MatchesAny(text, cats.ReadOnlyWords) {
		p.Capabilities = append(p.Capabilities, "read_only")
	}

	switch {
	case p.ShellAccess:
		p.Level = RiskCritical
	case p.NetworkAccess && p.FileAccess:
		p.Level = RiskHigh
	case p.NetworkAccess || p.DataExfilRisk:
		p.Level = RiskMedium
	case p.FileAccess:
		p.Level = RiskMedium
	default:
		p.Level = RiskLow
	}
	return p
}

// CapabilitySet returns the profile's capabilities as a set for diffing.
func (p RiskProfile) CapabilitySet() map[string]bool {
	out := make(map[string]bool, len(p.Capabilities))
	for _, c := range p.Capabilities {
		out[c] = true
	}
	return out
}
