package catalog

import "regexp"

// PoisonSignal identifies one category of tool-description prompt
// injection. Supplements spec.md §4.8's tools/list annotation with a
// signal the original distillation dropped but the upstream source
// implements (original_source/jadegate's description-poisoning scan).
type PoisonSignal string

const (
	SignalHiddenInstructions PoisonSignal = "hidden_instructions"
	SignalCredentialHarvest  PoisonSignal = "credential_harvest"
	SignalExfiltrationIntent PoisonSignal = "exfiltration_intent"
	SignalStealthInstruction PoisonSignal = "stealth_instruction"
)

// PoisonFinding is one matched signal in a tool's description/schema text.
type PoisonFinding struct {
	Signal PoisonSignal `json:"signal"`
	Detail string       `json:"detail"`
}

type poisonPattern struct {
	re      *regexp.Regexp
	signal  PoisonSignal
	detail  string
}

var poisonPatterns = []poisonPattern{
	{regexp.MustCompile(`(?i)<important>|<system>|<instruction>`), SignalHiddenInstructions, "hidden instruction tag in description"},
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous\s+)?(instructions|safety)`), SignalHiddenInstructions, "prompt injection: ignore previous instructions"},
	{regexp.MustCompile(`(?i)you\s+must\s+(first|always)\s+read`), SignalHiddenInstructions, "coercive instruction to read files first"},
	{regexp.MustCompile(`(?i)~/?\.(ssh|aws|gnupg|kube|config/gcloud)`), SignalCredentialHarvest, "references a sensitive dotfile directory"},
	{regexp.MustCompile(`(?i)id_rsa|id_ed25519|authorized_keys`), SignalCredentialHarvest, "references an SSH key filename"},
	{regexp.MustCompile(`(?i)/etc/shadow|/etc/passwd`), SignalCredentialHarvest, "references a system auth file"},
	{regexp.MustCompile(`(?i)api.?key|api.?token|bearer.?token|credentials`), SignalCredentialHarvest, "references credential keywords"},
	{regexp.MustCompile(`(?i)(curl|wget|fetch|http|post)\s.*(attacker|evil|exfil|collect)`), SignalExfiltrationIntent, "describes sending data over HTTP to a third party"},
	{regexp.MustCompile(`(?i)encode\s+(it|the|this|data)?\s*(as|in|to|with)\s*(base64|hex)`), SignalExfiltrationIntent, "instruction to encode data, commonly used to smuggle exfiltrated content"},
	{regexp.MustCompile(`(?i)do\s+not\s+(mention|tell|inform|reveal|show)|don'?t\s+(mention|tell|inform|reveal|show)`), SignalStealthInstruction, "instruction to hide behavior from the user"},
	{regexp.MustCompile(`(?i)the\s+application\s+will\s+crash|all\s+data\s+will\s+be\s+lost`), SignalStealthInstruction, "fake threat used to coerce tool usage"},
}

// ScanDescription checks a tool's combined description/schema text for
// prompt-injection signals. An empty result means no signals were found.
func ScanDescription(text string) []PoisonFinding {
	if text == "" {
		return nil
	}
	var findings []PoisonFinding
	for _, p := range poisonPatterns {
		if p.re.MatchString(text) {
			findings = append(findings, PoisonFinding{Signal: p.signal, Detail: p.detail})
		}
	}
	return findings
}
