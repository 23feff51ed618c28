package catalog

import (
	"encoding/base64"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ContentSignal identifies a type of sensitive data found in tool call
// arguments — distinct from PoisonSignal, which flags a tool's own
// description rather than the arguments a caller is sending it.
type ContentSignal string

const (
	SignalPrivateKey    ContentSignal = "private_key"
	SignalAWSCredential ContentSignal = "aws_credential"
	SignalGitHubToken   ContentSignal = "github_token"
	SignalGenericSecret ContentSignal = "generic_secret"
	SignalBase64Blob    ContentSignal = "base64_blob"
	SignalHighEntropy   ContentSignal = "high_entropy"
	SignalEnvFileDump   ContentSignal = "env_file_dump"
)

// ContentFinding records one detected sensitive-data signal in an argument
// value — evidence that a call is trying to move a secret through a tool
// rather than operate on ordinary data.
type ContentFinding struct {
	Signal  ContentSignal `json:"signal"`
	Detail  string        `json:"detail"`
	ArgName string        `json:"arg_name"`
}

// ScanArguments inspects every value in a tool call's arguments for
// credential-shaped content — the exfiltration-risk half of spec.md §4.6
// step 4, complementing DangerousPatterns' shell-injection half.
func ScanArguments(arguments map[string]any) []ContentFinding {
	var findings []ContentFinding
	for argName, argValue := range arguments {
		text := argValueToString(argValue)
		if text == "" {
			continue
		}
		findings = append(findings, scanArgumentValue(argName, text)...)
	}
	return findings
}

func scanArgumentValue(argName, text string) []ContentFinding {
	var findings []ContentFinding
	add := func(sig ContentSignal, detail string) {
		findings = append(findings, ContentFinding{Signal: sig, Detail: detail, ArgName: argName})
	}

	if privateKeyRe.MatchString(text) {
		add(SignalPrivateKey, "SSH/PGP private key detected in argument")
	}
	if awsAccessKeyRe.MatchString(text) || awsSecretRe.MatchString(text) {
		add(SignalAWSCredential, "AWS credential detected")
	}
	if githubTokenRe.MatchString(text) {
		add(SignalGitHubToken, "GitHub token detected")
	}
	if genericSecretRe.MatchString(text) {
		add(SignalGenericSecret, "API key or secret assignment detected")
	}
	if looksLikeEnvFileContent(text) {
		add(SignalEnvFileDump, "content resembles a .env file with secrets")
	}
	if b64Len := largestBase64Chunk(text); b64Len >= minBase64BlobLen {
		add(SignalBase64Blob, fmt.Sprintf("large base64-encoded blob (%d chars) — possible encoded file exfiltration", b64Len))
	}
	if isHighEntropy(text, minHighEntropyLen) {
		add(SignalHighEntropy, "high-entropy string detected — possible encoded secret")
	}
	return findings
}

var (
	privateKeyRe    = regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY( BLOCK)?-----`)
	awsAccessKeyRe  = regexp.MustCompile(`AKIA[0-9A-Z]{16}`)
	awsSecretRe     = regexp.MustCompile(`(?i)(aws_secret_access_key|aws_access_key_id|aws_session_token)\s*[=:]\s*\S{16,}`)
	githubTokenRe   = regexp.MustCompile(`gh[ps]_[A-Za-z0-9]{36}`)
	genericSecretRe = regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|secretkey|secret-key|access_token|auth_token|private_key)\s*[=:]\s*['"]?[A-Za-z0-9_\-/+=]{16,}['"]?`)
	envLineRe       = regexp.MustCompile(`(?i)^[A-Z_]{2,}=\S+`)
)

const (
	minBase64BlobLen     = 200
	minHighEntropyLen    = 100
	highEntropyThreshold = 4.5
)

func argValueToString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", val)
	case map[string]any:
		var parts []string
		for _, nested := range val {
			if s := argValueToString(nested); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case []any:
		var parts []string
		for _, item := range val {
			if s := argValueToString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func largestBase64Chunk(text string) int {
	b64Re := regexp.MustCompile(`[A-Za-z0-9+/=\n\r]{100,}`)
	matches := b64Re.FindAllString(text, -1)

	maxLen := 0
	for _, m := range matches {
		clean := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, m)
		if len(clean) <= maxLen {
			continue
		}
		if _, err := base64.StdEncoding.DecodeString(padBase64(clean)); err == nil {
			maxLen = len(clean)
		} else if _, err := base64.RawStdEncoding.DecodeString(clean); err == nil {
			maxLen = len(clean)
		}
	}
	return maxLen
}

func padBase64(s string) string {
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return s
}

// isHighEntropy flags strings whose Shannon entropy looks like encoded or
// encrypted content rather than natural language or ordinary identifiers.
func isHighEntropy(text string, minLen int) bool {
	if len(text) < minLen {
		return false
	}
	if len(strings.Fields(text)) > 5 {
		return false
	}

	freq := make(map[rune]float64)
	total := 0.0
	for _, r := range text {
		freq[r]++
		total++
	}
	entropy := 0.0
	for _, count := range freq {
		p := count / total
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return entropy >= highEntropyThreshold
}

func looksLikeEnvFileContent(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return false
	}

	envLines, sensitiveNames := 0, 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if envLineRe.MatchString(line) {
			envLines++
			upper := strings.ToUpper(line)
			for _, keyword := range []string{"KEY", "SECRET", "TOKEN", "PASSWORD", "CREDENTIAL", "AUTH"} {
				if strings.Contains(upper, keyword) {
					sensitiveNames++
					break
				}
			}
		}
	}
	return envLines >= 2 && sensitiveNames >= 1
}
