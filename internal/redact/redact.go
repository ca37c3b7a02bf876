// Package redact scans memory content against a closed, declarative table of
// secret patterns before it ever reaches the extractor or the store. Each
// pattern's policy (reject or mask) is fixed at build time, not caller
// controlled, matching the teacher's declarative approach to security
// pattern tables (see internal/security/ssrf.go's privateRanges list).
package redact

import "regexp"

// Policy is the build-time decision for a matched pattern.
type Policy int

const (
	// PolicyReject aborts ingest with SecretDetected, naming the pattern but
	// never the matched value.
	PolicyReject Policy = iota
	// PolicyMask replaces the match with a fixed sentinel and lets ingest
	// proceed, attaching a SecretMasked warning.
	PolicyMask
)

// Pattern is one entry in the closed secret-pattern table.
type Pattern struct {
	Name   string
	Policy Policy
	re     *regexp.Regexp
}

const maskSentinel = "[REDACTED]"

// patterns is the closed, declarative table scanned in order. High-certainty
// structural matches (private keys, connection strings with embedded
// credentials) reject; lower-certainty token-shaped matches mask so a false
// positive doesn't block an otherwise-useful memory.
var patterns = []Pattern{
	{
		Name:   "pem_private_key",
		Policy: PolicyReject,
		re:     regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`),
	},
	{
		Name:   "aws_access_key_id",
		Policy: PolicyReject,
		re:     regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`),
	},
	{
		Name:   "aws_secret_access_key",
		Policy: PolicyReject,
		re:     regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`),
	},
	{
		Name:   "connection_string_with_credentials",
		Policy: PolicyReject,
		re:     regexp.MustCompile(`(?i)\b(?:postgres|postgresql|mysql|mongodb|redis)://[^:\s]+:[^@\s]+@[^\s]+`),
	},
	{
		Name:   "github_token",
		Policy: PolicyMask,
		re:     regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,255}\b`),
	},
	{
		Name:   "slack_token",
		Policy: PolicyMask,
		re:     regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,72}\b`),
	},
	{
		Name:   "stripe_key",
		Policy: PolicyMask,
		re:     regexp.MustCompile(`\b(?:sk|pk|rk)_(?:live|test)_[A-Za-z0-9]{16,99}\b`),
	},
	{
		Name:   "generic_bearer_token",
		Policy: PolicyMask,
		re:     regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._-]{20,}\b`),
	},
	{
		Name:   "openai_api_key",
		Policy: PolicyMask,
		re:     regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`),
	},
	{
		Name:   "generic_api_key_assignment",
		Policy: PolicyMask,
		re:     regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|password|passwd|token)\s*[:=]\s*['"]?[A-Za-z0-9/+_.-]{12,}['"]?`),
	},
}

// Result is the outcome of a Scan: either a reject (Blocked set, Pattern
// names the rejecting pattern), or a possibly-modified content string with
// zero or more mask patterns applied (MaskedBy lists their names, in the
// order encountered).
type Result struct {
	Content  string
	Blocked  bool
	Pattern  string
	MaskedBy []string
}

// Scan checks content against the pattern table in declaration order. The
// first reject-policy match wins immediately (Blocked=true, Pattern set,
// Content unchanged and must not be used). Otherwise every mask-policy match
// is applied in order and the scan continues over the full table.
func Scan(content string) Result {
	out := content
	var masked []string

	for _, p := range patterns {
		if !p.re.MatchString(out) {
			continue
		}
		switch p.Policy {
		case PolicyReject:
			return Result{Blocked: true, Pattern: p.Name}
		case PolicyMask:
			out = p.re.ReplaceAllString(out, maskSentinel)
			masked = append(masked, p.Name)
		}
	}

	return Result{Content: out, MaskedBy: masked}
}
