// Package redact masks credentials in text that leaves the process: log
// lines, error bodies and exported transcripts.
package redact

import "regexp"

var (
	// KEY=value lines, e.g. a pasted .env file.
	envRegex = regexp.MustCompile(`(?m)^([A-Z_]+)=\S+$`)
	// Authorization header values.
	authHeaderRegex = regexp.MustCompile(`(?i)\b(Token|Bearer)\s+[A-Za-z0-9._\-]{16,}`)
	// "key"/"password*" members of JSON auth payloads.
	jsonSecretRegex = regexp.MustCompile(`"(key|token|password[12]?)"\s*:\s*"[^"]*"`)
	jwtRegex        = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	skRegex         = regexp.MustCompile(`sk-[a-zA-Z0-9\-]{20,}`)
	aizaRegex       = regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)
	ghpRegex        = regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`)
)

func Clean(input string) string {
	input = envRegex.ReplaceAllString(input, "${1}=[REDACTED]")
	input = authHeaderRegex.ReplaceAllString(input, "${1} [REDACTED]")
	input = jsonSecretRegex.ReplaceAllString(input, `"${1}":"[REDACTED]"`)
	input = skRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	input = jwtRegex.ReplaceAllString(input, "[REDACTED_JWT]")
	input = aizaRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	input = ghpRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	return input
}
