// Package redact implements the secret-redaction pass applied by Ingestion
// to every accepted record before it is forwarded to Storage.
//
// Redaction runs exactly once per record, between quota acceptance and
// storage forwarding. It rewrites credit-card numbers, password/token
// assignments, and email addresses out of the message, and blanks any
// attribute whose key looks sensitive. It is idempotent: redacting an
// already-redacted entry is a no-op.
package redact

import (
	"regexp"
	"strings"

	"github.com/mirraman/logpipe/pkg/model"
)

// messageRewrites are applied in order, all non-overlapping matches
// replaced globally. Compiled once at package init, not per call.
var messageRewrites = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\b\d{16}\b`), "****-****-****-****"},
	{regexp.MustCompile(`password[=:]\s*\S+`), "password=***"},
	{regexp.MustCompile(`token[=:]\s*\S+`), "token=***"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "***@***.com"},
}

// sensitiveSubstrings are matched against the lowercased attribute key.
var sensitiveSubstrings = []string{"password", "token", "secret"}

// Entry returns e with Message rewritten and sensitive Attributes values
// blanked. e is passed by value, so the caller's Message is unchanged; the
// Attributes map is shared with the caller and is modified in place. ID,
// AppName, Level, and Timestamp are never touched.
func Entry(e model.LogEntry) model.LogEntry {
	for _, rw := range messageRewrites {
		e.Message = rw.pattern.ReplaceAllString(e.Message, rw.replacement)
	}

	for key := range e.Attributes {
		if isSensitiveKey(key) {
			e.Attributes[key] = "***"
		}
	}

	return e
}

// Batch redacts every entry in logs in place.
func Batch(logs []model.LogEntry) {
	for i := range logs {
		logs[i] = Entry(logs[i])
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, substr := range sensitiveSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}
