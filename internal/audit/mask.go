package audit

import (
	"regexp"

	"github.com/gpdir16/LocalKeys/internal/crypto"
)

// Masking happens before anything touches disk and is irreversible. Three
// rules, applied in order:
//
//  1. password=/password: and token=/token: values are replaced outright;
//  2. API-key-shaped tokens (known prefix, then 20+ alphanumerics) keep
//     their first 4 characters;
//  3. any bare alphanumeric run of 32+ characters keeps its first 4.
var (
	reMarker  = regexp.MustCompile(`(?i)\b((?:password|token)\s*[:=]\s*)\S+`)
	reAPIKey  = regexp.MustCompile(`\b(?:sk|pk|api|ghp|gho|ghs|glpat|xoxb|xoxp|AKIA)[-_]?[A-Za-z0-9]{20,}\b`)
	reLongRun = regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`)
)

const maskVisible = 4

// Mask redacts secret-shaped material from a log message.
func Mask(message string) string {
	out := reMarker.ReplaceAllString(message, "${1}***")
	out = reAPIKey.ReplaceAllStringFunc(out, func(m string) string {
		return crypto.MaskValue(m, maskVisible)
	})
	out = reLongRun.ReplaceAllStringFunc(out, func(m string) string {
		return crypto.MaskValue(m, maskVisible)
	})
	return out
}
