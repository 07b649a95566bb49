package notifier

import (
	"regexp"
	"strings"
)

var serviceURLPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"']+`)

// redact strips service URLs, which carry webhook tokens and passwords, from error text.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return serviceURLPattern.ReplaceAllStringFunc(err.Error(), func(u string) string {
		return u[:strings.Index(u, "://")+3] + "[redacted]"
	})
}
