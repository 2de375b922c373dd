// Package logging provides the engine's internal structured logger.
//
// Nothing in this package is reached through ambient/global state: callers
// get a *logrus.Logger from NewDefault() or supply their own via the
// client builder's Logger knob. No package-level logger, no init() hooks.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewDefault returns the library's default logger: text output to stderr,
// warn level, so an embedding application isn't flooded unless it opts in.
func NewDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Redact masks sensitive header values before they reach a logging sink:
// Authorization, Cookie, Set-Cookie, Proxy-Authorization are never
// written to logs in the clear.
func Redact(name, value string) string {
	switch canonicalLower(name) {
	case "authorization", "cookie", "set-cookie", "proxy-authorization":
		return "██"
	default:
		return value
	}
}

func canonicalLower(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
