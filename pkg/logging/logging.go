// Package logging provides the shared logrus logger used across agentmem.
//
// Components obtain a tagged entry via Component and log through it, so all
// output carries a component field and honors the globally configured level
// and format.
package logging

import (
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.RWMutex
	base = newBase()
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return l
}

// Component returns a logger entry tagged with the given component name.
//
// Example:
//
//	log := logging.Component("consolidator")
//	log.WithField("session_id", id).Info("claimed expired session")
func Component(name string) *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return base.WithField("component", name)
}

// SetLevel sets the global log level from a string (debug, info, warn, error).
// Unknown values keep the current level.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	base.SetLevel(parsed)
}

// SetFormat switches the output format. Supported values: "text", "json".
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	case "text":
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base.SetOutput(w)
}
