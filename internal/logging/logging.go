// Package logging wires github.com/sirupsen/logrus into a small set of
// package-level helpers. Components take a *logrus.Entry via their
// constructor rather than reaching for a global, so tests can inject a
// discard logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a component logger scoped to the given name, e.g. "mvcc",
// "cdc.dispatcher", "store.hot".
func New(component string) *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stderr)
	return l.WithField("component", component)
}

// Discard returns a logger that drops every entry, for tests that don't
// want log noise but still need a non-nil *logrus.Entry.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "test")
}
