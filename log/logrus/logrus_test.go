package logrus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tillworks/tillfront"
)

func TestAdapterForwardsFields(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetLevel(logrus.DebugLevel)

	var l tillfront.Logger = LogrusLogger{E: logrus.NewEntry(base)}
	l.Info("cache invalidated", tillfront.Fields{"resource": "meals"})
	l.Debug("rev moved", nil)

	out := buf.String()
	if !strings.Contains(out, "cache invalidated") || !strings.Contains(out, "resource=meals") {
		t.Fatalf("output missing message or field: %q", out)
	}
	if !strings.Contains(out, "rev moved") {
		t.Fatalf("debug line missing: %q", out)
	}
}
