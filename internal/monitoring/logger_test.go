package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters_RoutesStreams(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})

	Opsf("connected to %s", "esp32")
	Diagf("rate %.1f", 12.5)
	Tracef("skip 0x%02x", 0x7f)

	if !strings.Contains(ops.String(), "connected to esp32") {
		t.Errorf("ops stream = %q", ops.String())
	}
	if !strings.Contains(diag.String(), "rate 12.5") {
		t.Errorf("diag stream = %q", diag.String())
	}
	if !strings.Contains(trace.String(), "skip 0x7f") {
		t.Errorf("trace stream = %q", trace.String())
	}
	if strings.Contains(ops.String(), "rate") || strings.Contains(diag.String(), "connected") {
		t.Error("messages leaked between streams")
	}
}

func TestSetLogWriters_NilMutes(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var ops bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops})

	// Must not panic with nil diag/trace writers.
	Diagf("dropped")
	Tracef("dropped")
	Opsf("kept")

	if got := ops.String(); !strings.Contains(got, "kept") || strings.Contains(got, "dropped") {
		t.Errorf("ops stream = %q", got)
	}
	if TraceEnabled() {
		t.Error("TraceEnabled() = true with nil trace writer")
	}
}

func TestMute(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(LogWriters{Ops: &buf, Diag: &buf, Trace: &buf})
	Mute()

	Opsf("a")
	Diagf("b")
	Tracef("c")

	if buf.Len() != 0 {
		t.Errorf("expected no output after Mute, got %q", buf.String())
	}
}
