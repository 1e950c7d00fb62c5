package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/mapforge/previewd/internal/config"
)

func TestStartMissingBinary(t *testing.T) {
	l := NewProcessLauncher(config.EngineConfig{
		Binary: "previewd-test-no-such-binary",
		Port:   46631,
		Mode:   "landpreview",
	})
	_, err := l.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded for a missing binary")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want binary-not-found", err)
	}
}

func TestStartAndWait(t *testing.T) {
	// "true" ignores its arguments and exits 0; good enough to exercise
	// the spawn/reap path without a real engine.
	l := NewProcessLauncher(config.EngineConfig{
		Binary: "true",
		Port:   46631,
		Mode:   "landpreview",
	})
	w, err := l.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.PID() <= 0 {
		t.Errorf("PID = %d, want > 0", w.PID())
	}
	if err := w.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
	// Stop after exit must not panic.
	w.Stop()

	st := l.Stats()
	if st.PID != w.PID() {
		t.Errorf("Stats PID = %d, want %d", st.PID, w.PID())
	}
	if st.Running {
		t.Error("Stats reports exited worker as running")
	}
}

func TestStatsNoWorker(t *testing.T) {
	l := NewProcessLauncher(config.EngineConfig{Binary: "true", Port: 46631})
	if st := l.Stats(); st.PID != 0 || st.Running {
		t.Errorf("Stats before any Start = %+v, want zero", st)
	}
}
