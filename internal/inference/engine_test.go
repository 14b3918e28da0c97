package inference

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HarshSankhe/behavior-guard-insight/internal/behavior"
	"github.com/HarshSankhe/behavior-guard-insight/internal/model"
	"github.com/HarshSankhe/behavior-guard-insight/internal/scoring"
	"github.com/HarshSankhe/behavior-guard-insight/internal/synth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCheckpoint(t *testing.T, dir, id string) {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	cp := synth.Checkpoint(synth.Lookup(synth.ProfileNormal), 200, 0.05, 0, rng)
	data, err := cp.Encode()
	if err != nil {
		t.Fatalf("encode checkpoint: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
}

func newTestEngine(t *testing.T, modelIDs ...string) (*Engine, *MemoryStore) {
	t.Helper()
	dir := t.TempDir()
	for _, id := range modelIDs {
		writeCheckpoint(t, dir, id)
	}
	cache, err := model.NewCache(dir, discardLogger())
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(cache.Shutdown)

	store := NewMemoryStore()
	return NewEngine(cache, store, discardLogger()), store
}

func TestInferWithGlobalModel(t *testing.T) {
	engine, _ := newTestEngine(t, "global")

	events := synth.Session(synth.Lookup(synth.ProfileNormal), rand.New(rand.NewSource(2)))
	a := engine.Infer(context.Background(), "user1", "sess1", events)

	if a.Details.ModelUsed != model.GlobalID {
		t.Errorf("model used = %q, want global", a.Details.ModelUsed)
	}
	if a.RiskScore < 0 || a.RiskScore > 100 {
		t.Errorf("risk score out of range: %d", a.RiskScore)
	}
	if !strings.HasPrefix(a.ID, "asm_") {
		t.Errorf("assessment ID %q missing prefix", a.ID)
	}
	if len(a.Factors) != 4 {
		t.Errorf("expected 4 factors, got %d", len(a.Factors))
	}
	if a.Details.Confidence <= 0 || a.Details.Confidence > 1 {
		t.Errorf("confidence out of range: %v", a.Details.Confidence)
	}
	if a.Details.EventCount != len(events) {
		t.Errorf("event count = %d, want %d", a.Details.EventCount, len(events))
	}
	if a.IsFallback() {
		t.Error("real model inference reported fallback")
	}
}

func TestInferPrefersUserModel(t *testing.T) {
	engine, _ := newTestEngine(t, "global", "user1")

	events := synth.Session(synth.Lookup(synth.ProfileNormal), rand.New(rand.NewSource(2)))
	a := engine.Infer(context.Background(), "user1", "sess1", events)

	if a.Details.ModelUsed != "user1" {
		t.Errorf("model used = %q, want user1", a.Details.ModelUsed)
	}
}

func TestInferDerivesDurationFromTimestamps(t *testing.T) {
	engine, _ := newTestEngine(t, "global")

	// 20 app switches over a 10-minute timestamp span, plus a closing
	// keystroke; without timestamp-derived duration the rate is 20/min.
	start := int64(1691766600000)
	var events []behavior.Event
	for i := 0; i < 20; i++ {
		events = append(events, behavior.Event{Type: behavior.EventAppSwitch, Timestamp: start + int64(i)*30000})
	}
	events = append(events, behavior.Event{
		Type:      behavior.EventKeystroke,
		Timestamp: start + 10*60000,
		Data:      map[string]float64{behavior.KeyTypingSpeed: 60},
	})

	a := engine.Infer(context.Background(), "user1", "sess1", events)

	if got := a.Factors[scoring.FactorAppUsage].Value; got != 2.0 {
		t.Errorf("appUsage value = %v, want 2 (duration not derived from timestamps)", got)
	}
}

func TestInferWithDurationOverridesTimestamps(t *testing.T) {
	engine, _ := newTestEngine(t, "global")

	// Same 10-minute span, but a reported 5-minute duration wins.
	start := int64(1691766600000)
	var events []behavior.Event
	for i := 0; i < 20; i++ {
		events = append(events, behavior.Event{Type: behavior.EventAppSwitch, Timestamp: start + int64(i)*30000})
	}
	events = append(events, behavior.Event{
		Type:      behavior.EventKeystroke,
		Timestamp: start + 10*60000,
		Data:      map[string]float64{behavior.KeyTypingSpeed: 60},
	})

	a := engine.InferWithDuration(context.Background(), "user1", "sess1", events, 5)

	if got := a.Factors[scoring.FactorAppUsage].Value; got != 4.0 {
		t.Errorf("appUsage value = %v, want 4 (reported duration ignored)", got)
	}
}

func TestInferNoModelFallsBack(t *testing.T) {
	engine, _ := newTestEngine(t) // empty models dir

	events := synth.Session(synth.Lookup(synth.ProfileNormal), rand.New(rand.NewSource(2)))
	a := engine.Infer(context.Background(), "user1", "sess1", events)

	if a.RiskScore != 50 {
		t.Errorf("fallback risk score = %d, want 50", a.RiskScore)
	}
	if !a.IsFallback() {
		t.Errorf("model used = %q, want fallback", a.Details.ModelUsed)
	}
	if a.Details.Confidence != 0.1 {
		t.Errorf("fallback confidence = %v, want 0.1", a.Details.Confidence)
	}
	want := "Fallback mode: No model available"
	if len(a.Details.Anomalies) != 1 || a.Details.Anomalies[0] != want {
		t.Errorf("anomalies = %v, want [%q]", a.Details.Anomalies, want)
	}
	for name, f := range a.Factors {
		if f.Deviation != scoring.LevelUnknown {
			t.Errorf("factor %s deviation = %s, want Unknown", name, f.Deviation)
		}
	}
	if a.Details.FeatureCount != behavior.FeatureCount {
		t.Errorf("feature count = %d", a.Details.FeatureCount)
	}
}

func TestInferInvalidFeaturesFallsBack(t *testing.T) {
	engine, _ := newTestEngine(t, "global")

	// Typing speed far outside the valid range fails validation.
	events := []behavior.Event{{
		Type: behavior.EventKeystroke,
		Data: map[string]float64{behavior.KeyTypingSpeed: 500},
	}}
	a := engine.Infer(context.Background(), "user1", "sess1", events)

	if !a.IsFallback() {
		t.Fatalf("expected fallback, got model %q", a.Details.ModelUsed)
	}
	want := "Fallback mode: Invalid features"
	if len(a.Details.Anomalies) != 1 || a.Details.Anomalies[0] != want {
		t.Errorf("anomalies = %v, want [%q]", a.Details.Anomalies, want)
	}
}

func TestInferRecordsAssessment(t *testing.T) {
	engine, store := newTestEngine(t, "global")

	events := synth.Session(synth.Lookup(synth.ProfileNormal), rand.New(rand.NewSource(2)))
	engine.Infer(context.Background(), "user1", "sess1", events)

	// Recording is async; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, _ := store.CountByUser(context.Background(), "user1")
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("assessment never recorded (count=%d)", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type captureEmitter struct {
	got chan *Assessment
}

func (c *captureEmitter) AssessmentCompleted(a *Assessment) {
	select {
	case c.got <- a:
	default:
	}
}

func TestInferEmitsEvent(t *testing.T) {
	engine, _ := newTestEngine(t, "global")
	em := &captureEmitter{got: make(chan *Assessment, 1)}
	engine.WithEmitter(em)

	events := synth.Session(synth.Lookup(synth.ProfileNormal), rand.New(rand.NewSource(2)))
	a := engine.Infer(context.Background(), "user1", "sess1", events)

	select {
	case emitted := <-em.got:
		if emitted.ID != a.ID {
			t.Errorf("emitted %q, returned %q", emitted.ID, a.ID)
		}
	default:
		t.Fatal("emitter not invoked")
	}
}

func TestConcurrentInference(t *testing.T) {
	engine, _ := newTestEngine(t, "global")

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(seed int64) {
			defer func() { done <- struct{}{} }()
			rng := rand.New(rand.NewSource(seed))
			for j := 0; j < 50; j++ {
				events := synth.Session(synth.Lookup(synth.ProfileNormal), rng)
				a := engine.Infer(context.Background(), "user1", "sess1", events)
				if a == nil || a.RiskScore < 0 || a.RiskScore > 100 {
					t.Errorf("bad assessment under concurrency: %+v", a)
					return
				}
			}
		}(int64(i))
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
