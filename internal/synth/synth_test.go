package synth

import (
	"math"
	"math/rand"
	"testing"

	"github.com/HarshSankhe/behavior-guard-insight/internal/behavior"
	"github.com/HarshSankhe/behavior-guard-insight/internal/model"
)

func TestVectorIsValid(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, name := range ProfileNames() {
		p := Lookup(name)
		for i := 0; i < 200; i++ {
			v := Vector(p, rng)
			if len(v) != behavior.FeatureCount {
				t.Fatalf("profile %s: vector length %d", name, len(v))
			}
			if !behavior.Validate(v) {
				t.Errorf("profile %s: generated invalid vector %v", name, v)
			}
		}
	}
}

func TestDeterministicUnderSeed(t *testing.T) {
	a := Vector(Lookup(ProfileNormal), rand.New(rand.NewSource(42)))
	b := Vector(Lookup(ProfileNormal), rand.New(rand.NewSource(42)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs under same seed: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestLookupUnknownFallsBack(t *testing.T) {
	p := Lookup("no_such_profile")
	if p.Name != ProfileNormal {
		t.Errorf("fallback profile = %s, want %s", p.Name, ProfileNormal)
	}
}

func TestDatasetSplit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vectors := Dataset(Lookup(ProfileNormal), 100, 0.1, rng)
	if len(vectors) != 100 {
		t.Fatalf("dataset size = %d, want 100", len(vectors))
	}
	if got := Dataset(Lookup(ProfileNormal), 0, 0.1, rng); got != nil {
		t.Errorf("empty dataset should be nil, got %v", got)
	}
}

func TestSessionExtractsCleanly(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		events := Session(Lookup(ProfileFastTyper), rng)
		if len(events) < 50 {
			t.Fatalf("session too small: %d events", len(events))
		}
		v := behavior.Extract(events)
		if !behavior.Validate(v) {
			t.Errorf("session produced invalid features: %v", v)
		}
		if v[behavior.SlotTypingSpeedAvg] <= 0 {
			t.Errorf("expected typing activity, got %v", v[behavior.SlotTypingSpeedAvg])
		}
	}
}

func TestStats(t *testing.T) {
	v1 := behavior.NewVector()
	v2 := behavior.NewVector()
	v1[0], v2[0] = 60, 80

	mean, std := Stats([]behavior.Vector{v1, v2})
	if mean[0] != 70 {
		t.Errorf("mean = %v, want 70", mean[0])
	}
	if std[0] != 10 {
		t.Errorf("std = %v, want 10 (population)", std[0])
	}

	mean, std = Stats(nil)
	if mean[0] != 0 || std[0] != 0 {
		t.Errorf("empty dataset stats = %v/%v, want zeros", mean[0], std[0])
	}
}

func TestCheckpointReconstructsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	cp := Checkpoint(Lookup(ProfileNormal), 200, 0.05, 0, rng)

	net, err := model.NewNetwork(cp.Layers)
	if err != nil {
		t.Fatalf("checkpoint network invalid: %v", err)
	}

	in := make([]float64, behavior.FeatureCount)
	for i := range in {
		in[i] = float64(i) - 7 // mix of negative and positive
	}
	out := net.Forward(in)
	for i := range in {
		if math.Abs(out[i]-in[i]) > 1e-9 {
			t.Fatalf("slot %d: forward(%v) = %v, not identity", i, in[i], out[i])
		}
	}

	if cp.FeatureCount != behavior.FeatureCount {
		t.Errorf("feature_count = %d", cp.FeatureCount)
	}
	if len(cp.Mean) != behavior.FeatureCount || len(cp.Std) != behavior.FeatureCount {
		t.Errorf("stats lengths %d/%d", len(cp.Mean), len(cp.Std))
	}
}

func TestCheckpointNoiseBreaksIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	cp := Checkpoint(Lookup(ProfileNormal), 50, 0, 0.05, rng)

	net, err := model.NewNetwork(cp.Layers)
	if err != nil {
		t.Fatalf("checkpoint network invalid: %v", err)
	}

	in := make([]float64, behavior.FeatureCount)
	for i := range in {
		in[i] = 1
	}
	out := net.Forward(in)
	var diff float64
	for i := range in {
		diff += math.Abs(out[i] - in[i])
	}
	if diff == 0 {
		t.Error("noisy checkpoint reconstructed input exactly")
	}
}
