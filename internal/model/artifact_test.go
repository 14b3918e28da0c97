package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/HarshSankhe/behavior-guard-insight/internal/behavior"
)

// validCheckpoint returns a minimal structurally valid checkpoint: one
// identity layer over the full feature vector.
func validCheckpoint() *Checkpoint {
	n := behavior.FeatureCount
	weights := make([][]float64, n)
	for i := range weights {
		weights[i] = make([]float64, n)
		weights[i][i] = 1
	}
	mean := make([]float64, n)
	std := make([]float64, n)
	for i := range std {
		std[i] = 1
	}
	return &Checkpoint{
		Layers:       []Layer{{Weights: weights, Bias: make([]float64, n), Activation: ActivationLinear}},
		Mean:         mean,
		Std:          std,
		FeatureCount: n,
	}
}

func encode(t *testing.T, cp *Checkpoint) []byte {
	t.Helper()
	data, err := cp.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func TestDecodeArtifact(t *testing.T) {
	art, err := decodeArtifact("user1", encode(t, validCheckpoint()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if art.ID != "user1" {
		t.Errorf("id = %q", art.ID)
	}
	if art.Version != "1.0" {
		t.Errorf("default version = %q, want 1.0", art.Version)
	}
	if art.FeatureCount != behavior.FeatureCount {
		t.Errorf("feature count = %d", art.FeatureCount)
	}
	if art.LoadedAt.IsZero() {
		t.Error("LoadedAt not set")
	}

	in := make([]float64, behavior.FeatureCount)
	in[3] = 2.5
	if out := art.Net.Forward(in); out[3] != 2.5 {
		t.Errorf("forward broken: %v", out[3])
	}
}

func TestDecodeArtifactRejectsDefects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(cp *Checkpoint)
		errPart string
	}{
		{"zero feature count", func(cp *Checkpoint) { cp.FeatureCount = 0 }, "feature_count"},
		{"short mean", func(cp *Checkpoint) { cp.Mean = cp.Mean[:3] }, "mean length"},
		{"short std", func(cp *Checkpoint) { cp.Std = cp.Std[:3] }, "std length"},
		{"no layers", func(cp *Checkpoint) { cp.Layers = nil }, "invalid network"},
		{"dimension mismatch", func(cp *Checkpoint) {
			cp.Layers[0].Weights = cp.Layers[0].Weights[:4]
			cp.Layers[0].Bias = cp.Layers[0].Bias[:4]
		}, "output"},
	}
	for _, tc := range cases {
		cp := validCheckpoint()
		tc.mutate(cp)
		_, err := decodeArtifact("x", encode(t, cp))
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.errPart) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.errPart)
		}
	}
}

func TestDecodeArtifactRejectsGarbage(t *testing.T) {
	if _, err := decodeArtifact("x", []byte("{not json")); err == nil {
		t.Error("expected parse error")
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	cp := validCheckpoint()
	cp.Version = "2.3"
	cp.EncodingDim = 8
	cp.TrainingInfo = map[string]any{"samples": float64(100)}

	var back Checkpoint
	if err := json.Unmarshal(encode(t, cp), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Version != "2.3" || back.EncodingDim != 8 {
		t.Errorf("metadata lost: %+v", back)
	}

	art, err := decodeArtifact("x", encode(t, cp))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if art.Version != "2.3" {
		t.Errorf("version = %q", art.Version)
	}
	if art.TrainingInfo["samples"] != float64(100) {
		t.Errorf("training info = %v", art.TrainingInfo)
	}
}
