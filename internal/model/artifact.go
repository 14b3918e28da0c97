// Package model loads reconstruction-model checkpoints from a models
// directory and serves them from a hot-reloading in-memory cache.
//
// A checkpoint is a JSON file named <model_id>.json holding the network
// layers plus the normalization statistics of the dataset it was trained on.
// Loaded artifacts are immutable: a reload builds a brand-new artifact and
// swaps the map pointer, so in-flight scoring never observes a partial or
// mutated model.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// GlobalID is the identifier of the shared fallback model used when no
// user-specific checkpoint exists.
const GlobalID = "global"

// Artifact is a fully loaded, immutable model. Callers receive a shared
// pointer from the cache and must not mutate it.
type Artifact struct {
	ID           string
	Net          Network
	Mean         []float64
	Std          []float64
	FeatureCount int
	EncodingDim  int
	Version      string
	TrainingInfo map[string]any
	LoadedAt     time.Time
}

// Info is the metadata view of a cached artifact, shaped for the API.
type Info struct {
	ModelID      string         `json:"modelId"`
	FeatureCount int            `json:"featureCount"`
	EncodingDim  int            `json:"encodingDim,omitempty"`
	Version      string         `json:"version"`
	LoadedAt     time.Time      `json:"loadedAt"`
	TrainingInfo map[string]any `json:"trainingInfo,omitempty"`
}

// Checkpoint is the on-disk JSON shape of a model file. cmd/modelgen writes
// this same structure, so the two sides cannot drift.
type Checkpoint struct {
	Layers       []Layer        `json:"layers"`
	Mean         []float64      `json:"mean"`
	Std          []float64      `json:"std"`
	FeatureCount int            `json:"feature_count"`
	EncodingDim  int            `json:"encoding_dim,omitempty"`
	Version      string         `json:"version,omitempty"`
	TrainingInfo map[string]any `json:"training_info,omitempty"`
}

// Encode serializes the checkpoint to indented JSON.
func (c *Checkpoint) Encode() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// decodeArtifact parses and structurally validates a checkpoint, returning
// a ready-to-publish artifact. It does all its work on private data; the
// cache lock is never held here.
func decodeArtifact(id string, data []byte) (*Artifact, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}

	net, err := newFeedforward(cp.Layers)
	if err != nil {
		return nil, fmt.Errorf("invalid network: %w", err)
	}

	if cp.FeatureCount <= 0 {
		return nil, fmt.Errorf("missing or invalid feature_count")
	}
	if len(cp.Mean) != cp.FeatureCount {
		return nil, fmt.Errorf("mean length %d != feature_count %d", len(cp.Mean), cp.FeatureCount)
	}
	if len(cp.Std) != cp.FeatureCount {
		return nil, fmt.Errorf("std length %d != feature_count %d", len(cp.Std), cp.FeatureCount)
	}
	if net.InputSize() != cp.FeatureCount {
		return nil, fmt.Errorf("network input %d != feature_count %d", net.InputSize(), cp.FeatureCount)
	}
	if net.OutputSize() != cp.FeatureCount {
		return nil, fmt.Errorf("network output %d != feature_count %d", net.OutputSize(), cp.FeatureCount)
	}

	version := cp.Version
	if version == "" {
		version = "1.0"
	}

	return &Artifact{
		ID:           id,
		Net:          net,
		Mean:         cp.Mean,
		Std:          cp.Std,
		FeatureCount: cp.FeatureCount,
		EncodingDim:  cp.EncodingDim,
		Version:      version,
		TrainingInfo: cp.TrainingInfo,
		LoadedAt:     time.Now().UTC(),
	}, nil
}

// info returns the metadata view of the artifact.
func (a *Artifact) info() Info {
	return Info{
		ModelID:      a.ID,
		FeatureCount: a.FeatureCount,
		EncodingDim:  a.EncodingDim,
		Version:      a.Version,
		LoadedAt:     a.LoadedAt,
		TrainingInfo: a.TrainingInfo,
	}
}
