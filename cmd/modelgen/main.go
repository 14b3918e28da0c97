// Command modelgen writes model checkpoint files for development and load
// testing. Each checkpoint holds dataset statistics computed over generated
// behavior sessions plus an identity-reconstruction network, so the service
// can score against it exactly as it would against a trained model.
//
// Usage:
//
//	go run ./cmd/modelgen -out ./models -models global,alice,bob
//	go run ./cmd/modelgen -out ./models -models global -profile fast_typer -noise 0.05
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/HarshSankhe/behavior-guard-insight/internal/synth"
	"github.com/HarshSankhe/behavior-guard-insight/internal/validation"
)

func main() {
	var (
		out         = flag.String("out", "./models", "output directory for checkpoint files")
		models      = flag.String("models", "global", "comma-separated model IDs to generate")
		profile     = flag.String("profile", "normal", "behavior profile: "+strings.Join(synth.ProfileNames(), ", "))
		samples     = flag.Int("samples", 500, "generated sessions per checkpoint")
		seed        = flag.Int64("seed", 42, "RNG seed (same seed, same checkpoint)")
		noise       = flag.Float64("noise", 0, "weight noise; >0 gives nonzero reconstruction error")
		anomalyRate = flag.Float64("anomaly-rate", 0.05, "fraction of anomalous sessions in the dataset")
	)
	flag.Parse()

	if *samples <= 0 {
		log.Fatal("samples must be positive")
	}
	if *noise < 0 || *anomalyRate < 0 || *anomalyRate > 1 {
		log.Fatal("noise must be >= 0 and anomaly-rate in [0,1]")
	}

	p := synth.Lookup(*profile)
	if p.Name != *profile {
		log.Fatalf("Unknown profile %q (have: %s)", *profile, strings.Join(synth.ProfileNames(), ", "))
	}

	if err := os.MkdirAll(*out, 0o750); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	ids := strings.Split(*models, ",")
	rng := rand.New(rand.NewSource(*seed)) // #nosec G404 -- synthetic data, determinism wanted

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !validation.IsValidIdentifier(id) {
			log.Fatalf("Invalid model ID %q", id)
		}

		cp := synth.Checkpoint(p, *samples, *anomalyRate, *noise, rng)
		data, err := cp.Encode()
		if err != nil {
			log.Fatalf("Failed to encode checkpoint %s: %v", id, err)
		}

		path := filepath.Join(*out, id+".json")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("wrote %s (profile=%s samples=%d noise=%g)\n", path, p.Name, *samples, *noise)
	}
}
