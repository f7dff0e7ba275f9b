// Package model loads and runs the pre-trained temperature model and the
// scaler fitted alongside it.
package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Opener opens an artifact for reading.
type Opener func(path string) (io.ReadCloser, error)

// OSOpener reads artifacts from the local filesystem.
func OSOpener(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// modelFile is the persisted form of the network.
type modelFile struct {
	Layers []Layer `json:"layers"`
}

// Artifacts bundles the model with its fitted scaler.
type Artifacts struct {
	Network *Network
	Scaler  *Scaler
}

// LoadArtifacts reads the model and scaler once. Any missing, unreadable or
// dimension-incompatible artifact is returned as an error and should abort
// start-up.
func LoadArtifacts(open Opener, modelPath, scalerPath string) (*Artifacts, error) {
	if open == nil {
		open = OSOpener
	}

	var mf modelFile
	if err := decodeArtifact(open, modelPath, &mf); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	network, err := NewNetwork(mf.Layers)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelPath, err)
	}
	if network.InputWidth() != InputSize || network.OutputWidth() != Horizon {
		return nil, fmt.Errorf("load model %s: %w: shape %dx%d, want %dx%d", modelPath, ErrIncompatibleArtifact,
			network.InputWidth(), network.OutputWidth(), InputSize, Horizon)
	}

	var sp ScalerParams
	if err := decodeArtifact(open, scalerPath, &sp); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	scaler, err := NewScaler(sp)
	if err != nil {
		return nil, fmt.Errorf("load scaler %s: %w", scalerPath, err)
	}

	return &Artifacts{Network: network, Scaler: scaler}, nil
}

func decodeArtifact(open Opener, path string, dst any) error {
	f, err := open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("zstd reader for %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}

	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
