package iforest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hed1ad/vitalguard/pkg/detectors"
)

// artifactVersion is bumped whenever the encoded layout changes.
const artifactVersion = 1

// artifact is the gob encoded form of a Forest.
type artifact struct {
	Version       int
	NFeatures     int
	SampleSize    int
	Contamination float64
	Threshold     float64
	AvgPathLength float64
	Trees         []iTree
}

// Save serializes the fitted forest.
func (f *Forest) Save() ([]byte, error) {
	if f == nil || len(f.trees) == 0 {
		return nil, detectors.ErrNotTrained
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(artifact{
		Version:       artifactVersion,
		NFeatures:     f.nFeatures,
		SampleSize:    f.sampleSize,
		Contamination: f.contamination,
		Threshold:     f.threshold,
		AvgPathLength: f.avgPathLength,
		Trees:         f.trees,
	})
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Load deserializes a forest produced by Save.
func Load(data []byte) (*Forest, error) {
	var a artifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("unsupported model version %d", a.Version)
	}
	if len(a.Trees) == 0 || a.NFeatures <= 0 {
		return nil, errors.New("model has no trees")
	}
	for i, t := range a.Trees {
		if err := t.check(a.NFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	return &Forest{
		trees:         a.Trees,
		nFeatures:     a.NFeatures,
		sampleSize:    a.SampleSize,
		contamination: a.Contamination,
		threshold:     a.Threshold,
		avgPathLength: a.AvgPathLength,
	}, nil
}

// check rejects corrupt trees that would make scoring index out of range.
func (t iTree) check(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	n := int32(len(t.Nodes))
	for i, nd := range t.Nodes {
		if nd.leaf() {
			continue
		}
		if nd.Feature < 0 || nd.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", i, nd.Feature)
		}
		// children are always appended after their parent
		if nd.Left <= int32(i) || nd.Left >= n || nd.Right <= int32(i) || nd.Right >= n {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	return nil
}

// WriteFile saves the forest to path, replacing any previous artifact atomically.
func WriteFile(path string, f *Forest) error {
	data, err := f.Save()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadFile loads a forest written by WriteFile.
func ReadFile(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}
