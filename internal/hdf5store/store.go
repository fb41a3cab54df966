// Package hdf5store maps source models onto HDF5 containers.
//
// The mapping is split in two: Encode and Decode translate between a model
// and an in-memory Tree, and the file layer writes and reads a Tree through
// github.com/scigolib/hdf5.
package hdf5store

import (
	"fmt"

	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
	"github.com/ginjaninja78/nrml2hdf5/pkg/utils"
)

// Store writes source models to HDF5 files.
type Store struct {
	// Atomic writes through a temporary sibling file that is renamed over the
	// destination on success. Without it the destination is truncated and
	// written in place.
	Atomic bool
}

// Write encodes model and writes it to path. It returns the number of
// datasets in the written layout.
func (s Store) Write(path string, model *sourcemodel.SourceModel) (int, error) {
	if model == nil {
		return 0, fmt.Errorf("nil source model")
	}
	tree := Encode(model)
	_, datasets := tree.Root.Count()

	if !s.Atomic {
		return datasets, flush(path, tree)
	}
	if err := utils.AtomicWrite(path, func(tmp string) error { return flush(tmp, tree) }); err != nil {
		return 0, err
	}
	return datasets, nil
}

// WriteFile writes model to path atomically.
func WriteFile(path string, model *sourcemodel.SourceModel) error {
	_, err := Store{Atomic: true}.Write(path, model)
	return err
}

// ReadFile reads the source model stored at path.
func ReadFile(path string) (*sourcemodel.SourceModel, error) {
	tree, err := LoadTree(path)
	if err != nil {
		return nil, err
	}
	model, err := Decode(tree)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return model, nil
}
