package model

import (
	"encoding/gob"
	"io"
	"os"

	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// SaveArtifact serializes a training artifact (a fitted estimator or a
// full result bundle) to a file as an opaque gob blob.
func SaveArtifact(artifact interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return mserrors.Wrap(err, "failed to create artifact file")
	}
	defer func() { _ = file.Close() }()

	return SaveArtifactToWriter(artifact, file)
}

// LoadArtifact reads a gob blob from a file into artifact, which must be a
// pointer to the same concrete type that was saved.
func LoadArtifact(artifact interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return mserrors.Wrap(err, "failed to open artifact file")
	}
	defer func() { _ = file.Close() }()

	return LoadArtifactFromReader(artifact, file)
}

// SaveArtifactToWriter serializes an artifact to a writer.
func SaveArtifactToWriter(artifact interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(artifact); err != nil {
		return mserrors.Wrap(err, "failed to encode artifact")
	}
	return nil
}

// LoadArtifactFromReader deserializes an artifact from a reader.
func LoadArtifactFromReader(artifact interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(artifact); err != nil {
		return mserrors.Wrap(err, "failed to decode artifact")
	}
	return nil
}
