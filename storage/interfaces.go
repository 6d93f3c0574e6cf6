package storage

import (
	"context"
	"errors"
	"io"

	"books-etl/models"
)

// ErrArtifactNotFound is returned by ArtifactStore.Open when no artifact
// with the requested name has been written.
var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact is one named, fully encoded handoff file.
type Artifact struct {
	Name string
	Data []byte
}

// ArtifactStore holds the named tabular handoffs between pipeline stages.
// Publish replaces all given artifacts together: on error none of them has
// changed.
type ArtifactStore interface {
	Publish(artifacts ...Artifact) error
	Open(name string) (io.ReadCloser, error)
}

// TableLoader is the interface any relational backend must satisfy.
type TableLoader interface {
	Load(ctx context.Context, tables *models.Tables) error
	Close() error
}
