package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("artifact not found")
	ErrDisabled = errors.New("artifact store disabled")
)

// LogStore keeps simulator run logs.
type LogStore interface {
	// Store saves logs and returns a reference path/URL
	Store(ctx context.Context, runID string, logs []byte) (string, error)
	// Retrieve fetches logs by reference
	Retrieve(ctx context.Context, reference string) ([]byte, error)
}

// ArchiveStore keeps scenario archives.
type ArchiveStore interface {
	// StoreArchive uploads the file at path under key and returns a reference.
	StoreArchive(ctx context.Context, key string, path string) (string, error)
}

// ArtifactStore is implemented by every backend.
type ArtifactStore interface {
	LogStore
	ArchiveStore
}
