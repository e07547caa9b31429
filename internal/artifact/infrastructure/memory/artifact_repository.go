package memory

import (
	"context"
	"errors"
	"sync"

	artifact "chiller-forecast/internal/artifact/domain"
)

// ArtifactRepository is an in-memory artifact store for demo/testing.
// It implements both table and blob interfaces.
type ArtifactRepository struct {
	mu     sync.RWMutex
	tables map[string]artifact.Table
	blobs  map[string][]byte
	writes map[string]int
	failOn map[string]error
}

// NewArtifactRepository constructs a repository.
func NewArtifactRepository() *ArtifactRepository {
	return &ArtifactRepository{
		tables: make(map[string]artifact.Table),
		blobs:  make(map[string][]byte),
		writes: make(map[string]int),
		failOn: make(map[string]error),
	}
}

// Read loads a copy of a table.
func (r *ArtifactRepository) Read(ctx context.Context, name string) (artifact.Table, error) {
	_ = ctx
	if name == "" {
		return artifact.Table{}, artifact.ErrInvalidName
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.tables[name]
	if !ok {
		return artifact.Table{}, artifact.ErrNotFound
	}
	return table.Clone(), nil
}

// Write stores a copy of a table.
func (r *ArtifactRepository) Write(ctx context.Context, name string, table artifact.Table) error {
	_ = ctx
	if name == "" {
		return &artifact.WriteError{Name: name, Err: artifact.ErrInvalidName}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[name]; err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	r.tables[name] = table.Clone()
	r.writes[name]++
	return nil
}

// ReadBlob loads a copy of a binary artifact.
func (r *ArtifactRepository) ReadBlob(ctx context.Context, name string) ([]byte, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.blobs[name]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// WriteBlob stores a copy of a binary artifact.
func (r *ArtifactRepository) WriteBlob(ctx context.Context, name string, data []byte) error {
	_ = ctx
	if name == "" {
		return &artifact.WriteError{Name: name, Err: artifact.ErrInvalidName}
	}
	if data == nil {
		return errors.New("memory artifact repo: nil blob")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[name]; err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	r.blobs[name] = append([]byte(nil), data...)
	r.writes[name]++
	return nil
}

// FailWrites makes every later write of name fail with err; a nil err clears it.
func (r *ArtifactRepository) FailWrites(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failOn, name)
		return
	}
	r.failOn[name] = err
}

// Writes returns how many successful writes name has received.
func (r *ArtifactRepository) Writes(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes[name]
}

var _ artifact.Repository = (*ArtifactRepository)(nil)
