package metadata

import (
	"path/filepath"
	"sync"
)

// FileName is the name of the metadata document inside each destination
// directory (spec.md §6 directory layout).
const FileName = "metadata.json"

// Store holds, in memory, the SourceMetadata for every (source,
// destination) pair the engine has touched this run, with a per-source
// mutex serializing metadata mutation and persistence (spec.md §5: "Metadata
// file updates for a single source are serialized"). It is an owned value
// held by the engine, not global state.
type Store struct {
	mu       sync.Mutex
	perSource map[string]*sync.Mutex
	docs      map[string]*SourceMetadata // keyed by destination directory
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		perSource: map[string]*sync.Mutex{},
		docs:      map[string]*SourceMetadata{},
	}
}

// lockFor returns (creating if necessary) the mutex serializing all
// metadata access for sourceDir.
func (s *Store) lockFor(sourceDir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.perSource[sourceDir]
	if !ok {
		l = &sync.Mutex{}
		s.perSource[sourceDir] = l
	}
	return l
}

// WithSource runs fn while holding sourceDir's per-source lock, giving the
// caller exclusive access to that source's metadata across however many
// destinations it touches during fn. This is the serialization point
// spec.md §5 requires for a single source's metadata updates.
func (s *Store) WithSource(sourceDir string, fn func() error) error {
	l := s.lockFor(sourceDir)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// GetOrLoad returns the in-memory SourceMetadata for destDir, loading it
// from destDir/metadata.json on first access. Must be called while holding
// the owning source's lock (see WithSource).
func (s *Store) GetOrLoad(destDir string) (*SourceMetadata, error) {
	s.mu.Lock()
	doc, ok := s.docs[destDir]
	s.mu.Unlock()
	if ok {
		return doc, nil
	}

	doc, err := Load(filepath.Join(destDir, FileName))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.docs[destDir] = doc
	s.mu.Unlock()
	return doc, nil
}

// Persist writes the in-memory SourceMetadata for destDir back to disk
// atomically. Must be called while holding the owning source's lock.
func (s *Store) Persist(destDir string) error {
	s.mu.Lock()
	doc := s.docs[destDir]
	s.mu.Unlock()
	if doc == nil {
		return nil
	}
	return Save(filepath.Join(destDir, FileName), doc)
}

// Invalidate drops the cached document for destDir, forcing the next
// GetOrLoad to re-read from disk. Nothing in the engine or validator calls
// it; the validator reads metadata.json directly and never touches the Store.
func (s *Store) Invalidate(destDir string) {
	s.mu.Lock()
	delete(s.docs, destDir)
	s.mu.Unlock()
}
