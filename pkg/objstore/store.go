package objstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/rdb/pkg/datastore"
)

// Store is the content-addressed blob store: Put is idempotent (storing
// the same bytes twice returns the same Hash and does no extra work),
// Get returns the stored bytes by hash, and Delete removes an object
// that is no longer referenced by any row.
type Store struct {
	backend backend
}

type backend interface {
	put(h Hash, data []byte) error
	get(h Hash) ([]byte, bool, error)
	delete(h Hash) error
}

// OpenMemory returns a Store backed by an in-process map; contents do
// not survive process exit.
func OpenMemory() (*Store, error) {
	return &Store{backend: &memoryBackend{objs: make(map[Hash][]byte)}}, nil
}

// OpenDisk returns a Store backed by one file per object under dir,
// named by Hash.String(). dir is created if it doesn't exist.
func OpenDisk(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{backend: &diskBackend{dir: dir}}, nil
}

// Put stores data and returns its content address.
func (s *Store) Put(data []byte) (Hash, error) {
	h := HashBytes(data)
	if err := s.backend.put(h, data); err != nil {
		return 0, err
	}
	return h, nil
}

// Get returns the bytes stored under h, or ok=false if no object has
// that address.
func (s *Store) Get(h Hash) ([]byte, bool, error) {
	return s.backend.get(h)
}

// Delete removes the object stored under h, if any.
func (s *Store) Delete(h Hash) error {
	return s.backend.delete(h)
}

type memoryBackend struct {
	mu   sync.RWMutex
	objs map[Hash][]byte
}

func (b *memoryBackend) put(h Hash, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.objs[h]; exists {
		return nil
	}
	b.objs[h] = append([]byte(nil), data...)
	return nil
}

func (b *memoryBackend) get(h Hash) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objs[h]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (b *memoryBackend) delete(h Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objs, h)
	return nil
}

type diskBackend struct {
	dir string
}

func (b *diskBackend) path(h Hash) string {
	return filepath.Join(b.dir, h.String())
}

func (b *diskBackend) put(h Hash, data []byte) error {
	path := b.path(h)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return datastore.NewIOError(err, "write object %s", h)
	}
	if err := os.Rename(tmp, path); err != nil {
		return datastore.NewIOError(err, "install object %s", h)
	}
	return nil
}

func (b *diskBackend) get(h Hash) ([]byte, bool, error) {
	data, err := os.ReadFile(b.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, datastore.NewIOError(err, "read object %s", h)
	}
	return data, true, nil
}

func (b *diskBackend) delete(h Hash) error {
	if err := os.Remove(b.path(h)); err != nil && !os.IsNotExist(err) {
		return datastore.NewIOError(err, "delete object %s", h)
	}
	return nil
}
