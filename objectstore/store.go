package objectstore

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/antgroup/zit/hash"
)

// Signer produces a detached signature over a commit's canonical encoding.
// Defined locally (rather than importing the signing package) so objectstore
// has no dependency on the signing backends it's agnostic to; the concrete
// signing.Signer implementations satisfy this interface structurally.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// Store is the typed object-graph API every other package programs against:
// content-addressed get/put for each object kind, dispatched over a raw byte
// store. Grounded on the Database/WithXxx option shape of
// modules/zeta/backend/odb.go, simplified to a single local root (the cloud
// backend variant lives in cloud.go).
type Store struct {
	raw   rawStorage
	cache *ristretto.Cache[hash.ID, any]
}

// Option configures a Store at construction time.
type Option func(*storeConfig)

type storeConfig struct {
	enableCache bool
	remote      rawStorage
}

// WithCache turns on an in-process ristretto LRU cache of decoded objects,
// matching the teacher's WithEnableLRU option (modules/zeta/backend/odb.go).
func WithCache() Option {
	return func(c *storeConfig) { c.enableCache = true }
}

// WithRemoteLayer chains an additional read-only backend (e.g. a cloud
// bucket) behind the local filesystem store for lookups that miss locally.
func WithRemoteLayer(remote rawStorage) Option {
	return func(c *storeConfig) { c.remote = remote }
}

// Open creates or opens a filesystem-backed object store rooted at dir.
func Open(dir string, opts ...Option) (*Store, error) {
	cfg := &storeConfig{}
	for _, o := range opts {
		o(cfg)
	}
	local, err := newFSRawStorage(dir)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open %s: %w", dir, err)
	}
	var raw rawStorage = local
	if cfg.remote != nil {
		raw = chainRawStorage(local, cfg.remote)
	}
	s := &Store{raw: raw}
	if cfg.enableCache {
		cache, err := ristretto.NewCache(&ristretto.Config[hash.ID, any]{
			NumCounters: 100_000,
			MaxCost:     50_000,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("objectstore: cache init: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.raw.close()
}

func (s *Store) cached(id hash.ID) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(id)
}

func (s *Store) remember(id hash.ID, v any) {
	if s.cache == nil {
		return
	}
	s.cache.Set(id, v, 1)
}

func (s *Store) load(id hash.ID, wantMagic Magic) (any, error) {
	if v, ok := s.cached(id); ok {
		return v, nil
	}
	data, err := s.raw.get(id)
	if err != nil {
		return nil, err
	}
	v, magic, err := decodeBody(data)
	if err != nil {
		return nil, ErrInvalidObject(id, err.Error())
	}
	if magic != wantMagic {
		return nil, ErrInvalidObject(id, fmt.Sprintf("expected magic %x, got %x", wantMagic, magic))
	}
	s.remember(id, v)
	return v, nil
}

func (s *Store) store(e Encoder, wantMagic Magic) (hash.ID, error) {
	data, err := EncodeBytes(e)
	if err != nil {
		return hash.ZeroID, err
	}
	if len(data) < 4 || Magic(data[:4]) != wantMagic {
		return hash.ZeroID, fmt.Errorf("objectstore: encoder produced wrong magic")
	}
	return s.raw.put(data)
}

// GetFile fetches and decodes a file object.
func (s *Store) GetFile(id hash.FileID) (*File, error) {
	v, err := s.load(hash.ID(id), FileMagic)
	if err != nil {
		return nil, err
	}
	return v.(*File), nil
}

// GetSymlink fetches and decodes a symlink object.
func (s *Store) GetSymlink(id hash.SymlinkID) (*Symlink, error) {
	v, err := s.load(hash.ID(id), SymlinkMagic)
	if err != nil {
		return nil, err
	}
	return v.(*Symlink), nil
}

// GetTree fetches and decodes a tree object.
func (s *Store) GetTree(id hash.TreeID) (*Tree, error) {
	v, err := s.load(hash.ID(id), TreeMagic)
	if err != nil {
		return nil, err
	}
	return v.(*Tree), nil
}

// GetCommit fetches and decodes a commit object.
func (s *Store) GetCommit(id hash.CommitID) (*Commit, error) {
	v, err := s.load(hash.ID(id), CommitMagic)
	if err != nil {
		return nil, err
	}
	return v.(*Commit), nil
}

// GetConflict fetches and decodes a conflict object.
func (s *Store) GetConflict(id hash.ConflictID) (*Conflict, error) {
	v, err := s.load(hash.ID(id), ConflictMagic)
	if err != nil {
		return nil, err
	}
	return v.(*Conflict), nil
}

// Has reports whether an object with the given id exists, without decoding
// it.
func (s *Store) Has(id hash.ID) bool {
	return s.raw.has(id)
}

// WriteFile stores a file object and returns its id.
func (s *Store) WriteFile(f *File) (hash.FileID, error) {
	id, err := s.store(f, FileMagic)
	return hash.FileID(id), err
}

// WriteSymlink stores a symlink object and returns its id.
func (s *Store) WriteSymlink(sym *Symlink) (hash.SymlinkID, error) {
	id, err := s.store(sym, SymlinkMagic)
	return hash.SymlinkID(id), err
}

// WriteTree stores a tree object and returns its id.
func (s *Store) WriteTree(t *Tree) (hash.TreeID, error) {
	id, err := s.store(t, TreeMagic)
	return hash.TreeID(id), err
}

// WriteConflict stores a conflict object and returns its id.
func (s *Store) WriteConflict(c *Conflict) (hash.ConflictID, error) {
	id, err := s.store(c, ConflictMagic)
	return hash.ConflictID(id), err
}

// WriteCommit stores a commit object. If signer is non-nil, it is handed the
// commit's unsigned canonical encoding and its signature is embedded before
// the commit is hashed and stored — so a commit's id, like every other
// object's, is a pure function of its full stored bytes including the
// signature.
func (s *Store) WriteCommit(c *Commit, signer Signer) (hash.CommitID, error) {
	if signer != nil {
		unsigned := *c
		unsigned.SigData = nil
		data, err := EncodeBytes(&unsigned)
		if err != nil {
			return hash.CommitID{}, err
		}
		sig, err := signer.Sign(data)
		if err != nil {
			return hash.CommitID{}, fmt.Errorf("objectstore: sign commit: %w", err)
		}
		c.SigData = sig
	}
	id, err := s.store(c, CommitMagic)
	return hash.CommitID(id), err
}

// ResolvePrefix resolves a hex prefix to the unique id it identifies.
func (s *Store) ResolvePrefix(prefix string) (hash.ID, error) {
	return s.raw.resolvePrefix(prefix)
}
