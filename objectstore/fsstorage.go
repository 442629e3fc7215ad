package objectstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/antgroup/zit/hash"
)

// rawStorage is the byte-level half of the object store: content-addressed
// get/put of opaque blobs, with no knowledge of object framing. Grounded on
// the teacher's fileStorer (modules/zeta/backend/file_storer.go): a two-level
// hex fanout directory layout (root/xx/yy/<hex-id>), write-to-temp-then-rename
// for crash safety, and zstd compression of the stored bytes.
type rawStorage interface {
	get(id hash.ID) ([]byte, error)
	has(id hash.ID) bool
	put(data []byte) (hash.ID, error)
	resolvePrefix(prefix string) (hash.ID, error)
	close() error
}

type fsRawStorage struct {
	root     string
	incoming string
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

func newFSRawStorage(root string) (*fsRawStorage, error) {
	incoming := filepath.Join(root, "incoming")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(incoming, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &fsRawStorage{root: root, incoming: incoming, encoder: enc, decoder: dec}, nil
}

func (s *fsRawStorage) path(id hash.ID) string {
	hex := id.String()
	return filepath.Join(s.root, hex[:2], hex[2:4], hex)
}

func (s *fsRawStorage) get(id hash.ID) ([]byte, error) {
	compressed, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound(id)
		}
		return nil, err
	}
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: decompress %s: %w", id, err)
	}
	return data, nil
}

func (s *fsRawStorage) has(id hash.ID) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

func (s *fsRawStorage) put(data []byte) (hash.ID, error) {
	id := hash.FromBytes(data)
	target := s.path(id)
	if _, err := os.Stat(target); err == nil {
		return id, nil
	}
	compressed := s.encoder.EncodeAll(data, nil)
	tmp, err := os.CreateTemp(s.incoming, "obj")
	if err != nil {
		return hash.ZeroID, err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return hash.ZeroID, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return hash.ZeroID, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		os.Remove(tmpPath)
		return hash.ZeroID, err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return hash.ZeroID, err
	}
	_ = os.Chmod(target, 0o444)
	return id, nil
}

func (s *fsRawStorage) resolvePrefix(prefix string) (hash.ID, error) {
	if len(prefix) < 4 {
		return hash.ZeroID, fmt.Errorf("objectstore: prefix %q too short to search", prefix)
	}
	searchRoot := filepath.Join(s.root, prefix[0:2], prefix[2:4])
	var found hash.ID
	var multiple bool
	err := filepath.WalkDir(searchRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if len(name) != hash.HexSize || !hash.Valid(name) {
			return nil
		}
		if len(name) < len(prefix) || name[:len(prefix)] != prefix {
			return nil
		}
		if !found.IsZero() {
			multiple = true
			return io.EOF
		}
		found = hash.New(name)
		return nil
	})
	if err != nil && err != io.EOF {
		return hash.ZeroID, err
	}
	if multiple {
		return hash.ZeroID, fmt.Errorf("objectstore: prefix %q is ambiguous", prefix)
	}
	if found.IsZero() {
		id, decodeErr := hash.NewEx(prefix)
		if decodeErr == nil {
			return hash.ZeroID, ErrNotFound(id)
		}
		return hash.ZeroID, fmt.Errorf("objectstore: no object matches prefix %q", prefix)
	}
	return found, nil
}

func (s *fsRawStorage) close() error {
	s.encoder.Close()
	s.decoder.Close()
	return nil
}

// multiRawStorage chains several raw stores for reads (e.g. a local working
// store layered over a read-only shared/cloud store) while routing writes to
// the first.
type multiRawStorage struct {
	layers []rawStorage
}

func chainRawStorage(layers ...rawStorage) rawStorage {
	return &multiRawStorage{layers: layers}
}

func (m *multiRawStorage) get(id hash.ID) ([]byte, error) {
	for _, l := range m.layers {
		data, err := l.get(id)
		if err == nil {
			return data, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound(id)
}

func (m *multiRawStorage) has(id hash.ID) bool {
	for _, l := range m.layers {
		if l.has(id) {
			return true
		}
	}
	return false
}

func (m *multiRawStorage) put(data []byte) (hash.ID, error) {
	if len(m.layers) == 0 {
		return hash.ZeroID, ErrReadOnly("put")
	}
	return m.layers[0].put(data)
}

func (m *multiRawStorage) resolvePrefix(prefix string) (hash.ID, error) {
	for _, l := range m.layers {
		id, err := l.resolvePrefix(prefix)
		if err == nil {
			return id, nil
		}
		if !IsNotFound(err) {
			continue
		}
	}
	return hash.ZeroID, fmt.Errorf("objectstore: no object matches prefix %q", prefix)
}

func (m *multiRawStorage) close() error {
	var firstErr error
	for _, l := range m.layers {
		if err := l.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
