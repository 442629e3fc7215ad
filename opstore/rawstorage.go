package opstore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/antgroup/zit/hash"
)

// rawStorage is the byte-level half of the operation store, the same
// fanout-directory, write-to-temp-then-rename shape as
// objectstore.fsRawStorage (objectstore/fsstorage.go), minus compression:
// operations and views are short text blobs, not worth zstd's framing
// overhead, unlike file/tree objects which can be arbitrarily large.
type rawStorage struct {
	root     string
	incoming string
}

func newRawStorage(root string) (*rawStorage, error) {
	incoming := filepath.Join(root, "incoming")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(incoming, 0o755); err != nil {
		return nil, err
	}
	return &rawStorage{root: root, incoming: incoming}, nil
}

func (s *rawStorage) path(id hash.ID) string {
	hex := id.String()
	return filepath.Join(s.root, hex[:2], hex[2:4], hex)
}

func (s *rawStorage) get(id hash.ID) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound(id)
		}
		return nil, ErrOpStore("get", err)
	}
	return data, nil
}

func (s *rawStorage) has(id hash.ID) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

func (s *rawStorage) put(data []byte) (hash.ID, error) {
	id := hash.FromBytes(data)
	target := s.path(id)
	if _, err := os.Stat(target); err == nil {
		return id, nil
	}
	tmp, err := os.CreateTemp(s.incoming, "op")
	if err != nil {
		return hash.ZeroID, ErrOpStore("put", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return hash.ZeroID, ErrOpStore("put", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return hash.ZeroID, ErrOpStore("put", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		os.Remove(tmpPath)
		return hash.ZeroID, ErrOpStore("put", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return hash.ZeroID, ErrOpStore("put", err)
	}
	return id, nil
}

// list walks the fanout directory and returns every stored id, for GC.
func (s *rawStorage) list() ([]hash.ID, error) {
	var out []hash.ID
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
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
		out = append(out, hash.New(name))
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, ErrOpStore("list", err)
	}
	return out, nil
}
