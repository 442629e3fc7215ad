package opstore

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/antgroup/zit/hash"
)

// Store is the operation-store API: content-addressed get/put for
// operations and views, layered over two independent fanout directories
// (op_store/operations, op_store/views per §6's repository layout).
type Store struct {
	operations *rawStorage
	views      *rawStorage
}

// Open creates or opens a filesystem-backed operation store rooted at dir
// (a repository's op_store/ directory).
func Open(dir string) (*Store, error) {
	ops, err := newRawStorage(filepath.Join(dir, "operations"))
	if err != nil {
		return nil, ErrOpStore("open", err)
	}
	views, err := newRawStorage(filepath.Join(dir, "views"))
	if err != nil {
		return nil, ErrOpStore("open", err)
	}
	return &Store{operations: ops, views: views}, nil
}

// WriteOperation stores an operation and returns its content-addressed id.
func (s *Store) WriteOperation(op *Operation) (hash.OperationID, error) {
	var buf bytes.Buffer
	if err := op.Encode(&buf); err != nil {
		return hash.OperationID{}, err
	}
	id, err := s.operations.put(buf.Bytes())
	return hash.OperationID(id), err
}

// ReadOperation fetches and decodes an operation.
func (s *Store) ReadOperation(id hash.OperationID) (*Operation, error) {
	data, err := s.operations.get(hash.ID(id))
	if err != nil {
		return nil, err
	}
	v, magic, err := decodeBody(data)
	if err != nil {
		return nil, ErrOpStore("decode operation", err)
	}
	if magic != OperationMagic {
		return nil, fmt.Errorf("opstore: %s is not an operation", hash.ID(id))
	}
	return v.(*Operation), nil
}

// WriteView stores a view and returns its content-addressed id.
func (s *Store) WriteView(v *View) (hash.ViewID, error) {
	var buf bytes.Buffer
	if err := v.Encode(&buf); err != nil {
		return hash.ViewID{}, err
	}
	id, err := s.views.put(buf.Bytes())
	return hash.ViewID(id), err
}

// ReadView fetches and decodes a view.
func (s *Store) ReadView(id hash.ViewID) (*View, error) {
	data, err := s.views.get(hash.ID(id))
	if err != nil {
		return nil, err
	}
	v, magic, err := decodeBody(data)
	if err != nil {
		return nil, ErrOpStore("decode view", err)
	}
	if magic != ViewMagic {
		return nil, fmt.Errorf("opstore: %s is not a view", hash.ID(id))
	}
	return v.(*View), nil
}

// ListOperations returns every operation id in the store, for garbage
// collection (walking unreferenced predecessors) and for debugging tools.
func (s *Store) ListOperations() ([]hash.OperationID, error) {
	ids, err := s.operations.list()
	if err != nil {
		return nil, err
	}
	out := make([]hash.OperationID, len(ids))
	for i, id := range ids {
		out[i] = hash.OperationID(id)
	}
	return out, nil
}
