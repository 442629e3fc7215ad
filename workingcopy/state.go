package workingcopy

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/objectstore"
)

// RecordedFile is everything the working copy remembers about a tracked
// path between snapshots: its last-written tree value and the filesystem
// fingerprint it had right after that write.
type RecordedFile struct {
	Value       objectstore.ConflictTerm
	Fingerprint Fingerprint
}

// State is the working copy's persisted record: per-path RecordedFile
// entries, the operation id that produced them, and the active sparse
// patterns. It round-trips through the state file under a lock so
// concurrent checkouts can detect each other (ConcurrentCheckout).
type State struct {
	OperationID hash.OperationID
	Tree        hash.TreeID
	Files       map[string]RecordedFile
	Sparse      []string
}

// wireState is State's on-disk shape: hash.ID types already marshal to their
// hex string via MarshalText, but ConflictTerm's FileMode needs no special
// handling since it is a small int8.
type wireState struct {
	OperationID string                  `json:"operation_id"`
	Tree        string                  `json:"tree"`
	Files       map[string]RecordedFile `json:"files"`
	Sparse      []string                `json:"sparse"`
}

func newState() *State {
	return &State{Files: make(map[string]RecordedFile)}
}

func loadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newState(), nil
	}
	if err != nil {
		return nil, err
	}
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	s := &State{Files: w.Files, Sparse: w.Sparse}
	if s.Files == nil {
		s.Files = make(map[string]RecordedFile)
	}
	if w.OperationID != "" {
		id, err := hash.NewEx(w.OperationID)
		if err != nil {
			return nil, err
		}
		s.OperationID = hash.OperationID(id)
	}
	if w.Tree != "" {
		id, err := hash.NewEx(w.Tree)
		if err != nil {
			return nil, err
		}
		s.Tree = hash.TreeID(id)
	}
	return s, nil
}

func saveState(path string, s *State) error {
	w := wireState{
		OperationID: hash.ID(s.OperationID).String(),
		Tree:        hash.ID(s.Tree).String(),
		Files:       s.Files,
		Sparse:      s.Sparse,
	}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
