// Package hash defines the content-addressed identifiers shared by every
// object kind in the store (files, symlinks, trees, commits, conflicts,
// operations, views) plus the separately-namespaced change id.
package hash

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

const (
	// Size is the digest width in bytes, matching blake3's default output.
	Size = 32
	// HexSize is the width of the hex-encoded digest.
	HexSize = Size * 2
)

// ZeroID is the all-zero id reserved for the synthetic root commit and for
// absent references.
var ZeroID ID

// ID is an opaque content-addressed identifier. The same representation is
// reused (via the named types below) for FileId, SymlinkId, TreeId, CommitId,
// ConflictId, OperationId and ViewId; only ChangeId draws from a different,
// non-content-derived namespace (see RandomChangeID).
type ID [Size]byte

// FromBytes hashes data with BLAKE3 and returns the resulting id. This is
// the canonical way every object kind computes its own id from its encoded
// body.
func FromBytes(data []byte) ID {
	sum := blake3.Sum256(data)
	return ID(sum)
}

// New decodes a hex string into an ID. Malformed input yields the zero ID;
// use NewEx to detect malformed input.
func New(s string) ID {
	b, _ := hex.DecodeString(s)
	var id ID
	copy(id[:], b)
	return id
}

// NewEx decodes a hex string into an ID, validating its shape first.
func NewEx(s string) (ID, error) {
	if !Valid(s) {
		return ZeroID, fmt.Errorf("zit: %q is not a valid object id", s)
	}
	return New(s), nil
}

// Valid reports whether s is a well-formed hex id.
func Valid(s string) bool {
	if len(s) != HexSize {
		return false
	}
	for _, c := range []byte(s) {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func (id ID) IsZero() bool {
	return id == ZeroID
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Shorten returns the number of leading bytes left once the trailing zero
// bytes are dropped (those still round-trip through New), i.e. the index of
// the last non-zero byte, plus one, floored at 4 bytes.
func (id ID) Shorten() int {
	i := Size - 1
	for ; i >= 4; i-- {
		if id[i] != 0 {
			return i + 1
		}
	}
	return i + 1
}

// Prefix returns a hex prefix covering the non-trailing-zero suffix of id;
// mainly useful for producing short, stable debug output.
func (id ID) Prefix() string {
	return hex.EncodeToString(id[:id.Shorten()])
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := NewEx(s)
	if err != nil {
		return err
	}
	*id = decoded
	return nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	decoded, err := NewEx(string(text))
	if err != nil {
		return err
	}
	*id = decoded
	return nil
}

// Sort sorts a slice of IDs in increasing order.
func Sort(ids []ID) {
	sort.Sort(Slice(ids))
}

// Slice attaches sort.Interface to []ID, ordering by byte comparison.
type Slice []ID

func (s Slice) Len() int           { return len(s) }
func (s Slice) Less(i, j int) bool { return bytes.Compare(s[i][:], s[j][:]) < 0 }
func (s Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// FileID, SymlinkID, TreeID, CommitID, ConflictID, OperationID and ViewID all
// share ID's representation but are distinct defined types, so a CommitID
// can't be passed where a TreeID is wanted without an explicit conversion.
type (
	FileID      ID
	SymlinkID   ID
	TreeID      ID
	CommitID    ID
	ConflictID  ID
	OperationID ID
	ViewID      ID
)

func (id FileID) IsZero() bool      { return ID(id).IsZero() }
func (id FileID) String() string    { return ID(id).String() }
func (id SymlinkID) IsZero() bool   { return ID(id).IsZero() }
func (id SymlinkID) String() string { return ID(id).String() }
func (id TreeID) IsZero() bool      { return ID(id).IsZero() }
func (id TreeID) String() string    { return ID(id).String() }
func (id CommitID) IsZero() bool    { return ID(id).IsZero() }
func (id CommitID) String() string  { return ID(id).String() }
func (id CommitID) Prefix() string  { return ID(id).Prefix() }
func (id ConflictID) IsZero() bool  { return ID(id).IsZero() }
func (id ConflictID) String() string {
	return ID(id).String()
}
func (id OperationID) IsZero() bool   { return ID(id).IsZero() }
func (id OperationID) String() string { return ID(id).String() }
func (id ViewID) IsZero() bool        { return ID(id).IsZero() }
func (id ViewID) String() string      { return ID(id).String() }

// CommitIDFromBytes and its siblings adapt FromBytes's result to the
// concrete id type a given object encodes to.
func CommitIDFromBytes(data []byte) CommitID     { return CommitID(FromBytes(data)) }
func TreeIDFromBytes(data []byte) TreeID         { return TreeID(FromBytes(data)) }
func FileIDFromBytes(data []byte) FileID         { return FileID(FromBytes(data)) }
func SymlinkIDFromBytes(data []byte) SymlinkID   { return SymlinkID(FromBytes(data)) }
func ConflictIDFromBytes(data []byte) ConflictID { return ConflictID(FromBytes(data)) }
func OperationIDFromBytes(data []byte) OperationID {
	return OperationID(FromBytes(data))
}
func ViewIDFromBytes(data []byte) ViewID { return ViewID(FromBytes(data)) }

// CommitIDSlice sorts []CommitID in increasing order.
type CommitIDSlice []CommitID

func (s CommitIDSlice) Len() int           { return len(s) }
func (s CommitIDSlice) Less(i, j int) bool { return bytes.Compare(s[i][:], s[j][:]) < 0 }
func (s CommitIDSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// ChangeID identifies a logical change across rewrites. Unlike the other id
// types it is not derived from content: two different versions of a change
// (before and after an edit, a rebase, a squash) have different CommitIDs
// but the same ChangeID.
type ChangeID ID

func (c ChangeID) IsZero() bool   { return ID(c).IsZero() }
func (c ChangeID) String() string { return ID(c).String() }
func (c ChangeID) Prefix() string { return ID(c).Prefix() }

func NewChangeID(s string) ChangeID {
	return ChangeID(New(s))
}

// NewChangeIDEx validates and decodes a change id hex string.
func NewChangeIDEx(s string) (ChangeID, error) {
	id, err := NewEx(s)
	return ChangeID(id), err
}

// RandomChangeID draws a fresh change id from the random (not content
// derived) namespace. Called whenever a brand-new logical change is created;
// every rewrite of that change keeps the same ChangeID unless the caller
// explicitly requests a new one.
func RandomChangeID() ChangeID {
	var c ChangeID
	if _, err := rand.Read(c[:]); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken;
		// there is no sane fallback, so surface a zero id rather than panic.
		return ChangeID(ZeroID)
	}
	return c
}

// ChangeIDSlice sorts []ChangeID in increasing order.
type ChangeIDSlice []ChangeID

func (s ChangeIDSlice) Len() int { return len(s) }
func (s ChangeIDSlice) Less(i, j int) bool {
	return bytes.Compare(s[i][:], s[j][:]) < 0
}
func (s ChangeIDSlice) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
