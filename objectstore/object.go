// Package objectstore implements the content-addressed object graph: files,
// symlinks, trees, commits and conflict objects, each framed with a 4-byte
// magic plus a 2-byte version ahead of their body, and hashed (BLAKE3) over
// that framed encoding to produce the object's id.
package objectstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
)

// Magic identifies an object's type on disk, mirroring the teacher's
// 4-byte-magic-plus-version framing (modules/zeta/object's {COMMIT,TREE,...}_MAGIC).
type Magic [4]byte

var (
	FileMagic     = Magic{'Z', 'I', 'T', 'f'}
	SymlinkMagic  = Magic{'Z', 'I', 'T', 's'}
	TreeMagic     = Magic{'Z', 'I', 'T', 't'}
	CommitMagic   = Magic{'Z', 'I', 'T', 'c'}
	ConflictMagic = Magic{'Z', 'I', 'T', 'x'}
)

const formatVersion uint16 = 1

// FileMode tags what kind of value a tree entry or conflict term points to.
type FileMode int8

const (
	ModeFile FileMode = iota
	ModeExecutable
	ModeSymlink
	ModeTree
	ModeConflict
	ModeAbsent
)

func (m FileMode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeExecutable:
		return "executable"
	case ModeSymlink:
		return "symlink"
	case ModeTree:
		return "tree"
	case ModeConflict:
		return "conflict"
	case ModeAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// File is a blob object: the raw content of a regular or executable file.
type File struct {
	Content []byte
}

func (f *File) Encode(w io.Writer) error {
	if _, err := w.Write(FileMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return err
	}
	_, err := w.Write(f.Content)
	return err
}

func decodeFile(body []byte) (*File, error) {
	return &File{Content: body}, nil
}

// Symlink is the target path of a symbolic link.
type Symlink struct {
	Target string
}

func (s *Symlink) Encode(w io.Writer) error {
	if _, err := w.Write(SymlinkMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return err
	}
	_, err := io.WriteString(w, s.Target)
	return err
}

func decodeSymlink(body []byte) (*Symlink, error) {
	return &Symlink{Target: string(body)}, nil
}

// TreeEntry is one named child of a Tree: either a file, executable, symlink,
// nested tree, or (for a path whose value did not auto-resolve across all
// merge terms) a pointer to a Conflict object.
type TreeEntry struct {
	Name string
	Mode FileMode
	ID   hash.ID
}

// Tree is a sorted list of named entries, mirroring the teacher's
// modules/zeta/object.Tree shape (object.go/tree.go): entries are kept sorted
// by name so that two trees with identical content always encode identically.
type Tree struct {
	Entries []TreeEntry
}

func (t *Tree) sorted() []TreeEntry {
	out := append([]TreeEntry(nil), t.Entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *Tree) Encode(w io.Writer) error {
	if _, err := w.Write(TreeMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return err
	}
	for _, e := range t.sorted() {
		if _, err := fmt.Fprintf(w, "%d %s %s\n", e.Mode, e.ID.String(), e.Name); err != nil {
			return err
		}
	}
	return nil
}

func decodeTree(body []byte) (*Tree, error) {
	t := &Tree{}
	for _, line := range strings.Split(strings.TrimSuffix(string(body), "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("objectstore: malformed tree entry %q", line)
		}
		modeNum, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("objectstore: malformed tree entry mode %q", fields[0])
		}
		id, err := hash.NewEx(fields[1])
		if err != nil {
			return nil, fmt.Errorf("objectstore: malformed tree entry id %q: %w", fields[1], err)
		}
		t.Entries = append(t.Entries, TreeEntry{Name: fields[2], Mode: FileMode(modeNum), ID: id})
	}
	return t, nil
}

// Signature is a commit's author or committer identity and timestamp.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func (s Signature) encode() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), s.When.Format("-0700"))
}

func decodeSignature(text string) (Signature, error) {
	open := strings.LastIndexByte(text, '<')
	close := strings.LastIndexByte(text, '>')
	if open < 0 || close < 0 || close < open {
		return Signature{}, fmt.Errorf("objectstore: malformed signature %q", text)
	}
	s := Signature{
		Name:  strings.TrimSpace(text[:open]),
		Email: text[open+1 : close],
	}
	rest := strings.TrimSpace(text[close+1:])
	fields := strings.Fields(rest)
	if len(fields) == 2 {
		secs, err := strconv.ParseInt(fields[0], 10, 64)
		if err == nil {
			loc := time.UTC
			if tz, err := time.Parse("-0700", fields[1]); err == nil {
				_, offset := tz.Zone()
				loc = time.FixedZone("", offset)
			}
			s.When = time.Unix(secs, 0).In(loc)
		}
	}
	return s, nil
}

// Commit is the core unit of history: a (possibly conflicted) root tree, a
// stable change id distinct from the content-derived commit id, explicit
// parents, and optional predecessor bookkeeping used by the rewrite engine's
// evolution walk.
//
// HasPredecessors distinguishes "this commit was never rewritten" (field
// absent, Predecessors nil) from "this commit was rewritten from zero
// recorded predecessors" (field present but empty); the evolution walk
// follows a commit's own Predecessors only when the field is present and
// non-empty.
type Commit struct {
	ChangeID        hash.ChangeID
	Tree            merge.Merge[hash.TreeID]
	Parents         []hash.CommitID
	Author          Signature
	Committer       Signature
	Description     string
	HasPredecessors bool
	Predecessors    []hash.CommitID
	ExtraHeaders    []ExtraHeader
	SigData         []byte // detached signing signature, opaque to this package
}

type ExtraHeader struct {
	Key   string
	Value string
}

func (c *Commit) Encode(w io.Writer) error {
	if _, err := w.Write(CommitMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return err
	}
	for _, t := range c.Tree.Terms() {
		if _, err := fmt.Fprintf(w, "tree %s\n", t.String()); err != nil {
			return err
		}
	}
	for _, p := range c.Parents {
		if _, err := fmt.Fprintf(w, "parent %s\n", p.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "change %s\n", c.ChangeID.String()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "author %s\ncommitter %s\n", c.Author.encode(), c.Committer.encode()); err != nil {
		return err
	}
	if c.HasPredecessors {
		for _, p := range c.Predecessors {
			if _, err := fmt.Fprintf(w, "predecessor %s\n", p.String()); err != nil {
				return err
			}
		}
		if len(c.Predecessors) == 0 {
			if _, err := fmt.Fprintf(w, "predecessors-empty\n"); err != nil {
				return err
			}
		}
	}
	for _, h := range c.ExtraHeaders {
		if _, err := fmt.Fprintf(w, "%s %s\n", h.Key, strings.ReplaceAll(h.Value, "\n", "\n ")); err != nil {
			return err
		}
	}
	if len(c.SigData) != 0 {
		if _, err := fmt.Fprintf(w, "signature %x\n", c.SigData); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%s", c.Description)
	return err
}

func decodeCommit(body []byte) (*Commit, error) {
	c := &Commit{}
	var treeIDs []hash.TreeID
	sawPredecessorsField := false
	var message strings.Builder
	finishedHeaders := false
	lines := strings.Split(string(body), "\n")
	for i, line := range lines {
		if !finishedHeaders && line == "" {
			finishedHeaders = true
			continue
		}
		if finishedHeaders {
			message.WriteString(line)
			if i != len(lines)-1 {
				message.WriteString("\n")
			}
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			if line == "predecessors-empty" {
				sawPredecessorsField = true
				c.HasPredecessors = true
				continue
			}
			return nil, fmt.Errorf("objectstore: malformed commit header %q", line)
		}
		switch fields[0] {
		case "tree":
			id, err := hash.NewEx(fields[1])
			if err != nil {
				return nil, fmt.Errorf("objectstore: malformed tree id %q: %w", fields[1], err)
			}
			treeIDs = append(treeIDs, hash.TreeID(id))
		case "parent":
			id, err := hash.NewEx(fields[1])
			if err != nil {
				return nil, fmt.Errorf("objectstore: malformed parent id %q: %w", fields[1], err)
			}
			c.Parents = append(c.Parents, hash.CommitID(id))
		case "change":
			id, err := hash.NewEx(fields[1])
			if err != nil {
				return nil, fmt.Errorf("objectstore: malformed change id %q: %w", fields[1], err)
			}
			c.ChangeID = hash.ChangeID(id)
		case "author":
			sig, err := decodeSignature(fields[1])
			if err != nil {
				return nil, err
			}
			c.Author = sig
		case "committer":
			sig, err := decodeSignature(fields[1])
			if err != nil {
				return nil, err
			}
			c.Committer = sig
		case "predecessor":
			id, err := hash.NewEx(fields[1])
			if err != nil {
				return nil, fmt.Errorf("objectstore: malformed predecessor id %q: %w", fields[1], err)
			}
			c.Predecessors = append(c.Predecessors, hash.CommitID(id))
			c.HasPredecessors = true
			sawPredecessorsField = true
		case "signature":
			sigBytes, err := decodeHexSignature(fields[1])
			if err != nil {
				return nil, err
			}
			c.SigData = sigBytes
		default:
			c.ExtraHeaders = append(c.ExtraHeaders, ExtraHeader{Key: fields[0], Value: fields[1]})
		}
	}
	_ = sawPredecessorsField
	if len(treeIDs) == 0 {
		return nil, fmt.Errorf("objectstore: commit missing tree header")
	}
	c.Tree = merge.New(treeIDs)
	c.Description = message.String()
	return c, nil
}

func decodeHexSignature(s string) ([]byte, error) {
	out := make([]byte, len(s)/2)
	if _, err := fmt.Sscanf(s, "%x", &out); err != nil {
		return nil, fmt.Errorf("objectstore: malformed signature hex: %w", err)
	}
	return out, nil
}

// ConflictTerm is one term of a Conflict object: either present (a file,
// executable, symlink or nested tree) or absent (the path didn't exist on
// this side).
type ConflictTerm struct {
	Mode FileMode
	ID   hash.ID
}

// Conflict stores the leftover, unresolved terms of a Merge whose arity
// exceeds what a Tree entry can represent inline (N≥1 after flattening and
// simplifying, i.e. anything not resolved to a single value). A tree entry with ModeConflict points at one of these by id.
type Conflict struct {
	Terms merge.Merge[merge.Option[ConflictTerm]]
}

func (c *Conflict) Encode(w io.Writer) error {
	if _, err := w.Write(ConflictMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return err
	}
	for i, t := range c.Terms.Terms() {
		tag := "add"
		if i%2 == 1 {
			tag = "remove"
		}
		if v, ok := t.Get(); ok {
			if _, err := fmt.Fprintf(w, "%s %d %s\n", tag, v.Mode, v.ID.String()); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s absent\n", tag); err != nil {
			return err
		}
	}
	return nil
}

func decodeConflict(body []byte) (*Conflict, error) {
	var terms []merge.Option[ConflictTerm]
	for _, line := range strings.Split(strings.TrimSuffix(string(body), "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) < 2 {
			return nil, fmt.Errorf("objectstore: malformed conflict term %q", line)
		}
		if fields[1] == "absent" {
			terms = append(terms, merge.None[ConflictTerm]())
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("objectstore: malformed conflict term %q", line)
		}
		modeNum, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("objectstore: malformed conflict term mode %q", fields[1])
		}
		id, err := hash.NewEx(fields[2])
		if err != nil {
			return nil, fmt.Errorf("objectstore: malformed conflict term id %q: %w", fields[2], err)
		}
		terms = append(terms, merge.Some(ConflictTerm{Mode: FileMode(modeNum), ID: id}))
	}
	if len(terms)%2 != 1 {
		return nil, fmt.Errorf("objectstore: conflict object has even term count %d", len(terms))
	}
	return &Conflict{Terms: merge.New(terms)}, nil
}

// Encoder is anything that can frame itself for hashing and storage.
type Encoder interface {
	Encode(io.Writer) error
}

// EncodeBytes runs Encode into a buffer, for callers that need the raw bytes
// (e.g. to hash or to hand to a signer) rather than a stream.
func EncodeBytes(e Encoder) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeBody splits a raw stored object into its magic, version and body,
// and dispatches to the matching decoder.
func decodeBody(data []byte) (any, Magic, error) {
	if len(data) < 6 {
		return nil, Magic{}, fmt.Errorf("objectstore: object too short (%d bytes)", len(data))
	}
	var m Magic
	copy(m[:], data[:4])
	version := binary.BigEndian.Uint16(data[4:6])
	if version != formatVersion {
		return nil, m, fmt.Errorf("objectstore: unsupported object version %d", version)
	}
	body := data[6:]
	switch m {
	case FileMagic:
		v, err := decodeFile(body)
		return v, m, err
	case SymlinkMagic:
		v, err := decodeSymlink(body)
		return v, m, err
	case TreeMagic:
		v, err := decodeTree(body)
		return v, m, err
	case CommitMagic:
		v, err := decodeCommit(body)
		return v, m, err
	case ConflictMagic:
		v, err := decodeConflict(body)
		return v, m, err
	default:
		return nil, m, fmt.Errorf("objectstore: unrecognized object magic %x", m)
	}
}
