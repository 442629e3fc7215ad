// Package opstore implements the operation store: content-addressed storage
// of operations and the repository views they snapshot, plus the CAS-guarded
// operation-log head. Framing mirrors the object store (objectstore/object.go):
// a 4-byte magic plus 2-byte version ahead of a text body, hashed with BLAKE3
// to produce the operation's or view's id.
package opstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/merge"
	"github.com/antgroup/zit/refs"
)

// Magic identifies an operation-store object's kind on disk, the same
// framing idiom as objectstore.Magic.
type Magic [4]byte

var (
	OperationMagic = Magic{'Z', 'I', 'T', 'o'}
	ViewMagic      = Magic{'Z', 'I', 'T', 'v'}
)

const formatVersion uint16 = 1

// Metadata is the descriptive envelope carried by every operation: what it
// did, when, and (Tag) a log-correlation token.
//
// Tag is drawn from a separate, non-content-addressed namespace (a random
// UUID) distinct from the operation's own content-addressed id: it exists
// purely so a human reading logs can follow one logical action (e.g. a
// single CLI invocation) across the several operations it may produce,
// without that tracing value affecting what the operation hashes to.
type Metadata struct {
	Description string
	Time        time.Time
	Tags        map[string]string
	Args        []string
	Tag         string
}

// Operation is one immutable step of the operation log: the parent
// operations it was built on top of, the view it produced, descriptive
// metadata, and (if known) which commits replaced which across the rewrite
// that produced it.
//
// HasCommitPredecessors distinguishes "this operation predates predecessor
// tracking" (field absent, CommitPredecessors nil) from "this operation
// tracked zero rewrites" (field present but empty) — the same nil-vs-empty
// distinction objectstore.Commit uses for HasPredecessors/Predecessors, and
// for the same reason: the evolution walk's fallback to a commit's own
// predecessors must trigger only on the former.
type Operation struct {
	Parents               []hash.OperationID
	ViewID                hash.ViewID
	Metadata              Metadata
	CommitPredecessors    map[hash.CommitID][]hash.CommitID
	HasCommitPredecessors bool
}

// View is the repository snapshot an operation points at: the three ref
// namespaces (refs.View), the set of currently visible heads, and each
// workspace's working-copy commit pointer.
type View struct {
	Refs        *refs.View
	HeadIDs     []hash.CommitID
	WCCommitIDs map[string]hash.CommitID
}

// NewView returns an empty view.
func NewView() *View {
	return &View{Refs: refs.New(), WCCommitIDs: make(map[string]hash.CommitID)}
}

// Clone deep-copies a view.
func (v *View) Clone() *View {
	out := &View{Refs: v.Refs.Clone(), WCCommitIDs: make(map[string]hash.CommitID, len(v.WCCommitIDs))}
	out.HeadIDs = append(out.HeadIDs, v.HeadIDs...)
	for k, id := range v.WCCommitIDs {
		out.WCCommitIDs[k] = id
	}
	return out
}

func (o *Operation) Encode(w *bytes.Buffer) error {
	w.Write(OperationMagic[:])
	binary.Write(w, binary.BigEndian, formatVersion)
	parents := append([]hash.OperationID(nil), o.Parents...)
	sort.Slice(parents, func(i, j int) bool { return hash.ID(parents[i]).String() < hash.ID(parents[j]).String() })
	for _, p := range parents {
		fmt.Fprintf(w, "parent %s\n", hash.ID(p).String())
	}
	fmt.Fprintf(w, "view %s\n", hash.ID(o.ViewID).String())
	fmt.Fprintf(w, "time %d\n", o.Metadata.Time.UnixNano())
	if o.Metadata.Tag != "" {
		fmt.Fprintf(w, "logtag %s\n", o.Metadata.Tag)
	}
	for _, a := range o.Metadata.Args {
		fmt.Fprintf(w, "arg %s\n", strings.ReplaceAll(a, "\n", "\\n"))
	}
	tagKeys := make([]string, 0, len(o.Metadata.Tags))
	for k := range o.Metadata.Tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		fmt.Fprintf(w, "label %s %s\n", k, o.Metadata.Tags[k])
	}
	if o.HasCommitPredecessors {
		newIDs := make([]hash.CommitID, 0, len(o.CommitPredecessors))
		for id := range o.CommitPredecessors {
			newIDs = append(newIDs, id)
		}
		sort.Slice(newIDs, func(i, j int) bool { return hash.ID(newIDs[i]).String() < hash.ID(newIDs[j]).String() })
		for _, newID := range newIDs {
			olds := o.CommitPredecessors[newID]
			for _, old := range olds {
				fmt.Fprintf(w, "predecessor %s %s\n", hash.ID(newID).String(), hash.ID(old).String())
			}
		}
		if len(o.CommitPredecessors) == 0 {
			fmt.Fprintf(w, "predecessors-empty\n")
		}
	}
	fmt.Fprintf(w, "\n%s", o.Metadata.Description)
	return nil
}

func decodeOperation(body []byte) (*Operation, error) {
	op := &Operation{}
	finishedHeaders := false
	var desc strings.Builder
	lines := strings.Split(string(body), "\n")
	for i, line := range lines {
		if !finishedHeaders && line == "" {
			finishedHeaders = true
			continue
		}
		if finishedHeaders {
			desc.WriteString(line)
			if i != len(lines)-1 {
				desc.WriteString("\n")
			}
			continue
		}
		if line == "predecessors-empty" {
			op.HasCommitPredecessors = true
			if op.CommitPredecessors == nil {
				op.CommitPredecessors = map[hash.CommitID][]hash.CommitID{}
			}
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("opstore: malformed operation header %q", line)
		}
		switch fields[0] {
		case "parent":
			id, err := hash.NewEx(fields[1])
			if err != nil {
				return nil, err
			}
			op.Parents = append(op.Parents, hash.OperationID(id))
		case "view":
			id, err := hash.NewEx(fields[1])
			if err != nil {
				return nil, err
			}
			op.ViewID = hash.ViewID(id)
		case "time":
			nsec, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return nil, err
			}
			op.Metadata.Time = time.Unix(0, nsec).UTC()
		case "logtag":
			op.Metadata.Tag = fields[1]
		case "arg":
			op.Metadata.Args = append(op.Metadata.Args, strings.ReplaceAll(fields[1], "\\n", "\n"))
		case "label":
			kv := strings.SplitN(fields[1], " ", 2)
			if len(kv) != 2 {
				return nil, fmt.Errorf("opstore: malformed label %q", fields[1])
			}
			if op.Metadata.Tags == nil {
				op.Metadata.Tags = map[string]string{}
			}
			op.Metadata.Tags[kv[0]] = kv[1]
		case "predecessor":
			kv := strings.SplitN(fields[1], " ", 2)
			if len(kv) != 2 {
				return nil, fmt.Errorf("opstore: malformed predecessor %q", fields[1])
			}
			newID, err := hash.NewEx(kv[0])
			if err != nil {
				return nil, err
			}
			oldID, err := hash.NewEx(kv[1])
			if err != nil {
				return nil, err
			}
			if op.CommitPredecessors == nil {
				op.CommitPredecessors = map[hash.CommitID][]hash.CommitID{}
			}
			op.CommitPredecessors[hash.CommitID(newID)] = append(op.CommitPredecessors[hash.CommitID(newID)], hash.CommitID(oldID))
			op.HasCommitPredecessors = true
		default:
			return nil, fmt.Errorf("opstore: unrecognized operation header %q", fields[0])
		}
	}
	op.Metadata.Description = desc.String()
	return op, nil
}

func refTargetEncode(t refs.RefTarget) string {
	var parts []string
	for i, term := range t.Terms() {
		if id, present := term.Get(); present {
			parts = append(parts, fmt.Sprintf("%d:%s", i, hash.ID(id).String()))
		} else {
			parts = append(parts, fmt.Sprintf("%d:-", i))
		}
	}
	return strings.Join(parts, ",")
}

func refTargetDecode(s string) (refs.RefTarget, error) {
	parts := strings.Split(s, ",")
	terms := make([]merge.Option[hash.CommitID], len(parts))
	for _, p := range parts {
		fields := strings.SplitN(p, ":", 2)
		if len(fields) != 2 {
			return refs.RefTarget{}, fmt.Errorf("opstore: malformed ref target term %q", p)
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 0 || idx >= len(terms) {
			return refs.RefTarget{}, fmt.Errorf("opstore: malformed ref target term index %q", fields[0])
		}
		if fields[1] == "-" {
			terms[idx] = merge.None[hash.CommitID]()
			continue
		}
		id, err := hash.NewEx(fields[1])
		if err != nil {
			return refs.RefTarget{}, err
		}
		terms[idx] = merge.Some(hash.CommitID(id))
	}
	return merge.New(terms), nil
}

func (v *View) Encode(w *bytes.Buffer) error {
	w.Write(ViewMagic[:])
	binary.Write(w, binary.BigEndian, formatVersion)

	names := make([]string, 0, len(v.Refs.LocalBookmarks))
	for n := range v.Refs.LocalBookmarks {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "bookmark %s %s\n", n, refTargetEncode(v.Refs.LocalBookmarks[n]))
	}

	tagNames := make([]string, 0, len(v.Refs.Tags))
	for n := range v.Refs.Tags {
		tagNames = append(tagNames, n)
	}
	sort.Strings(tagNames)
	for _, n := range tagNames {
		fmt.Fprintf(w, "tag %s %s\n", n, refTargetEncode(v.Refs.Tags[n]))
	}

	type remoteKey struct {
		remote, name string
	}
	rkeys := make([]remoteKey, 0, len(v.Refs.RemoteBookmarks))
	for k := range v.Refs.RemoteBookmarks {
		rkeys = append(rkeys, remoteKey{k.Remote, k.Name})
	}
	sort.Slice(rkeys, func(i, j int) bool {
		if rkeys[i].remote != rkeys[j].remote {
			return rkeys[i].remote < rkeys[j].remote
		}
		return rkeys[i].name < rkeys[j].name
	})
	for _, k := range rkeys {
		ref := v.Refs.RemoteBookmarks[refs.RemoteBookmarkKey{Remote: k.remote, Name: k.name}]
		fmt.Fprintf(w, "remote %s %s %d %s\n", k.remote, k.name, ref.State, refTargetEncode(ref.Target))
	}

	heads := append([]hash.CommitID(nil), v.HeadIDs...)
	sort.Slice(heads, func(i, j int) bool { return hash.ID(heads[i]).String() < hash.ID(heads[j]).String() })
	for _, h := range heads {
		fmt.Fprintf(w, "head %s\n", hash.ID(h).String())
	}

	wsNames := make([]string, 0, len(v.WCCommitIDs))
	for n := range v.WCCommitIDs {
		wsNames = append(wsNames, n)
	}
	sort.Strings(wsNames)
	for _, n := range wsNames {
		fmt.Fprintf(w, "wc %s %s\n", n, hash.ID(v.WCCommitIDs[n]).String())
	}
	return nil
}

func decodeView(body []byte) (*View, error) {
	v := NewView()
	for _, line := range strings.Split(strings.TrimSuffix(string(body), "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("opstore: malformed view line %q", line)
		}
		switch fields[0] {
		case "bookmark":
			kv := strings.SplitN(fields[1], " ", 2)
			target, err := refTargetDecode(kv[1])
			if err != nil {
				return nil, err
			}
			v.Refs.LocalBookmarks[kv[0]] = target
		case "tag":
			kv := strings.SplitN(fields[1], " ", 2)
			target, err := refTargetDecode(kv[1])
			if err != nil {
				return nil, err
			}
			v.Refs.Tags[kv[0]] = target
		case "remote":
			parts := strings.SplitN(fields[1], " ", 4)
			if len(parts) != 4 {
				return nil, fmt.Errorf("opstore: malformed remote bookmark line %q", line)
			}
			stateNum, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, err
			}
			target, err := refTargetDecode(parts[3])
			if err != nil {
				return nil, err
			}
			key := refs.RemoteBookmarkKey{Remote: parts[0], Name: parts[1]}
			v.Refs.RemoteBookmarks[key] = refs.RemoteRef{Target: target, State: refs.RemoteRefState(stateNum)}
		case "head":
			id, err := hash.NewEx(fields[1])
			if err != nil {
				return nil, err
			}
			v.HeadIDs = append(v.HeadIDs, hash.CommitID(id))
		case "wc":
			kv := strings.SplitN(fields[1], " ", 2)
			id, err := hash.NewEx(kv[1])
			if err != nil {
				return nil, err
			}
			v.WCCommitIDs[kv[0]] = hash.CommitID(id)
		default:
			return nil, fmt.Errorf("opstore: unrecognized view line key %q", fields[0])
		}
	}
	return v, nil
}

// decodeBody splits a raw stored blob into its magic, version and body, and
// dispatches to the matching decoder.
func decodeBody(data []byte) (any, Magic, error) {
	if len(data) < 6 {
		return nil, Magic{}, fmt.Errorf("opstore: object too short (%d bytes)", len(data))
	}
	var m Magic
	copy(m[:], data[:4])
	version := binary.BigEndian.Uint16(data[4:6])
	if version != formatVersion {
		return nil, m, fmt.Errorf("opstore: unsupported object version %d", version)
	}
	body := data[6:]
	switch m {
	case OperationMagic:
		v, err := decodeOperation(body)
		return v, m, err
	case ViewMagic:
		v, err := decodeView(body)
		return v, m, err
	default:
		return nil, m, fmt.Errorf("opstore: unrecognized object magic %x", m)
	}
}
