package repo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/opstore"
)

const revertDescriptionPrefix = "revert operation "

// Revert produces a new operation whose view equals opID's parent view,
// undoing exactly what opID changed, and advances the current heads to
// point at it. If opID has several parents (it was itself a merge
// operation) the first parent, in sorted order, supplies the view, a
// documented simplification since there is no single canonical "the"
// parent of a merge.
func (r *Repo) Revert(opID hash.OperationID) (hash.OperationID, error) {
	op, err := r.Ops.ReadOperation(opID)
	if err != nil {
		return hash.OperationID{}, err
	}

	var restoredView *opstore.View
	if len(op.Parents) == 0 {
		restoredView = opstore.NewView()
	} else {
		parents := append([]hash.OperationID(nil), op.Parents...)
		sortOperationIDs(parents)
		parentOp, err := r.Ops.ReadOperation(parents[0])
		if err != nil {
			return hash.OperationID{}, err
		}
		restoredView, err = r.Ops.ReadView(parentOp.ViewID)
		if err != nil {
			return hash.OperationID{}, err
		}
	}

	heads, err := r.Heads.ReadHeads()
	if err != nil {
		return hash.OperationID{}, err
	}

	viewID, err := r.Ops.WriteView(restoredView)
	if err != nil {
		return hash.OperationID{}, err
	}
	newOp := &opstore.Operation{
		Parents: heads,
		ViewID:  viewID,
		Metadata: opstore.Metadata{
			Description: fmt.Sprintf("%s%s", revertDescriptionPrefix, hash.ID(opID).String()),
			Time:        time.Now().UTC(),
			Tag:         uuid.NewString(),
		},
		HasCommitPredecessors: true,
		CommitPredecessors:    map[hash.CommitID][]hash.CommitID{},
	}
	newOpID, err := r.Ops.WriteOperation(newOp)
	if err != nil {
		return hash.OperationID{}, err
	}
	if err := r.Heads.CompareAndSetHeads(heads, newOpID); err != nil {
		return hash.OperationID{}, err
	}
	return newOpID, nil
}

// Undo reverts the most recent operation: a shorthand for Revert(head),
// valid only when the log has collapsed to a single head.
func (r *Repo) Undo() (hash.OperationID, error) {
	_, heads, err := r.CurrentView()
	if err != nil {
		return hash.OperationID{}, err
	}
	if len(heads) != 1 {
		return hash.OperationID{}, fmt.Errorf("repo: undo requires exactly one operation head, found %d", len(heads))
	}
	return r.Revert(heads[0])
}

// Redo reverts an immediately prior Undo: it requires the current head to
// be a revert marker (as written by Revert/Undo) and reapplies the
// reverted operation's own view rather than its parent's, jumping over the
// chained marker by reading the original operation id out of the revert's
// description instead of walking operation content.
func (r *Repo) Redo() (hash.OperationID, error) {
	_, heads, err := r.CurrentView()
	if err != nil {
		return hash.OperationID{}, err
	}
	if len(heads) != 1 {
		return hash.OperationID{}, fmt.Errorf("repo: redo requires exactly one operation head, found %d", len(heads))
	}
	head := heads[0]
	op, err := r.Ops.ReadOperation(head)
	if err != nil {
		return hash.OperationID{}, err
	}
	revertedHex, ok := strings.CutPrefix(op.Metadata.Description, revertDescriptionPrefix)
	if !ok {
		return hash.OperationID{}, &ErrNothingToRedo{}
	}
	revertedID, err := hash.NewEx(revertedHex)
	if err != nil {
		return hash.OperationID{}, fmt.Errorf("repo: redo: %w", err)
	}
	revertedOpID := hash.OperationID(revertedID)

	revertedOp, err := r.Ops.ReadOperation(revertedOpID)
	if err != nil {
		return hash.OperationID{}, err
	}
	restoredView, err := r.Ops.ReadView(revertedOp.ViewID)
	if err != nil {
		return hash.OperationID{}, err
	}

	viewID, err := r.Ops.WriteView(restoredView)
	if err != nil {
		return hash.OperationID{}, err
	}
	newOp := &opstore.Operation{
		Parents: []hash.OperationID{head},
		ViewID:  viewID,
		Metadata: opstore.Metadata{
			Description: fmt.Sprintf("redo (%s%s)", revertDescriptionPrefix, hash.ID(revertedOpID).String()),
			Time:        time.Now().UTC(),
			Tag:         uuid.NewString(),
		},
		HasCommitPredecessors: true,
		CommitPredecessors:    map[hash.CommitID][]hash.CommitID{},
	}
	newOpID, err := r.Ops.WriteOperation(newOp)
	if err != nil {
		return hash.OperationID{}, err
	}
	if err := r.Heads.CompareAndSetHeads([]hash.OperationID{head}, newOpID); err != nil {
		return hash.OperationID{}, err
	}
	return newOpID, nil
}

func sortOperationIDs(ids []hash.OperationID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && hash.ID(ids[j]).String() < hash.ID(ids[j-1]).String(); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}
