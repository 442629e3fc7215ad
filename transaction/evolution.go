package transaction

import (
	"fmt"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/objectstore"
	"github.com/antgroup/zit/opstore"
)

// EvolutionEntry is one commit surfaced by a walk of a commit's rewrite
// history.
type EvolutionEntry struct {
	CommitID hash.CommitID
}

func reverseCommitIDs(ids []hash.CommitID) []hash.CommitID {
	out := make([]hash.CommitID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

// WalkPredecessors returns, in reverse-topological evolution order, every
// commit id that start (or its recorded predecessors, transitively) has
// ever been known as.
//
// Operations are consulted from opHeads backward, newest first. For each
// operation still carrying commit-predecessor tracking
// (op.HasCommitPredecessors), a visible commit id still in the to-visit
// list is replaced by its recorded predecessors, reversed so that the most
// recently squashed contribution surfaces first — mirroring evolution.rs's
// visit_op. The walk falls back permanently to scanning each commit's own
// stored Predecessors field (objectstore.Commit.HasPredecessors) the first
// time it reaches an operation that predates predecessor tracking, since at
// that point no operation in the remaining history carries the
// information needed to do better.
//
// Operation ancestors are visited in FIFO order starting from opHeads: this
// assumes opHeads themselves are already the newest operations in scope
// (the normal case, a repository's current or historical head set), since
// the operation store carries no generation index of its own to sort by.
func WalkPredecessors(ops *opstore.Store, objects *objectstore.Store, opHeads []hash.OperationID, start []hash.CommitID) ([]hash.CommitID, error) {
	visited := make(map[hash.CommitID]bool)
	var result []hash.CommitID
	toVisit := append([]hash.CommitID(nil), start...)

	opVisited := make(map[hash.OperationID]bool)
	opQueue := append([]hash.OperationID(nil), opHeads...)
	fallback := false

	for len(opQueue) > 0 && len(toVisit) > 0 && !fallback {
		opID := opQueue[0]
		opQueue = opQueue[1:]
		if opVisited[opID] {
			continue
		}
		opVisited[opID] = true

		op, err := ops.ReadOperation(opID)
		if err != nil {
			return nil, fmt.Errorf("transaction: evolution walk: read operation %s: %w", opID, err)
		}
		if !op.HasCommitPredecessors {
			fallback = true
			break
		}

		for {
			progressed := false
			var next []hash.CommitID
			for _, id := range toVisit {
				if visited[id] {
					continue
				}
				preds, ok := op.CommitPredecessors[id]
				if !ok || len(preds) == 0 {
					next = append(next, id)
					continue
				}
				visited[id] = true
				result = append(result, id)
				next = append(next, reverseCommitIDs(preds)...)
				progressed = true
			}
			toVisit = next
			if !progressed {
				break
			}
		}

		opQueue = append(opQueue, op.Parents...)
	}

	// flush_commits: drain whatever is left, falling back to each commit's
	// own predecessors field once operation-based tracking is exhausted.
	for len(toVisit) > 0 {
		id := toVisit[0]
		toVisit = toVisit[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		result = append(result, id)

		commit, err := objects.GetCommit(id)
		if err != nil {
			return nil, fmt.Errorf("transaction: evolution walk: read commit %s: %w", id, err)
		}
		if commit.HasPredecessors && len(commit.Predecessors) > 0 {
			toVisit = append(reverseCommitIDs(commit.Predecessors), toVisit...)
		}
	}

	return result, nil
}
