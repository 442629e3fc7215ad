// Command zit is a thin demonstration wiring over the repo/transaction/
// workingcopy libraries: just enough subcommand surface (init, snapshot,
// commit, rebase, abandon, log) to exercise the library end to end. It is
// deliberately not an argument-parsing framework — flags are read straight
// off os.Args and environment variables, the way a calling program is
// expected to drive these libraries directly rather than through a shell.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/antgroup/zit/hash"
	"github.com/antgroup/zit/objectstore"
	"github.com/antgroup/zit/repo"
	"github.com/antgroup/zit/transaction"
	"github.com/antgroup/zit/workingcopy"
)

// Environment variables read by this command, the ZIT_-renamed
// equivalents of jj's JJ_USER/JJ_EMAIL/JJ_TIMESTAMP/JJ_RANDOMNESS_SEED/
// JJ_WORKSPACE_ROOT: ZIT_USER and ZIT_EMAIL name the committing identity,
// ZIT_TIMESTAMP overrides the commit/operation clock (RFC3339) for
// reproducible test runs, ZIT_RANDOMNESS_SEED is accepted for symmetry
// with the original but unused (this implementation's ChangeID generation
// isn't seedable), and ZIT_WORKSPACE_ROOT overrides the discovered
// workspace root instead of walking up from the working directory.
const (
	envUser          = "ZIT_USER"
	envEmail         = "ZIT_EMAIL"
	envTimestamp     = "ZIT_TIMESTAMP"
	envRandomSeed    = "ZIT_RANDOMNESS_SEED"
	envWorkspaceRoot = "ZIT_WORKSPACE_ROOT"
)

const defaultWorkspace = "default"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "zit:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: zit <init|snapshot|commit|rebase|abandon|log> [args]")
	}
	switch args[0] {
	case "init":
		return cmdInit(args[1:])
	case "snapshot":
		return cmdSnapshot(args[1:])
	case "commit":
		return cmdCommit(args[1:])
	case "rebase":
		return cmdRebase(args[1:])
	case "abandon":
		return cmdAbandon(args[1:])
	case "log":
		return cmdLog(args[1:])
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func workspaceRoot() (string, error) {
	if root := os.Getenv(envWorkspaceRoot); root != "" {
		return root, nil
	}
	return os.Getwd()
}

func identity() (objectstore.Signature, error) {
	name := os.Getenv(envUser)
	email := os.Getenv(envEmail)
	if name == "" || email == "" {
		return objectstore.Signature{}, fmt.Errorf("%s and %s must be set", envUser, envEmail)
	}
	when := time.Now().UTC()
	if ts := os.Getenv(envTimestamp); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return objectstore.Signature{}, fmt.Errorf("%s: %w", envTimestamp, err)
		}
		when = parsed
	}
	return objectstore.Signature{Name: name, Email: email, When: when}, nil
}

func openRepo(root string) (*repo.Repo, error) {
	return repo.Open(repo.RepoDir(root))
}

func openWorkingCopy(r *repo.Repo, root string) *workingcopy.WorkingCopy {
	controlDir := filepath.Join(root, ".zit", "working_copy")
	return workingcopy.OpenAt(r.Objects, root, controlDir)
}

func cmdInit(_ []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	r, err := repo.Init(repo.RepoDir(root))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(root, ".zit", "working_copy"), 0o755); err != nil {
		return err
	}
	emptyTree, err := r.Objects.WriteTree(&objectstore.Tree{})
	if err != nil {
		return err
	}
	wc := openWorkingCopy(r, root)
	if err := wc.ResetRecord(emptyTree, hash.OperationID{}); err != nil {
		return err
	}
	logrus.WithField("dir", repo.RepoDir(root)).Info("initialized repository")
	return nil
}

func cmdSnapshot(_ []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	r, err := openRepo(root)
	if err != nil {
		return err
	}
	wc := openWorkingCopy(r, root)
	tree, stats, err := wc.Snapshot(workingcopy.SnapshotOptions{})
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"tree":     tree.String(),
		"added":    len(stats.Added),
		"modified": len(stats.Modified),
		"removed":  len(stats.Removed),
	}).Info("snapshot")
	return nil
}

// cmdCommit snapshots the working copy, writes a commit on top of the
// default workspace's current working-copy commit, and records the new
// commit as that workspace's pointer in the resulting operation.
func cmdCommit(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: zit commit <description>")
	}
	description := args[0]

	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	r, err := openRepo(root)
	if err != nil {
		return err
	}
	id, err := identity()
	if err != nil {
		return err
	}
	wc := openWorkingCopy(r, root)
	tree, _, err := wc.Snapshot(workingcopy.SnapshotOptions{})
	if err != nil {
		return err
	}

	tx, err := r.NewTransaction(id, nil)
	if err != nil {
		return err
	}
	view, _, err := r.CurrentView()
	if err != nil {
		return err
	}
	var parents []hash.CommitID
	if prev, ok := view.WCCommitIDs[defaultWorkspace]; ok {
		parents = []hash.CommitID{prev}
	}
	commitID, err := tx.NewCommit(parents, tree).Write()
	if err != nil {
		return err
	}
	tx.SetWorkingCopy(defaultWorkspace, commitID)
	opID, err := tx.Commit(description)
	if err != nil {
		return err
	}
	if err := wc.ResetRecord(tree, opID); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"commit": commitID.String(), "operation": opID.String()}).Info("committed")
	return nil
}

func cmdAbandon(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: zit abandon <commit-id>")
	}
	target, err := parseCommitID(args[0])
	if err != nil {
		return err
	}

	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	r, err := openRepo(root)
	if err != nil {
		return err
	}
	id, err := identity()
	if err != nil {
		return err
	}
	if err := r.Index.EnsureIndexed([]hash.CommitID{target}); err != nil {
		return err
	}
	tx, err := r.NewTransaction(id, nil)
	if err != nil {
		return err
	}
	err = tx.TransformDescendants([]hash.CommitID{target}, nil, transaction.RewriteRefsOptions{}, func(rw *transaction.CommitRewriter) error {
		if rw.OldCommitID == target {
			return rw.Abandon()
		}
		_, err := rw.Reparent().Write()
		return err
	})
	if err != nil {
		return err
	}
	opID, err := tx.Commit(fmt.Sprintf("abandon commit %s", target.String()))
	if err != nil {
		return err
	}
	logrus.WithField("operation", opID.String()).Info("abandoned")
	return nil
}

func cmdRebase(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: zit rebase <commit-id> <new-parent-id>")
	}
	target, err := parseCommitID(args[0])
	if err != nil {
		return err
	}
	newParent, err := parseCommitID(args[1])
	if err != nil {
		return err
	}

	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	r, err := openRepo(root)
	if err != nil {
		return err
	}
	id, err := identity()
	if err != nil {
		return err
	}
	if err := r.Index.EnsureIndexed([]hash.CommitID{target, newParent}); err != nil {
		return err
	}
	tx, err := r.NewTransaction(id, nil)
	if err != nil {
		return err
	}
	newParentsMap := map[hash.CommitID][]hash.CommitID{target: {newParent}}
	err = tx.TransformDescendants([]hash.CommitID{target}, newParentsMap, transaction.RewriteRefsOptions{}, func(rw *transaction.CommitRewriter) error {
		cb, err := rw.Rebase()
		if err != nil {
			return err
		}
		_, err = cb.Write()
		return err
	})
	if err != nil {
		return err
	}
	opID, err := tx.Commit(fmt.Sprintf("rebase %s onto %s", target.String(), newParent.String()))
	if err != nil {
		return err
	}
	logrus.WithField("operation", opID.String()).Info("rebased")
	return nil
}

// cmdLog prints the default workspace's working-copy commit and its
// first-parent ancestry, newest-first, limited to the requested depth
// (default 10).
func cmdLog(args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("log: bad limit %q: %w", args[0], err)
		}
		limit = n
	}

	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	r, err := openRepo(root)
	if err != nil {
		return err
	}
	view, _, err := r.CurrentView()
	if err != nil {
		return err
	}
	cur, ok := view.WCCommitIDs[defaultWorkspace]
	if !ok {
		fmt.Println("(no commits)")
		return nil
	}
	for i := 0; i < limit; i++ {
		c, err := r.Objects.GetCommit(cur)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s  %s\n", cur.String()[:12], c.Committer.When.Format(time.RFC3339), c.Description)
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	return nil
}

func parseCommitID(s string) (hash.CommitID, error) {
	id, err := hash.NewEx(s)
	if err != nil {
		return hash.CommitID{}, fmt.Errorf("bad commit id %q: %w", s, err)
	}
	return hash.CommitID(id), nil
}
