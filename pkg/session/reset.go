package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/tarsiersync/forgecode/pkg/apperrors"
	"github.com/tarsiersync/forgecode/pkg/filelock"
	"github.com/tarsiersync/forgecode/pkg/mcts"
)

// ResetFileSystem restores rootDirectory to node's recorded base content
// (§5 "reset_file_system... runs stash + reset --hard <base_commit> and
// then rewrites each file from the node's base_content. This is
// destructive; callers MUST ensure no external writers are active.").
//
// locks, if non-nil, is used to serialize each file rewrite against any
// applicator in-flight edits to the same path (§4.C); a nil locks skips
// that coordination, for callers that already hold exclusivity some other
// way (e.g. tests).
func ResetFileSystem(ctx context.Context, rootDirectory, baseCommit string, node *mcts.ActionNode, locks *filelock.Registry) error {
	if err := gitResetHard(ctx, rootDirectory, baseCommit); err != nil {
		return err
	}

	for _, v := range node.UserContext.Variables {
		if err := restoreFile(ctx, rootDirectory, v, locks); err != nil {
			return err
		}
	}
	return nil
}

// gitResetHard stashes any dirty working tree state and hard-resets to
// baseCommit, mirroring the git CLI invocation the source describes — no
// library in the example pack wraps porcelain git commands, so this shells
// out directly.
func gitResetHard(ctx context.Context, rootDirectory, baseCommit string) error {
	if err := runGit(ctx, rootDirectory, "stash"); err != nil {
		return err
	}
	if err := runGit(ctx, rootDirectory, "reset", "--hard", baseCommit); err != nil {
		return err
	}
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return apperrors.NewIOError(dir, fmt.Errorf("git %v: %w: %s", args, err, out))
	}
	return nil
}

func restoreFile(ctx context.Context, rootDirectory string, v mcts.UserContextVariable, locks *filelock.Registry) error {
	path := v.FsFilePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootDirectory, path)
	}

	if locks != nil {
		release, _, err := locks.Acquire(ctx, path)
		if err != nil {
			return err
		}
		defer release()
	}

	if err := writeFileAtomically(path, v.BaseContent); err != nil {
		return apperrors.NewIOError(path, err)
	}
	return nil
}

// writeFileAtomically mirrors the applicator's own temp-file-plus-rename
// discipline (pkg/applicator's unexported helper of the same name) so a
// reset that's interrupted mid-write never leaves a truncated file behind.
func writeFileAtomically(path, content string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
