// Package gitutil deals with fetching auxiliary fixture repositories.
package gitutil

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/datawire/dlib/dexec"
)

// ShallowClone clones repo in to dir with the given history depth.  A depth
// of 0 means the default of 1.  The destination must not already exist as a
// non-empty directory.
func ShallowClone(ctx context.Context, repo, dir string, depth int) error {
	if depth == 0 {
		depth = 1
	}
	if depth < 0 {
		return fmt.Errorf("clone %s: negative depth %d", repo, depth)
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return fmt.Errorf("clone %s: destination %q already exists and is not empty", repo, dir)
	}

	cmd := dexec.CommandContext(ctx, "git", "clone", "--depth", strconv.Itoa(depth), "--", repo, dir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clone %s: %w", repo, err)
	}
	return nil
}
