package gitutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixci/matrixci/pkg/gitutil"
)

func TestShallowClone(t *testing.T) {
	t.Parallel()
	if _, err := dexec.LookPath("git"); err != nil {
		t.Skip("git not found")
	}
	ctx := dlog.NewTestContext(t, false)
	tmpdir := t.TempDir()

	origin := filepath.Join(tmpdir, "origin")
	require.NoError(t, os.MkdirAll(origin, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(origin, "data.txt"), []byte("fixture\n"), 0644))
	for _, args := range [][]string{
		{"git", "init", "-q"},
		{"git", "add", "data.txt"},
		{"git", "-c", "user.email=ci@localhost", "-c", "user.name=ci", "commit", "-q", "-m", "one"},
		{"git", "-c", "user.email=ci@localhost", "-c", "user.name=ci", "commit", "-q", "--allow-empty", "-m", "two"},
	} {
		cmd := dexec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Dir = origin
		require.NoError(t, cmd.Run())
	}

	dest := filepath.Join(tmpdir, "clone")
	require.NoError(t, gitutil.ShallowClone(ctx, "file://"+origin, dest, 1))
	_, err := os.Stat(filepath.Join(dest, "data.txt"))
	assert.NoError(t, err)

	// Depth 1 means exactly one commit of history.
	out, err := func() ([]byte, error) {
		cmd := dexec.CommandContext(ctx, "git", "rev-list", "--count", "HEAD")
		cmd.Dir = dest
		return cmd.Output()
	}()
	require.NoError(t, err)
	assert.Equal(t, "1", string(out[:1]))
}

func TestShallowCloneErrors(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	tmpdir := t.TempDir()

	err := gitutil.ShallowClone(ctx, "file:///nowhere", tmpdir, -2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative depth")

	dest := filepath.Join(tmpdir, "occupied")
	require.NoError(t, os.MkdirAll(dest, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "junk"), []byte("x"), 0644))
	err = gitutil.ShallowClone(ctx, "file:///nowhere", dest, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not empty")
}
