package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bundleforge/internal/testutil"
)

func TestMergeSlices(t *testing.T) {
	ctx, _ := testutil.Context(t)
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"a.armv7.o": "slice armv7\n",
		"a.arm64.o": "slice arm64\n",
	})
	inputs := []string{filepath.Join(dir, "a.armv7.o"), filepath.Join(dir, "a.arm64.o")}
	dest := filepath.Join(dir, "a.o")

	t.Run("complete", func(t *testing.T) {
		tc := &testutil.FakeToolchain{}
		require.NoError(t, MergeSlices(ctx, tc, inputs, dest))
		slices, err := tc.Slices(ctx, dest)
		require.NoError(t, err)
		assert.Equal(t, []string{"armv7", "arm64"}, slices)
		assert.NoFileExists(t, dest+".partial")
	})

	t.Run("incomplete keeps previous object", func(t *testing.T) {
		before, err := os.ReadFile(dest)
		require.NoError(t, err)

		tc := &testutil.FakeToolchain{DropSlices: true}
		err = MergeSlices(ctx, tc, inputs, dest)
		require.ErrorIs(t, err, ErrIncompleteObject)

		after, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}
