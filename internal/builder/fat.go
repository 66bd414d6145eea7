package builder

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/bundleforge/internal/ctxlog"
	"github.com/vk/bundleforge/internal/toolchain"
)

// MergeSlices assembles per-architecture objects into one universal object
// at dest. The merge writes to a temporary sibling which is renamed into
// place only after the slice count has been verified, so dest is never a
// partial object.
func MergeSlices(ctx context.Context, tc toolchain.Toolchain, inputs []string, dest string) error {
	logger := ctxlog.FromContext(ctx)
	tmp := dest + ".partial"

	if err := tc.Merge(ctx, tmp, inputs); err != nil {
		return fmt.Errorf("merging %d slices into %s: %w", len(inputs), dest, err)
	}

	slices, err := tc.Slices(ctx, tmp)
	if err != nil {
		return fmt.Errorf("listing slices of %s: %w", tmp, err)
	}
	if len(slices) != len(inputs) {
		return fmt.Errorf("%w: %s has %d slices, want %d", ErrIncompleteObject, dest, len(slices), len(inputs))
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("moving universal object into place: %w", err)
	}
	logger.Debug("Universal object assembled.", "object", dest, "slices", slices)
	return nil
}
