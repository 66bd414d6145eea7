package builder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/bundleforge/internal/ctxlog"
	"github.com/vk/bundleforge/internal/fsutil"
	"github.com/vk/bundleforge/internal/toolchain"
)

// runtimeLibs are linked into every executable: the runtime's static archive
// and its object-model and text-encoding support libraries.
var runtimeLibs = []string{"macruby-static", "objc", "icucore"}

// linkRequest assembles the link invocation. The entry object comes first,
// then unit objects in configuration order. A framework stub object is only
// included when one ships for the platform.
func (b *Builder) linkRequest(entryObj, exe string, units []CompiledUnit, archs []Architecture) toolchain.LinkRequest {
	platformData := filepath.Join(b.dataDir, b.platform)

	objects := make([]string, 0, len(units)+1)
	objects = append(objects, entryObj)
	for _, u := range units {
		objects = append(objects, u.Object)
	}

	frameworks := b.cfg.Frameworks()
	var stubs []string
	for _, fw := range frameworks {
		stub := filepath.Join(platformData, fw+"_stubs.o")
		if fsutil.Exists(stub) {
			stubs = append(stubs, stub)
		}
	}

	return toolchain.LinkRequest{
		Output:     exe,
		Objects:    objects,
		Archs:      archNames(archs),
		SDK:        b.cfg.SDK(b.platform),
		LibDirs:    []string{platformData},
		Libs:       runtimeLibs,
		Frameworks: frameworks,
		Stubs:      stubs,
	}
}

func (b *Builder) link(ctx context.Context, req toolchain.LinkRequest) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("🔗 Linking executable", "output", req.Output, "objects", len(req.Objects), "frameworks", req.Frameworks)
	if err := b.tc.Link(ctx, req); err != nil {
		return fmt.Errorf("linking %s: %w", req.Output, err)
	}
	return nil
}
