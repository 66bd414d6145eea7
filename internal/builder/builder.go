package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/bundleforge/internal/config"
	"github.com/vk/bundleforge/internal/ctxlog"
	"github.com/vk/bundleforge/internal/executor"
	"github.com/vk/bundleforge/internal/fsutil"
	"github.com/vk/bundleforge/internal/toolchain"
)

// DefaultDeploymentTarget is the minimum OS version the entry module targets
// when none is configured.
const DefaultDeploymentTarget = "4.3"

// Options tune one Builder.
type Options struct {
	Platform string
	// DataDir holds the runtime: kernels, archives, stubs and descriptors.
	DataDir          string
	Workers          int
	Delegate         string
	DeploymentTarget string
}

// Builder runs the pipeline for one platform.
type Builder struct {
	cfg        config.Provider
	tc         toolchain.Toolchain
	platform   string
	dataDir    string
	workers    int
	delegate   string
	minVersion string
}

// New creates a Builder. The configuration and toolchain are not modified.
func New(cfg config.Provider, tc toolchain.Toolchain, opts Options) *Builder {
	if opts.Delegate == "" {
		opts.Delegate = DefaultDelegate
	}
	if opts.DeploymentTarget == "" {
		opts.DeploymentTarget = DefaultDeploymentTarget
	}
	return &Builder{
		cfg:        cfg,
		tc:         tc,
		platform:   opts.Platform,
		dataDir:    opts.DataDir,
		workers:    opts.Workers,
		delegate:   opts.Delegate,
		minVersion: opts.DeploymentTarget,
	}
}

// Result describes a finished build.
type Result struct {
	Archs        []Architecture
	Units        []CompiledUnit
	EntryObject  string
	EntryRebuilt bool
	Executable   string
	Bundle       string
}

func (b *Builder) layout() layout {
	return newLayout(b.cfg.BuildDir(), b.platform, b.cfg.AppName())
}

// descriptors returns the foreign-interface descriptor of every configured
// framework that ships one, in configuration order.
func (b *Builder) descriptors() []string {
	var out []string
	for _, fw := range b.cfg.Frameworks() {
		p := filepath.Join(b.dataDir, "BridgeSupport", fw+".bridgesupport")
		if fsutil.Exists(p) {
			out = append(out, p)
		}
	}
	return out
}

// checkUnits rejects unit lists whose tasks would share output paths: every
// unit must name a distinct source file and map to a distinct object inside
// objs/.
func checkUnits(l layout, files []string) error {
	sources := make(map[string]string, len(files))
	objects := make(map[string]string, len(files))
	for _, src := range files {
		abs, err := filepath.Abs(src)
		if err != nil {
			return fmt.Errorf("resolving unit %s: %w", src, err)
		}
		if prev, ok := sources[abs]; ok {
			return fmt.Errorf("%w: %s and %s are the same file", ErrDuplicateUnit, prev, src)
		}
		sources[abs] = src

		obj := l.unitObject(src)
		if !l.contains(obj) {
			return fmt.Errorf("%w: %s", ErrUnitOutsideBuild, src)
		}
		if prev, ok := objects[obj]; ok {
			return fmt.Errorf("%w: %s and %s both compile to %s", ErrDuplicateUnit, prev, src, obj)
		}
		objects[obj] = src
	}
	return nil
}

// Build compiles every unit, generates and compiles the entry module, links
// the executable and writes the bundle metadata. The first failure aborts
// the build.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	ctx = ctxlog.With(ctx, "platform", b.platform)
	logger := ctxlog.FromContext(ctx)
	l := b.layout()

	archs, err := DiscoverArchitectures(b.dataDir, b.platform)
	if err != nil {
		return nil, err
	}
	logger.Info("Architectures discovered.", "archs", archNames(archs))

	if err := os.MkdirAll(l.objsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating build directory: %w", err)
	}

	descriptors := b.descriptors()
	uc := &unitCompiler{
		tc:          b.tc,
		layout:      l,
		archs:       archs,
		descriptors: descriptors,
		fingerprint: Fingerprint(b.platform, archs, descriptors),
		cache:       LoadCache(ctx, l.cacheManifest()),
	}

	files := b.cfg.Files()
	if err := checkUnits(l, files); err != nil {
		return nil, err
	}
	units := make([]CompiledUnit, len(files))
	tasks := make([]executor.Task, len(files))
	for i, src := range files {
		tasks[i] = executor.Task{ID: src, Run: func(ctx context.Context) error {
			u, err := uc.compile(ctx, src)
			if err != nil {
				return err
			}
			units[i] = u
			return nil
		}}
	}

	logger.Info("🚀 Compiling units...", "units", len(files), "workers", b.workers)
	runErr := executor.New(b.workers).Run(ctx, tasks)
	// Units that did compile stay valid for the next run.
	saveErr := uc.cache.Save()
	if runErr != nil {
		if saveErr != nil {
			logger.Warn("Build cache not saved.", "error", saveErr)
		}
		return nil, fmt.Errorf("compiling units: %w", runErr)
	}
	if saveErr != nil {
		return nil, saveErr
	}

	entryObj, rebuilt, err := b.buildEntry(ctx, l, units, archs)
	if err != nil {
		return nil, err
	}

	bundle := l.bundle()
	if err := os.MkdirAll(bundle, 0o755); err != nil {
		return nil, fmt.Errorf("creating bundle: %w", err)
	}
	exe := l.executable()
	if err := b.link(ctx, b.linkRequest(entryObj, exe, units, archs)); err != nil {
		return nil, err
	}

	if err := b.assembleBundle(ctx, bundle); err != nil {
		return nil, err
	}

	logger.Info("🏁 Build finished.", "bundle", bundle)
	return &Result{
		Archs:        archs,
		Units:        units,
		EntryObject:  entryObj,
		EntryRebuilt: rebuilt,
		Executable:   exe,
		Bundle:       bundle,
	}, nil
}
