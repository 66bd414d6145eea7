package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/vk/bundleforge/internal/ctxlog"
	"github.com/vk/bundleforge/internal/fsutil"
	"github.com/vk/bundleforge/internal/toolchain"
)

// InitSymbolPrefix is reserved for generated unit entry functions.
const InitSymbolPrefix = "MREP_"

// CompiledUnit is the outcome of compiling one source unit.
type CompiledUnit struct {
	Source     string
	Object     string
	InitSymbol string
	// Cached is true when the existing object was reused.
	Cached bool
}

// NewInitSymbol allocates a fresh, globally unique init symbol.
func NewInitSymbol() string {
	return InitSymbolPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// unitCompiler compiles source units for one platform and architecture set.
type unitCompiler struct {
	tc          toolchain.Toolchain
	layout      layout
	archs       []Architecture
	descriptors []string
	fingerprint string
	cache       *Cache
}

// compile returns the universal object and init symbol of src, reusing the
// existing object when it is at least as new as the source.
func (u *unitCompiler) compile(ctx context.Context, src string) (CompiledUnit, error) {
	ctx = ctxlog.With(ctx, "unit", src)
	logger := ctxlog.FromContext(ctx)
	obj := u.layout.unitObject(src)

	fresh, err := isFresh(src, obj)
	if err != nil {
		return CompiledUnit{}, err
	}
	if fresh {
		if sym, ok := u.recoverInitSymbol(ctx, src, obj); ok {
			logger.Debug("Unit is up to date.", "init_symbol", sym)
			return CompiledUnit{Source: src, Object: obj, InitSymbol: sym, Cached: true}, nil
		}
		logger.Debug("Cached object has no usable init symbol, recompiling.")
	}

	sym := NewInitSymbol()
	logger.Info("🔨 Compiling unit", "init_symbol", sym, "archs", len(u.archs))
	if err := os.MkdirAll(filepath.Dir(obj), 0o755); err != nil {
		return CompiledUnit{}, fmt.Errorf("creating object directory: %w", err)
	}

	sliceObjs := make([]string, 0, len(u.archs))
	for _, arch := range u.archs {
		o, err := u.compileArch(ctx, src, sym, arch)
		if err != nil {
			return CompiledUnit{}, err
		}
		sliceObjs = append(sliceObjs, o)
	}

	if err := MergeSlices(ctx, u.tc, sliceObjs, obj); err != nil {
		return CompiledUnit{}, err
	}

	digest, err := fileDigest(obj)
	if err != nil {
		return CompiledUnit{}, fmt.Errorf("hashing %s: %w", obj, err)
	}
	u.cache.Store(src, CacheEntry{Object: obj, InitSymbol: sym, Fingerprint: u.fingerprint, Digest: digest})

	return CompiledUnit{Source: src, Object: obj, InitSymbol: sym}, nil
}

// compileArch runs translate, lower and assemble for one architecture and
// returns the per-architecture object.
func (u *unitCompiler) compileArch(ctx context.Context, src, sym string, arch Architecture) (string, error) {
	logger := ctxlog.FromContext(ctx).With("arch", arch.Name)
	bc := u.layout.intermediate(src, arch.Name, ".bc")
	asm := u.layout.intermediate(src, arch.Name, ".s")
	obj := u.layout.intermediate(src, arch.Name, ".o")

	logger.Debug("Emitting bitcode.", "output", bc)
	if err := u.tc.EmitBitcode(ctx, toolchain.BitcodeRequest{
		Source:      src,
		Output:      bc,
		Kernel:      arch.Kernel,
		Descriptors: u.descriptors,
		InitSymbol:  sym,
	}); err != nil {
		return "", fmt.Errorf("emitting bitcode for %s (%s): %w", src, arch.Name, err)
	}

	logger.Debug("Lowering bitcode.", "output", asm, "march", arch.March)
	if err := u.tc.Lower(ctx, toolchain.LowerRequest{Input: bc, Output: asm, March: arch.March}); err != nil {
		return "", fmt.Errorf("lowering %s (%s): %w", src, arch.Name, err)
	}

	logger.Debug("Assembling.", "output", obj)
	if err := u.tc.Assemble(ctx, toolchain.AssembleRequest{Input: asm, Output: obj, Arch: arch.Name}); err != nil {
		return "", fmt.Errorf("assembling %s (%s): %w", src, arch.Name, err)
	}
	return obj, nil
}

// recoverInitSymbol finds the init symbol of an up-to-date object. The
// manifest is authoritative when it has an entry for the unit; otherwise the
// object's symbol table is searched for the reserved prefix.
func (u *unitCompiler) recoverInitSymbol(ctx context.Context, src, obj string) (string, bool) {
	logger := ctxlog.FromContext(ctx)

	entry, known, valid := u.cache.Lookup(src, u.fingerprint)
	if known {
		if valid && entry.Object == obj {
			return entry.InitSymbol, true
		}
		logger.Debug("Build cache entry is stale.", "recorded_fingerprint", entry.Fingerprint)
		return "", false
	}

	syms, err := u.tc.Symbols(ctx, obj)
	if err != nil {
		logger.Debug("Could not list object symbols.", "error", err)
		return "", false
	}
	for _, s := range syms {
		if strings.HasPrefix(s, InitSymbolPrefix) {
			if digest, err := fileDigest(obj); err == nil {
				u.cache.Store(src, CacheEntry{Object: obj, InitSymbol: s, Fingerprint: u.fingerprint, Digest: digest})
			}
			return s, true
		}
	}
	return "", false
}

// isFresh reports whether obj exists and is not older than src.
func isFresh(src, obj string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("reading source unit: %w", err)
	}
	if !fsutil.Exists(obj) {
		return false, nil
	}
	objInfo, err := os.Stat(obj)
	if err != nil {
		return false, fmt.Errorf("reading cached object: %w", err)
	}
	return !objInfo.ModTime().Before(srcInfo.ModTime()), nil
}
