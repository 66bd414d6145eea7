package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bundleforge/internal/config"
	"github.com/vk/bundleforge/internal/testutil"
	"github.com/vk/bundleforge/internal/toolchain"
	"howett.net/plist"
)

const testInfoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0"><dict><key>CFBundleName</key><string>Demo</string></dict></plist>
`

type fixture struct {
	ctx      context.Context
	root     string
	data     string
	platform string
	cfg      *config.Model
	tc       *testutil.FakeToolchain
}

// newFixture creates a project in a temporary working directory with the
// given source units. Sources are referenced by relative path.
func newFixture(t *testing.T, files []string, frameworks []string, d testutil.DataDir) *fixture {
	t.Helper()
	ctx, _ := testutil.Context(t)

	root := t.TempDir()
	t.Chdir(root)
	srcs := make(map[string]string, len(files))
	for _, f := range files {
		srcs[f] = "puts '" + f + "'\n"
	}
	testutil.WriteFiles(t, root, srcs)

	if d.Platform == "" {
		d.Platform = "iphoneos"
	}
	data := testutil.MakeDataDir(t, d)

	cfg := &config.Model{
		Name:           "Demo",
		BuildRoot:      filepath.Join(root, "build"),
		DataDir:        data,
		SourceFiles:    files,
		FrameworkNames: frameworks,
		Toolchain:      &config.Toolchain{PlatformsDir: "/Developer/Platforms", SDKVersion: "4.3"},
		InfoPlist:      []byte(testInfoPlist),
		PkgInfo:        []byte("APPL????"),
	}
	return &fixture{ctx: ctx, root: root, data: data, platform: d.Platform, cfg: cfg, tc: &testutil.FakeToolchain{}}
}

func (f *fixture) builder(workers int) *Builder {
	return New(f.cfg, f.tc, Options{Platform: f.platform, DataDir: f.data, Workers: workers})
}

func (f *fixture) build(t *testing.T) *Result {
	t.Helper()
	res, err := f.builder(2).Build(f.ctx)
	require.NoError(t, err)
	return res
}

func initSymbols(units []CompiledUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.InitSymbol
	}
	return out
}

func TestBuild_EndToEnd(t *testing.T) {
	f := newFixture(t, []string{"a.rb", "b.rb"}, []string{"UIKit"}, testutil.DataDir{
		Archs:       []string{"armv7", "arm64"},
		Stubs:       []string{"UIKit"},
		Descriptors: []string{"UIKit"},
	})

	res := f.build(t)

	assert.Equal(t, []string{"arm64", "armv7"}, archNames(res.Archs))
	require.Len(t, res.Units, 2)
	for i, src := range []string{"a.rb", "b.rb"} {
		u := res.Units[i]
		assert.Equal(t, src, u.Source)
		assert.False(t, u.Cached)
		assert.True(t, strings.HasPrefix(u.InitSymbol, InitSymbolPrefix), u.InitSymbol)

		slices, err := f.tc.Slices(f.ctx, u.Object)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"armv7", "arm64"}, slices)
	}
	assert.NotEqual(t, res.Units[0].InitSymbol, res.Units[1].InitSymbol)

	// Translate, lower and assemble run once per unit and architecture.
	assert.Len(t, f.tc.Calls(testutil.StageBitcode), 4)
	assert.Len(t, f.tc.Calls(testutil.StageLower), 4)
	assert.Len(t, f.tc.Calls(testutil.StageAssemble), 4)
	for _, c := range f.tc.Calls(testutil.StageBitcode) {
		req := c.Request.(toolchain.BitcodeRequest)
		assert.Equal(t, []string{filepath.Join(f.data, "BridgeSupport", "UIKit.bridgesupport")}, req.Descriptors)
	}

	entry, err := os.ReadFile(filepath.Join(f.cfg.BuildRoot, "iphoneos", "objs", "main", "main.mm"))
	require.NoError(t, err)
	a := strings.Index(string(entry), res.Units[0].InitSymbol+"(self, 0);")
	b := strings.Index(string(entry), res.Units[1].InitSymbol+"(self, 0);")
	require.True(t, a > 0 && b > 0)
	assert.Less(t, a, b, "init functions must run in configuration order")
	assert.True(t, res.EntryRebuilt)

	links := f.tc.Calls(testutil.StageLink)
	require.Len(t, links, 1)
	req := links[0].Request.(toolchain.LinkRequest)
	assert.Equal(t, []string{res.EntryObject, res.Units[0].Object, res.Units[1].Object}, req.Objects)
	assert.Equal(t, []string{"UIKit"}, req.Frameworks)
	assert.Equal(t, []string{filepath.Join(f.data, "iphoneos", "UIKit_stubs.o")}, req.Stubs)
	assert.Equal(t, runtimeLibs, req.Libs)
	assert.Equal(t, "/Developer/Platforms/iPhoneOS.platform/Developer/SDKs/iPhoneOS4.3.sdk", req.SDK)

	assert.Equal(t, filepath.Join(f.cfg.BuildRoot, "iphoneos", "Demo.app"), res.Bundle)
	assert.FileExists(t, res.Executable)
	info, err := os.ReadFile(filepath.Join(res.Bundle, "Info.plist"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(info), "bplist00"), "Info.plist must be binary")
	var decoded map[string]any
	_, err = plist.Unmarshal(info, &decoded)
	require.NoError(t, err)
	assert.Equal(t, []any{"iPhoneOS"}, decoded["CFBundleSupportedPlatforms"])
	assert.Equal(t, "Demo", decoded["CFBundleName"])
	pkg, err := os.ReadFile(filepath.Join(res.Bundle, "PkgInfo"))
	require.NoError(t, err)
	assert.Equal(t, "APPL????", string(pkg))
}

func TestBuild_Idempotent(t *testing.T) {
	f := newFixture(t, []string{"a.rb", "b.rb"}, []string{"UIKit"}, testutil.DataDir{Archs: []string{"armv7", "arm64"}})

	first := f.build(t)
	objA, err := os.ReadFile(first.Units[0].Object)
	require.NoError(t, err)
	f.tc.Reset()

	second := f.build(t)

	assert.Empty(t, f.tc.Calls(testutil.StageBitcode), "no unit should be recompiled")
	assert.Empty(t, f.tc.Calls(testutil.StageEntry), "entry module should not be recompiled")
	assert.Empty(t, f.tc.Calls(testutil.StageSymbols), "manifest should answer without listing symbols")
	assert.False(t, second.EntryRebuilt)
	assert.Equal(t, initSymbols(first.Units), initSymbols(second.Units))
	for _, u := range second.Units {
		assert.True(t, u.Cached)
	}
	again, err := os.ReadFile(second.Units[0].Object)
	require.NoError(t, err)
	assert.Equal(t, objA, again)
}

func TestBuild_TouchedSourceIsRecompiled(t *testing.T) {
	f := newFixture(t, []string{"a.rb", "b.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	first := f.build(t)
	f.tc.Reset()

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes("b.rb", future, future))

	second := f.build(t)

	bitcode := f.tc.Calls(testutil.StageBitcode)
	require.Len(t, bitcode, 1)
	assert.Equal(t, "b.rb", bitcode[0].Request.(toolchain.BitcodeRequest).Source)
	assert.Equal(t, first.Units[0].InitSymbol, second.Units[0].InitSymbol)
	assert.NotEqual(t, first.Units[1].InitSymbol, second.Units[1].InitSymbol)
	assert.True(t, second.EntryRebuilt, "a new init symbol changes the entry module")
}

func TestBuild_MissingManifestFallsBackToSymbols(t *testing.T) {
	f := newFixture(t, []string{"a.rb", "b.rb"}, nil, testutil.DataDir{Archs: []string{"armv7", "arm64"}})
	first := f.build(t)
	f.tc.Reset()

	manifest := filepath.Join(f.cfg.BuildRoot, "iphoneos", "objs", ".unitcache.json")
	require.FileExists(t, manifest)
	require.NoError(t, os.Remove(manifest))

	second := f.build(t)

	assert.Empty(t, f.tc.Calls(testutil.StageBitcode))
	assert.Len(t, f.tc.Calls(testutil.StageSymbols), 2)
	assert.Equal(t, initSymbols(first.Units), initSymbols(second.Units))
	assert.FileExists(t, manifest, "recovered symbols are recorded again")
}

func TestBuild_ObjectWithoutInitSymbolIsRecompiled(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	first := f.build(t)
	f.tc.Reset()

	objs := filepath.Join(f.cfg.BuildRoot, "iphoneos", "objs")
	require.NoError(t, os.Remove(filepath.Join(objs, ".unitcache.json")))
	require.NoError(t, os.WriteFile(first.Units[0].Object, []byte("fat\nslice armv7\n"), 0o644))

	second := f.build(t)

	assert.Len(t, f.tc.Calls(testutil.StageBitcode), 1)
	assert.False(t, second.Units[0].Cached)
	assert.NotEqual(t, first.Units[0].InitSymbol, second.Units[0].InitSymbol)
}

func TestBuild_ModifiedObjectIsRecompiled(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	first := f.build(t)
	f.tc.Reset()

	tampered := "fat\nslice armv7\nsymbol " + InitSymbolPrefix + "OTHER\n"
	require.NoError(t, os.WriteFile(first.Units[0].Object, []byte(tampered), 0o644))

	second := f.build(t)

	assert.Len(t, f.tc.Calls(testutil.StageBitcode), 1, "digest mismatch must invalidate the entry")
	assert.NotEqual(t, InitSymbolPrefix+"OTHER", second.Units[0].InitSymbol)
}

func TestBuild_NewArchitectureInvalidatesCache(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	f.build(t)
	f.tc.Reset()

	testutil.WriteFiles(t, f.data, map[string]string{"iphoneos/kernel-arm64.bc": "kernel arm64"})

	res := f.build(t)

	assert.Len(t, f.tc.Calls(testutil.StageBitcode), 2)
	slices, err := f.tc.Slices(f.ctx, res.Units[0].Object)
	require.NoError(t, err)
	assert.Len(t, slices, 2)
}

func TestBuild_ReorderedFilesRebuildEntryOnly(t *testing.T) {
	f := newFixture(t, []string{"a.rb", "b.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	first := f.build(t)
	f.tc.Reset()

	f.cfg.SourceFiles = []string{"b.rb", "a.rb"}
	second := f.build(t)

	assert.Empty(t, f.tc.Calls(testutil.StageBitcode))
	assert.True(t, second.EntryRebuilt)
	assert.Equal(t, []string{first.Units[1].InitSymbol, first.Units[0].InitSymbol}, initSymbols(second.Units))
}

func TestBuild_IncompleteMergeLeavesNoObject(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7", "arm64"}})
	f.tc.DropSlices = true

	_, err := f.builder(1).Build(f.ctx)

	require.ErrorIs(t, err, ErrIncompleteObject)
	assert.NoFileExists(t, filepath.Join(f.cfg.BuildRoot, "iphoneos", "objs", "a.rb.o"))
	assert.Empty(t, f.tc.Calls(testutil.StageLink))
}

func TestBuild_ToolFailureAbortsBuild(t *testing.T) {
	f := newFixture(t, []string{"a.rb", "b.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	f.tc.FailFunc = func(stage, target string) error {
		if stage == testutil.StageLower && strings.Contains(target, "b.rb") {
			return testutil.ToolFailure("llc", 1, "error: invalid bitcode")
		}
		return nil
	}

	_, err := f.builder(1).Build(f.ctx)

	require.Error(t, err)
	var toolErr *toolchain.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 1, toolErr.ExitCode)
	assert.Equal(t, "error: invalid bitcode", string(toolErr.Output))
	assert.Contains(t, err.Error(), "llc exited with status 1")
	assert.Empty(t, f.tc.Calls(testutil.StageEntry))
	assert.Empty(t, f.tc.Calls(testutil.StageLink))
}

func TestBuild_NoArchitectures(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{})

	_, err := f.builder(1).Build(f.ctx)

	require.ErrorIs(t, err, ErrNoArchitectures)
	assert.Empty(t, f.tc.Calls(""))
}

func TestBuild_MissingSourceFails(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	f.cfg.SourceFiles = append(f.cfg.SourceFiles, "missing.rb")

	_, err := f.builder(1).Build(f.ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.rb")
}

func TestBuild_DuplicateUnit(t *testing.T) {
	tests := map[string]func(root string) []string{
		"same spelling":     func(string) []string { return []string{"a.rb", "b.rb", "a.rb"} },
		"cleaned spelling":  func(string) []string { return []string{"a.rb", "./a.rb"} },
		"absolute spelling": func(root string) []string { return []string{"a.rb", filepath.Join(root, "a.rb")} },
		"climbing spelling": func(root string) []string { return []string{"a.rb", filepath.Join("..", filepath.Base(root), "a.rb")} },
	}
	for name, files := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, []string{"a.rb", "b.rb"}, nil, testutil.DataDir{Archs: []string{"armv7", "arm64"}})
			f.cfg.SourceFiles = files(f.root)

			_, err := f.builder(4).Build(f.ctx)

			require.ErrorIs(t, err, ErrDuplicateUnit)
			assert.Empty(t, f.tc.Calls(""), "no task may start")
		})
	}
}

func TestBuild_ClimbingUnitPathStaysInObjs(t *testing.T) {
	f := newFixture(t, []string{"src/a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	t.Chdir(filepath.Join(f.root, "src"))
	f.cfg.SourceFiles = []string{"../src/a.rb"}

	res := f.build(t)

	objs := filepath.Join(f.cfg.BuildRoot, "iphoneos", "objs") + string(filepath.Separator)
	assert.True(t, strings.HasPrefix(res.Units[0].Object, objs), res.Units[0].Object)
	for _, stage := range []string{testutil.StageBitcode, testutil.StageLower, testutil.StageAssemble} {
		for _, c := range f.tc.Calls(stage) {
			assert.True(t, strings.HasPrefix(c.Target, objs), "%s wrote %s", stage, c.Target)
		}
	}
	assert.NoFileExists(t, filepath.Join(f.root, "src", "a.rb.o"))
}

func TestBuild_SimulatorInfoPlist(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Platform: "iphonesimulator", Archs: []string{"i386"}})

	res := f.build(t)

	assert.Equal(t, "x86", res.Archs[0].March)
	info, err := os.ReadFile(filepath.Join(res.Bundle, "Info.plist"))
	require.NoError(t, err)
	var decoded map[string]any
	_, err = plist.Unmarshal(info, &decoded)
	require.NoError(t, err)
	assert.Equal(t, []any{"iPhoneSimulator"}, decoded["CFBundleSupportedPlatforms"])
}

func TestPlatformInfo_KeepsConfiguredPlatforms(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict><key>CFBundleSupportedPlatforms</key><array><string>Custom</string></array></dict></plist>
`)

	got, err := platformInfo(raw, "iphoneos")

	require.NoError(t, err)
	assert.Equal(t, raw, got)
}
