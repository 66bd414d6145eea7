package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
)

// Paths locates every external binary used by Exec.
type Paths struct {
	Translator string
	Lowerer    string
	CC         string
	CXX        string
	Lipo       string
	NM         string
	Plutil     string
	Codesign   string
}

// DefaultPaths returns the standard layout: the runtime translator and the
// code generator ship in the data directory, the compilers come from the
// platform's developer tree and the rest from the host.
func DefaultPaths(dataDir, platformDir string) Paths {
	bin := filepath.Join(platformDir, "Developer", "usr", "bin")
	return Paths{
		Translator: filepath.Join(dataDir, "ruby"),
		Lowerer:    filepath.Join(dataDir, "llc"),
		CC:         filepath.Join(bin, "gcc"),
		CXX:        filepath.Join(bin, "g++"),
		Lipo:       "lipo",
		NM:         "nm",
		Plutil:     "/usr/bin/plutil",
		Codesign:   "/usr/bin/codesign",
	}
}

// Exec is the Toolchain backed by real executables.
type Exec struct {
	Paths  Paths
	Runner Runner
}

// NewExec creates an Exec toolchain.
func NewExec(paths Paths, runner Runner) *Exec {
	return &Exec{Paths: paths, Runner: runner}
}

func (e *Exec) run(ctx context.Context, path string, args ...string) ([]byte, error) {
	return e.Runner.Run(ctx, Command{Path: path, Args: args})
}

// EmitBitcode implements Toolchain.
func (e *Exec) EmitBitcode(ctx context.Context, req BitcodeRequest) error {
	var args []string
	for _, d := range req.Descriptors {
		args = append(args, "--uses-bs", d)
	}
	args = append(args, "--emit-llvm", req.Output, req.InitSymbol, req.Source)
	_, err := e.Runner.Run(ctx, Command{
		Path: e.Paths.Translator,
		Args: args,
		Env:  []string{"VM_KERNEL_PATH=" + req.Kernel},
	})
	return err
}

// Lower implements Toolchain.
func (e *Exec) Lower(ctx context.Context, req LowerRequest) error {
	_, err := e.run(ctx, e.Paths.Lowerer,
		req.Input,
		"-o="+req.Output,
		"-march="+req.March,
		"-relocation-model=pic",
		"-disable-fp-elim",
		"-jit-enable-eh",
	)
	return err
}

// Assemble implements Toolchain.
func (e *Exec) Assemble(ctx context.Context, req AssembleRequest) error {
	_, err := e.run(ctx, e.Paths.CC, "-fexceptions", "-c", "-arch", req.Arch, req.Input, "-o", req.Output)
	return err
}

// Merge implements Toolchain.
func (e *Exec) Merge(ctx context.Context, output string, inputs []string) error {
	args := append([]string{"-create"}, inputs...)
	args = append(args, "-output", output)
	_, err := e.run(ctx, e.Paths.Lipo, args...)
	return err
}

// Slices implements Toolchain.
func (e *Exec) Slices(ctx context.Context, path string) ([]string, error) {
	out, err := e.run(ctx, e.Paths.Lipo, "-archs", path)
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(out)), nil
}

// Symbols implements Toolchain.
func (e *Exec) Symbols(ctx context.Context, path string) ([]string, error) {
	out, err := e.run(ctx, e.Paths.NM, path)
	if err != nil {
		return nil, err
	}
	return parseSymbols(out), nil
}

// parseSymbols keeps the external text symbols ("T") of nm output. A
// universal object lists each slice separately, so names are de-duplicated.
func parseSymbols(out []byte) []string {
	var names []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 3 || fields[1] != "T" {
			continue
		}
		name := strings.TrimPrefix(fields[2], "_")
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// CompileEntry implements Toolchain.
func (e *Exec) CompileEntry(ctx context.Context, req EntryRequest) error {
	args := []string{req.Source}
	for _, a := range req.Archs {
		args = append(args, "-arch", a)
	}
	args = append(args,
		"-fexceptions", "-fblocks",
		"-isysroot", req.SDK,
		"-miphoneos-version-min="+req.MinVersion,
		"-fobjc-legacy-dispatch", "-fobjc-abi-version=2",
		"-c", "-o", req.Output,
	)
	_, err := e.run(ctx, e.Paths.CXX, args...)
	return err
}

// Link implements Toolchain.
func (e *Exec) Link(ctx context.Context, req LinkRequest) error {
	args := []string{"-o", req.Output}
	args = append(args, req.Objects...)
	for _, a := range req.Archs {
		args = append(args, "-arch", a)
	}
	args = append(args, "-isysroot", req.SDK)
	for _, d := range req.LibDirs {
		args = append(args, "-L"+d)
	}
	for _, l := range req.Libs {
		args = append(args, "-l"+l)
	}
	for _, f := range req.Frameworks {
		args = append(args, "-framework", f)
	}
	args = append(args, req.Stubs...)
	_, err := e.run(ctx, e.Paths.CXX, args...)
	return err
}

// ConvertPlist implements Toolchain.
func (e *Exec) ConvertPlist(ctx context.Context, path string) error {
	_, err := e.run(ctx, e.Paths.Plutil, "-convert", "binary1", path)
	return err
}

// Sign implements Toolchain.
func (e *Exec) Sign(ctx context.Context, req SignRequest) error {
	_, err := e.run(ctx, e.Paths.Codesign,
		"-f",
		"-s", req.Identity,
		"--resource-rules="+req.ResourceRules,
		req.Bundle,
	)
	return err
}
