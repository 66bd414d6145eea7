package testutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/vk/bundleforge/internal/toolchain"
	"howett.net/plist"
)

// Stage names recorded by FakeToolchain.
const (
	StageBitcode  = "bitcode"
	StageLower    = "lower"
	StageAssemble = "assemble"
	StageMerge    = "merge"
	StageSlices   = "slices"
	StageSymbols  = "symbols"
	StageEntry    = "entry"
	StageLink     = "link"
	StagePlist    = "plist"
	StageSign     = "sign"
)

// Call is one recorded toolchain invocation.
type Call struct {
	Stage string
	// Target is the primary output (or input, for query stages) path.
	Target  string
	Request any
}

// FakeToolchain implements toolchain.Toolchain without external programs.
// Artifacts are small text files that carry enough information for the
// query stages: slices are "slice <arch>" lines and init symbols are
// "symbol <name>" lines.
type FakeToolchain struct {
	mu    sync.Mutex
	calls []Call

	// FailFunc, when set, may return an error for any stage and target.
	FailFunc func(stage, target string) error
	// DropSlices makes Merge lose the last input, producing an incomplete
	// universal object.
	DropSlices bool
}

var _ toolchain.Toolchain = (*FakeToolchain)(nil)

// ToolFailure builds the error a real tool exit would produce.
func ToolFailure(tool string, code int, output string) error {
	return &toolchain.ToolError{Tool: tool, ExitCode: code, Output: []byte(output)}
}

// Calls returns the recorded calls, optionally filtered by stage.
func (f *FakeToolchain) Calls(stage string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if stage == "" || c.Stage == stage {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets all recorded calls.
func (f *FakeToolchain) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *FakeToolchain) record(stage, target string, req any) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Stage: stage, Target: target, Request: req})
	fail := f.FailFunc
	f.mu.Unlock()
	if fail != nil {
		return fail(stage, target)
	}
	return nil
}

func (f *FakeToolchain) EmitBitcode(ctx context.Context, req toolchain.BitcodeRequest) error {
	if err := f.record(StageBitcode, req.Output, req); err != nil {
		return err
	}
	content := fmt.Sprintf("bitcode %s kernel=%s descriptors=%d\nsymbol %s\n",
		req.Source, req.Kernel, len(req.Descriptors), req.InitSymbol)
	return os.WriteFile(req.Output, []byte(content), 0o644)
}

func (f *FakeToolchain) Lower(ctx context.Context, req toolchain.LowerRequest) error {
	if err := f.record(StageLower, req.Output, req); err != nil {
		return err
	}
	return transform(req.Input, req.Output, "asm march="+req.March+"\n")
}

func (f *FakeToolchain) Assemble(ctx context.Context, req toolchain.AssembleRequest) error {
	if err := f.record(StageAssemble, req.Output, req); err != nil {
		return err
	}
	return transform(req.Input, req.Output, "slice "+req.Arch+"\n")
}

func (f *FakeToolchain) Merge(ctx context.Context, output string, inputs []string) error {
	if err := f.record(StageMerge, output, append([]string(nil), inputs...)); err != nil {
		return err
	}
	if f.DropSlices && len(inputs) > 0 {
		inputs = inputs[:len(inputs)-1]
	}
	var buf bytes.Buffer
	buf.WriteString("fat\n")
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return os.WriteFile(output, buf.Bytes(), 0o644)
}

func (f *FakeToolchain) Slices(ctx context.Context, path string) ([]string, error) {
	if err := f.record(StageSlices, path, nil); err != nil {
		return nil, err
	}
	return scanPrefixed(path, "slice ", false)
}

func (f *FakeToolchain) Symbols(ctx context.Context, path string) ([]string, error) {
	if err := f.record(StageSymbols, path, nil); err != nil {
		return nil, err
	}
	return scanPrefixed(path, "symbol ", true)
}

func (f *FakeToolchain) CompileEntry(ctx context.Context, req toolchain.EntryRequest) error {
	if err := f.record(StageEntry, req.Output, req); err != nil {
		return err
	}
	return transform(req.Source, req.Output, "entry "+strings.Join(req.Archs, ",")+"\n")
}

func (f *FakeToolchain) Link(ctx context.Context, req toolchain.LinkRequest) error {
	if err := f.record(StageLink, req.Output, req); err != nil {
		return err
	}
	content := "executable\n" + strings.Join(req.Objects, "\n") + "\n"
	return os.WriteFile(req.Output, []byte(content), 0o755)
}

// ConvertPlist re-encodes the file with the binary property-list format, as
// the real converter does.
func (f *FakeToolchain) ConvertPlist(ctx context.Context, path string) error {
	if err := f.record(StagePlist, path, nil); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var v any
	if _, err := plist.Unmarshal(data, &v); err != nil {
		return ToolFailure("plutil", 1, path+": "+err.Error())
	}
	out, err := plist.Marshal(v, plist.BinaryFormat)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func (f *FakeToolchain) Sign(ctx context.Context, req toolchain.SignRequest) error {
	return f.record(StageSign, req.Bundle, req)
}

// transform writes header followed by the input's content to output.
func transform(input, output, header string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, append([]byte(header), data...), 0o644)
}

func scanPrefixed(path, prefix string, unique bool) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ToolFailure("fake", 1, err.Error())
	}
	var out []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		v := strings.TrimPrefix(line, prefix)
		if unique && seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}
