package toolchain

import "context"

// BitcodeRequest translates one source unit into architecture-tagged bitcode.
type BitcodeRequest struct {
	Source string
	Output string
	// Kernel is the runtime-kernel blob of the target architecture.
	Kernel string
	// Descriptors are foreign-interface descriptor files, one per framework
	// that has one.
	Descriptors []string
	// InitSymbol names the generated entry function of the unit.
	InitSymbol string
}

// LowerRequest lowers bitcode to assembly for one backend.
type LowerRequest struct {
	Input  string
	Output string
	March  string
}

// AssembleRequest compiles one architecture's assembly into an object.
type AssembleRequest struct {
	Input  string
	Output string
	Arch   string
}

// EntryRequest compiles the generated entry module for every architecture in
// a single invocation.
type EntryRequest struct {
	Source     string
	Output     string
	Archs      []string
	SDK        string
	MinVersion string
}

// LinkRequest links the bundle executable. Objects are linked in order.
type LinkRequest struct {
	Output     string
	Objects    []string
	Archs      []string
	SDK        string
	LibDirs    []string
	Libs       []string
	Frameworks []string
	// Stubs are precompiled framework stub objects appended after the
	// framework flags.
	Stubs []string
}

// SignRequest signs a bundle directory.
type SignRequest struct {
	Identity      string
	ResourceRules string
	Bundle        string
}

// Toolchain is one typed operation per external stage of the pipeline.
type Toolchain interface {
	EmitBitcode(ctx context.Context, req BitcodeRequest) error
	Lower(ctx context.Context, req LowerRequest) error
	Assemble(ctx context.Context, req AssembleRequest) error
	// Merge combines per-architecture objects into one universal object.
	Merge(ctx context.Context, output string, inputs []string) error
	// Slices lists the architectures contained in a universal object.
	Slices(ctx context.Context, path string) ([]string, error)
	// Symbols lists the defined, exported text symbols of an object without
	// the platform's leading underscore.
	Symbols(ctx context.Context, path string) ([]string, error)
	CompileEntry(ctx context.Context, req EntryRequest) error
	Link(ctx context.Context, req LinkRequest) error
	// ConvertPlist rewrites a property list in place using the binary encoding.
	ConvertPlist(ctx context.Context, path string) error
	Sign(ctx context.Context, req SignRequest) error
}
