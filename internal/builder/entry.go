package builder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/vk/bundleforge/internal/ctxlog"
	"github.com/vk/bundleforge/internal/fsutil"
	"github.com/vk/bundleforge/internal/toolchain"
)

// DefaultDelegate is the application delegate class used when none is
// configured.
const DefaultDelegate = "AppDelegate"

// EntryInput is everything the generated entry module depends on.
type EntryInput struct {
	AppName     string
	Delegate    string
	Archs       []string
	InitSymbols []string
}

var entryTemplate = template.Must(template.New("main.mm").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`// {{.AppName}} entry point for {{join .Archs ", "}}. Generated, do not edit.
#import <UIKit/UIKit.h>

extern "C" {
    void ruby_sysinit(int *, char ***);
    void ruby_init(void);
    void ruby_init_loadpath(void);
    void ruby_script(const char *);
    void ruby_set_argv(int, char **);
    void rb_vm_init_compiler(void);
    void rb_vm_init_jit(void);
    void rb_vm_aot_feature_provide(const char *, void *);
    void *rb_vm_top_self(void);
    void rb_vm_print_current_exception(void);
    void rb_exit(int);
{{- range .InitSymbols}}
    void {{.}}(void *, void *);
{{- end}}
}

int
main(int argc, char **argv)
{
    NSAutoreleasePool *pool = [[NSAutoreleasePool alloc] init];
    const char *progname = argv[0];
    ruby_init();
    ruby_init_loadpath();
    ruby_script(progname);
    try {
        void *self = rb_vm_top_self();
{{- range .InitSymbols}}
        {{.}}(self, 0);
{{- end}}
    }
    catch (...) {
        rb_vm_print_current_exception();
        rb_exit(1);
    }
    int retval = UIApplicationMain(argc, argv, nil, @"{{.Delegate}}");
    [pool release];
    rb_exit(retval);
}
`))

// GenerateEntry renders the entry module source. The output depends only on
// its input, so identical inputs always produce identical text.
func GenerateEntry(in EntryInput) (string, error) {
	if in.Delegate == "" {
		in.Delegate = DefaultDelegate
	}
	var buf bytes.Buffer
	if err := entryTemplate.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("rendering entry module: %w", err)
	}
	return buf.String(), nil
}

// buildEntry generates the entry module for units and compiles it for every
// architecture at once. Compilation is skipped when the object exists and the
// previously written source is identical. It reports whether it compiled.
func (b *Builder) buildEntry(ctx context.Context, l layout, units []CompiledUnit, archs []Architecture) (string, bool, error) {
	logger := ctxlog.FromContext(ctx)

	syms := make([]string, len(units))
	for i, u := range units {
		syms[i] = u.InitSymbol
	}
	text, err := GenerateEntry(EntryInput{
		AppName:     b.cfg.AppName(),
		Delegate:    b.delegate,
		Archs:       archNames(archs),
		InitSymbols: syms,
	})
	if err != nil {
		return "", false, err
	}

	src, obj := l.entrySource(), l.entryObject()
	if fsutil.Exists(obj) {
		if prev, err := os.ReadFile(src); err == nil && string(prev) == text {
			logger.Debug("Entry module unchanged, skipping compilation.")
			return obj, false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		return "", false, fmt.Errorf("creating entry directory: %w", err)
	}
	// A stale object must not survive a failed compile next to the new text.
	if err := os.Remove(obj); err != nil && fsutil.Exists(obj) {
		return "", false, fmt.Errorf("removing stale entry object: %w", err)
	}
	if err := os.WriteFile(src, []byte(text), 0o644); err != nil {
		return "", false, fmt.Errorf("writing entry module: %w", err)
	}

	logger.Info("🔨 Compiling entry module", "units", len(units))
	if err := b.tc.CompileEntry(ctx, toolchain.EntryRequest{
		Source:     src,
		Output:     obj,
		Archs:      archNames(archs),
		SDK:        b.cfg.SDK(b.platform),
		MinVersion: b.minVersion,
	}); err != nil {
		return "", false, fmt.Errorf("compiling entry module: %w", err)
	}
	return obj, true, nil
}
