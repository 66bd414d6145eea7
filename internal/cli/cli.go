package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/vk/bundleforge/internal/app"
	"github.com/vk/bundleforge/internal/builder"
	"github.com/vk/bundleforge/internal/hcl"
	"github.com/vk/bundleforge/internal/toolchain"
)

// Flag defaults.
const (
	DefaultWorkers     = 4
	DefaultToolTimeout = 10 * time.Minute
)

// flags holds the values of the persistent flags.
type flags struct {
	configPath  string
	platform    string
	dataDir     string
	logFormat   string
	logLevel    string
	workers     int
	toolTimeout time.Duration
}

// Run parses args, executes the selected command and returns nil or an
// *ExitError. Options are passed through to the App.
func Run(ctx context.Context, args []string, outW io.Writer, opts ...app.Option) error {
	cmd := newRootCmd(outW, opts)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Anything cobra reports itself is a usage problem.
	return usageError(err)
}

func newRootCmd(outW io.Writer, opts []app.Option) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "bundleforge",
		Short: "Compile, link, bundle and sign mobile applications with an embedded runtime",
		Long: `bundleforge builds a native application bundle from source units and an
embedded scripting runtime, incrementally and for every architecture the
runtime ships a kernel for, and code-signs the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "app.hcl", "Path to the app.hcl file or a directory containing it.")
	pf.StringVarP(&f.platform, "platform", "p", "iphoneos", "Target platform. Options: 'iphoneos' or 'iphonesimulator'.")
	pf.StringVar(&f.dataDir, "data-dir", "", "Runtime data directory (overrides data_dir in the configuration).")
	pf.StringVar(&f.logFormat, "log-format", "json", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.IntVar(&f.workers, "workers", DefaultWorkers, "Number of source units compiled concurrently.")
	pf.DurationVar(&f.toolTimeout, "tool-timeout", DefaultToolTimeout, "Maximum duration of a single tool invocation. 0 is unlimited.")

	var sign bool
	build := &cobra.Command{
		Use:   "build",
		Short: "Compile every unit, link the executable and assemble the bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), outW, f, app.Steps{Build: true, Sign: sign}, opts)
		},
	}
	build.Flags().BoolVar(&sign, "sign", false, "Code-sign the bundle after a successful build.")

	codesign := &cobra.Command{
		Use:   "codesign",
		Short: "Code-sign a previously built bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), outW, f, app.Steps{Sign: true}, opts)
		},
	}

	root.AddCommand(build, codesign)
	return root
}

// validate normalises the flags into an app.Config.
func (f *flags) validate() (*app.Config, error) {
	logFormat := strings.ToLower(f.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}

	logLevel := strings.ToLower(f.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	return app.NewConfig(app.Config{
		ConfigPath:  f.configPath,
		Platform:    strings.ToLower(f.platform),
		DataDir:     f.dataDir,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		WorkerCount: f.workers,
		ToolTimeout: f.toolTimeout,
	})
}

func execute(ctx context.Context, outW io.Writer, f *flags, steps app.Steps, opts []app.Option) error {
	cfg, err := f.validate()
	if err != nil {
		return usageError(err)
	}

	a, err := app.NewApp(outW, cfg, hcl.NewLoader(), opts...)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: err.Error()}
	}

	res, err := a.Run(ctx, steps)
	if res != nil {
		printBuildSummary(outW, res)
	}
	if err != nil {
		// The tool's own diagnostics go out unchanged; main prints the message.
		var toolErr *toolchain.ToolError
		if errors.As(err, &toolErr) && len(toolErr.Output) > 0 {
			outW.Write(toolErr.Output)
			if !bytes.HasSuffix(toolErr.Output, []byte("\n")) {
				io.WriteString(outW, "\n")
			}
		}
		return &ExitError{Code: ExitFailure, Message: err.Error()}
	}
	if steps.Sign {
		fmt.Fprintln(outW, color.Success.Sprintf("✔ %s signed", a.Model().AppName()+".app"))
	}
	return nil
}

func printBuildSummary(w io.Writer, res *builder.Result) {
	archs := make([]string, len(res.Archs))
	for i, a := range res.Archs {
		archs[i] = a.Name
	}
	compiled := 0
	for _, u := range res.Units {
		if !u.Cached {
			compiled++
		}
	}
	fmt.Fprintln(w, color.Success.Sprintf("✔ built for %s (%d units, %d compiled)", strings.Join(archs, ", "), len(res.Units), compiled))
	fmt.Fprintln(w, color.Info.Sprintf("  %s", res.Bundle))
}
