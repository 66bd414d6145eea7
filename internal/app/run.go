package app

import (
	"context"
	"errors"

	"github.com/vk/bundleforge/internal/builder"
	"github.com/vk/bundleforge/internal/ctxlog"
)

// Steps selects which stages Run performs.
type Steps struct {
	Build bool
	Sign  bool
}

// Run executes the requested stages. Signing alone requires a bundle from a
// previous build. The result is nil when no build was requested.
func (a *App) Run(ctx context.Context, steps Steps) (*builder.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "build", steps.Build, "sign", steps.Sign)

	if !steps.Build && !steps.Sign {
		return nil, errors.New("nothing to do: neither build nor sign requested")
	}

	b := builder.New(a.model, a.toolchain, builder.Options{
		Platform:         a.config.Platform,
		DataDir:          a.dataDir,
		Workers:          a.config.WorkerCount,
		Delegate:         a.model.Delegate,
		DeploymentTarget: a.model.DeploymentTarget,
	})

	var res *builder.Result
	if steps.Build {
		var err error
		if res, err = b.Build(ctx); err != nil {
			return nil, err
		}
	}
	if steps.Sign {
		if err := b.Codesign(ctx); err != nil {
			return res, err
		}
	}

	a.logger.Debug("App.Run method finished.")
	return res, nil
}
