package hcl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/vk/bundleforge/internal/config"
	"github.com/vk/bundleforge/internal/ctxlog"
)

// translateApp converts the decoded app block into the agnostic model.
// Relative paths are resolved against baseDir, the declaring file's
// directory.
func (l *Loader) translateApp(ctx context.Context, a *appBlock, baseDir string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx).With("app", a.Name)
	logger.Debug("Translating HCL app block to internal config model.")

	if a.Name == "" {
		return nil, errors.New("app name must not be empty")
	}
	if len(a.Files) == 0 {
		return nil, errors.New("at least one source file is required")
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	files := make([]string, len(a.Files))
	seen := make(map[string]string, len(a.Files))
	for i, f := range a.Files {
		files[i] = resolve(f)
		key := filepath.Clean(files[i])
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("source file %q is listed more than once (as %q and %q)", key, prev, f)
		}
		seen[key] = f
	}

	buildDir := a.BuildDir
	if buildDir == "" {
		buildDir = DefaultBuildDir
	}

	if a.Toolchain == nil || a.Toolchain.SDKVersion == "" {
		return nil, errors.New("a toolchain block with sdk_version is required")
	}
	tc := &config.Toolchain{PlatformsDir: DefaultPlatformsDir, SDKVersion: a.Toolchain.SDKVersion}
	if a.Toolchain.PlatformsDir != "" {
		tc.PlatformsDir = a.Toolchain.PlatformsDir
	}

	var cs *config.Codesign
	if a.Codesign != nil {
		cs = &config.Codesign{
			Identity:            a.Codesign.Identity,
			ProvisioningProfile: resolve(a.Codesign.ProvisioningProfile),
		}
	}

	extra, err := infoPlistValues(ctx, a.InfoPlist)
	if err != nil {
		return nil, fmt.Errorf("info_plist: %w", err)
	}
	info, err := renderInfoPlist(a, extra)
	if err != nil {
		return nil, err
	}

	return &config.Model{
		Name:             a.Name,
		BuildRoot:        resolve(buildDir),
		DataDir:          resolve(a.DataDir),
		SourceFiles:      files,
		FrameworkNames:   a.Frameworks,
		Delegate:         a.Delegate,
		DeploymentTarget: a.DeploymentTarget,
		Toolchain:        tc,
		Codesign:         cs,
		InfoPlist:        info,
		PkgInfo:          []byte(packageInfo(a)),
	}, nil
}

// typeCodes returns the four-character package type and creator codes.
func typeCodes(a *appBlock) (string, string) {
	typ, sig := a.PackageType, a.Signature
	if typ == "" {
		typ = DefaultPackageType
	}
	if sig == "" {
		sig = DefaultSignature
	}
	return typ, sig
}

// packageInfo is the package type code followed by the creator code.
func packageInfo(a *appBlock) string {
	typ, sig := typeCodes(a)
	return typ + sig
}
