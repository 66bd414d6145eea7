package hcl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/bundleforge/internal/config"
	"github.com/vk/bundleforge/internal/ctxlog"
)

// Defaults applied when the configuration omits a value.
const (
	DefaultBuildDir     = "build"
	DefaultPlatformsDir = "/Developer/Platforms"
	DefaultVersion      = "1.0"
	DefaultPackageType  = "APPL"
	DefaultSignature    = "????"
)

// ErrNoApp is returned when none of the loaded files declares an app block.
var ErrNoApp = errors.New("no app block found")

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load parses every given .hcl file, or every .hcl file directly inside a
// given directory, and translates the single app block into the model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	var (
		found   *appBlock
		foundIn string
	)
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		for _, app := range root.Apps {
			if found != nil {
				return nil, fmt.Errorf("app %q in %s: only one app may be declared (already found %q in %s)", app.Name, file, found.Name, foundIn)
			}
			found, foundIn = app, file
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w in %v", ErrNoApp, paths)
	}

	model, err := l.translateApp(ctx, found, filepath.Dir(foundIn))
	if err != nil {
		return nil, fmt.Errorf("app %q in %s: %w", found.Name, foundIn, err)
	}
	logger.Debug("HCL loading complete.", "app", model.Name, "files", len(model.SourceFiles), "frameworks", len(model.FrameworkNames))
	return model, nil
}

// findHCLFiles expands the given paths into a flat, de-duplicated list of
// .hcl files. Directories are not walked recursively.
func findHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			all = append(all, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".hcl" {
				add(filepath.Join(path, e.Name()))
			}
		}
	}
	return all, nil
}
