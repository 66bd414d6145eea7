package builder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/bundleforge/internal/fsutil"
)

const (
	kernelPrefix = "kernel-"
	kernelSuffix = ".bc"
)

// Architecture is a target instruction set discovered from the data
// directory.
type Architecture struct {
	Name string
	// Kernel is the runtime-kernel blob compiled for this architecture.
	Kernel string
	// March is the code generator's backend name.
	March string
}

// DiscoverArchitectures scans <dataDir>/<platform> for kernel-<arch>.bc blobs
// and returns one Architecture per blob in discovery order.
func DiscoverArchitectures(dataDir, platform string) ([]Architecture, error) {
	dir := filepath.Join(dataDir, platform)
	files, err := fsutil.FindFilesByExtension(dir, kernelSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for kernels: %w", dir, err)
	}

	var archs []Architecture
	for _, f := range files {
		base := filepath.Base(f)
		if !strings.HasPrefix(base, kernelPrefix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(base, kernelPrefix), kernelSuffix)
		if name == "" {
			continue
		}
		archs = append(archs, Architecture{Name: name, Kernel: f, March: backendName(name)})
	}

	if len(archs) == 0 {
		return nil, fmt.Errorf("%w: no %s*%s in %s", ErrNoArchitectures, kernelPrefix, kernelSuffix, dir)
	}
	return archs, nil
}

// backendName maps an architecture to the code generator's -march value.
func backendName(arch string) string {
	switch {
	case arch == "i386":
		return "x86"
	case arch == "x86_64":
		return "x86-64"
	case arch == "arm64":
		return "aarch64"
	case strings.HasPrefix(arch, "arm"):
		return "arm"
	default:
		return arch
	}
}

func archNames(archs []Architecture) []string {
	names := make([]string, len(archs))
	for i, a := range archs {
		names[i] = a.Name
	}
	return names
}
