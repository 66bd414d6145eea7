package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/bundleforge/internal/config"
	"github.com/vk/bundleforge/internal/ctxlog"
	"howett.net/plist"
)

const (
	infoPlistName   = "Info.plist"
	pkgInfoName     = "PkgInfo"
	rulesPlistName  = "ResourceRules.plist"
	profileFileName = "embedded.mobileprovision"

	supportedPlatformsKey = "CFBundleSupportedPlatforms"
)

// platformInfo adds the target platform to the supported-platforms key unless
// the configuration already sets it.
func platformInfo(raw []byte, platform string) ([]byte, error) {
	var info map[string]any
	if _, err := plist.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", infoPlistName, err)
	}
	if _, ok := info[supportedPlatformsKey]; ok {
		return raw, nil
	}
	if info == nil {
		info = make(map[string]any)
	}
	info[supportedPlatformsKey] = []string{config.PlatformName(platform)}

	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", infoPlistName, err)
	}
	return data, nil
}

// assembleBundle writes the bundle metadata. Info.plist is converted in place
// to the binary encoding; PkgInfo is written verbatim.
func (b *Builder) assembleBundle(ctx context.Context, bundle string) error {
	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(bundle, 0o755); err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}

	data, err := platformInfo(b.cfg.BundleInfo(), b.platform)
	if err != nil {
		return err
	}
	info := filepath.Join(bundle, infoPlistName)
	if err := os.WriteFile(info, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", infoPlistName, err)
	}
	if err := b.tc.ConvertPlist(ctx, info); err != nil {
		return fmt.Errorf("converting %s: %w", infoPlistName, err)
	}

	if err := os.WriteFile(filepath.Join(bundle, pkgInfoName), b.cfg.PackageInfo(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", pkgInfoName, err)
	}

	logger.Debug("Bundle metadata written.", "bundle", bundle)
	return nil
}
