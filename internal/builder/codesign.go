package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vk/bundleforge/internal/ctxlog"
	"github.com/vk/bundleforge/internal/toolchain"
	"howett.net/plist"
)

// resourceRule excludes a path from resource signing. Higher weights win.
type resourceRule struct {
	Omit   bool    `plist:"omit"`
	Weight float64 `plist:"weight"`
}

// ResourceRules renders the resource-signing rules document: every path is
// signed except Info.plist and the rules document itself.
func ResourceRules() ([]byte, error) {
	doc := map[string]any{
		"rules": map[string]any{
			".*":           true,
			infoPlistName:  resourceRule{Omit: true, Weight: 10},
			rulesPlistName: resourceRule{Omit: true, Weight: 100},
		},
	}
	data, err := plist.MarshalIndent(doc, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("encoding resource rules: %w", err)
	}
	return data, nil
}

// Codesign signs the bundle produced by Build. It fails with ErrMissingBundle
// before touching any tool when the bundle has not been built.
func (b *Builder) Codesign(ctx context.Context) error {
	ctx = ctxlog.With(ctx, "platform", b.platform)
	logger := ctxlog.FromContext(ctx)
	bundle := b.layout().bundle()

	info, err := os.Stat(bundle)
	if err != nil || !info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking bundle: %w", err)
		}
		return fmt.Errorf("%w: %s", ErrMissingBundle, bundle)
	}

	identity := b.cfg.CodesignIdentity()
	if identity == "" {
		return errors.New("no signing identity configured")
	}
	profile := b.cfg.ProvisioningProfile()
	if profile == "" {
		return errors.New("no provisioning profile configured")
	}
	data, err := os.ReadFile(profile)
	if err != nil {
		return fmt.Errorf("reading provisioning profile: %w", err)
	}
	rules, err := ResourceRules()
	if err != nil {
		return err
	}

	// Nothing above touches the bundle.
	rulesPath := filepath.Join(bundle, rulesPlistName)
	if err := os.WriteFile(rulesPath, rules, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rulesPlistName, err)
	}
	if err := os.WriteFile(filepath.Join(bundle, profileFileName), data, 0o644); err != nil {
		return fmt.Errorf("embedding provisioning profile: %w", err)
	}

	logger.Info("🔏 Signing bundle", "bundle", bundle, "identity", identity)
	if err := b.tc.Sign(ctx, toolchain.SignRequest{
		Identity:      identity,
		ResourceRules: rulesPath,
		Bundle:        bundle,
	}); err != nil {
		return fmt.Errorf("signing %s: %w", bundle, err)
	}
	logger.Info("✅ Bundle signed.")
	return nil
}
