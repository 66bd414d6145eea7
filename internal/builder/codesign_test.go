package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bundleforge/internal/config"
	"github.com/vk/bundleforge/internal/testutil"
	"github.com/vk/bundleforge/internal/toolchain"
	"howett.net/plist"
)

func TestResourceRules(t *testing.T) {
	data, err := ResourceRules()
	require.NoError(t, err)

	var doc map[string]map[string]any
	_, err = plist.Unmarshal(data, &doc)
	require.NoError(t, err)

	rules := doc["rules"]
	require.Len(t, rules, 3)
	assert.Equal(t, true, rules[".*"])
	assert.Equal(t, map[string]any{"omit": true, "weight": float64(10)}, rules["Info.plist"])
	assert.Equal(t, map[string]any{"omit": true, "weight": float64(100)}, rules["ResourceRules.plist"])
}

func TestCodesign_MissingBundle(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})

	err := f.builder(1).Codesign(f.ctx)

	require.ErrorIs(t, err, ErrMissingBundle)
	assert.Empty(t, f.tc.Calls(testutil.StageSign))
}

func TestCodesign_AfterBuild(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	profile := filepath.Join(f.root, "dev.mobileprovision")
	require.NoError(t, os.WriteFile(profile, []byte("profile-bytes"), 0o644))
	f.cfg.Codesign = &config.Codesign{Identity: "iPhone Developer: Jane", ProvisioningProfile: profile}

	res := f.build(t)
	require.NoError(t, f.builder(1).Codesign(f.ctx))

	embedded, err := os.ReadFile(filepath.Join(res.Bundle, "embedded.mobileprovision"))
	require.NoError(t, err)
	assert.Equal(t, "profile-bytes", string(embedded))
	assert.FileExists(t, filepath.Join(res.Bundle, "ResourceRules.plist"))

	signs := f.tc.Calls(testutil.StageSign)
	require.Len(t, signs, 1)
	assert.Equal(t, toolchain.SignRequest{
		Identity:      "iPhone Developer: Jane",
		ResourceRules: filepath.Join(res.Bundle, "ResourceRules.plist"),
		Bundle:        res.Bundle,
	}, signs[0].Request)
}

func TestCodesign_NoProfile(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	f.cfg.Codesign = &config.Codesign{Identity: "iPhone Developer"}
	res := f.build(t)

	err := f.builder(1).Codesign(f.ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "provisioning profile")
	assert.Empty(t, f.tc.Calls(testutil.StageSign))
	assert.NoFileExists(t, filepath.Join(res.Bundle, rulesPlistName))
	assert.NoFileExists(t, filepath.Join(res.Bundle, "embedded.mobileprovision"))
}

func TestCodesign_NoIdentity(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	profile := filepath.Join(f.root, "dev.mobileprovision")
	require.NoError(t, os.WriteFile(profile, []byte("profile"), 0o644))
	f.cfg.Codesign = &config.Codesign{ProvisioningProfile: profile}
	res := f.build(t)

	err := f.builder(1).Codesign(f.ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing identity")
	assert.Empty(t, f.tc.Calls(testutil.StageSign))
	assert.NoFileExists(t, filepath.Join(res.Bundle, rulesPlistName))
}

func TestCodesign_UnreadableProfileLeavesBundleUntouched(t *testing.T) {
	f := newFixture(t, []string{"a.rb"}, nil, testutil.DataDir{Archs: []string{"armv7"}})
	f.cfg.Codesign = &config.Codesign{
		Identity:            "iPhone Developer",
		ProvisioningProfile: filepath.Join(f.root, "missing.mobileprovision"),
	}
	res := f.build(t)

	err := f.builder(1).Codesign(f.ctx)

	require.Error(t, err)
	assert.Empty(t, f.tc.Calls(testutil.StageSign))
	assert.NoFileExists(t, filepath.Join(res.Bundle, rulesPlistName))
}
