package config

import (
	"path/filepath"
	"slices"
)

// Model is the unified, format-agnostic representation of one application's
// build configuration. It implements Provider.
type Model struct {
	Name             string
	BuildRoot        string
	DataDir          string
	SourceFiles      []string
	FrameworkNames   []string
	Delegate         string
	DeploymentTarget string
	Toolchain        *Toolchain
	Codesign         *Codesign

	// InfoPlist and PkgInfo are rendered by the loader; the builder writes
	// them verbatim.
	InfoPlist []byte
	PkgInfo   []byte
}

// Toolchain locates the platform SDKs on the host.
type Toolchain struct {
	PlatformsDir string
	SDKVersion   string
}

// Codesign holds the signing identity and provisioning profile.
type Codesign struct {
	Identity            string
	ProvisioningProfile string
}

// platformNames maps lower-case platform identifiers to the directory names
// used inside the platforms tree.
var platformNames = map[string]string{
	"iphoneos":        "iPhoneOS",
	"iphonesimulator": "iPhoneSimulator",
}

// PlatformName returns the display name of a platform identifier, or the
// identifier itself when it is not known.
func PlatformName(platform string) string {
	if name, ok := platformNames[platform]; ok {
		return name
	}
	return platform
}

// PlatformDir implements Provider.
func (m *Model) PlatformDir(platform string) string {
	return filepath.Join(m.Toolchain.PlatformsDir, PlatformName(platform)+".platform")
}

// SDK implements Provider.
func (m *Model) SDK(platform string) string {
	name := PlatformName(platform)
	return filepath.Join(m.PlatformDir(platform), "Developer", "SDKs", name+m.Toolchain.SDKVersion+".sdk")
}

// BuildDir implements Provider.
func (m *Model) BuildDir() string { return m.BuildRoot }

// Frameworks implements Provider. The returned slice is a copy.
func (m *Model) Frameworks() []string { return slices.Clone(m.FrameworkNames) }

// Files implements Provider. The returned slice is a copy.
func (m *Model) Files() []string { return slices.Clone(m.SourceFiles) }

// AppName implements Provider.
func (m *Model) AppName() string { return m.Name }

// BundleInfo implements Provider.
func (m *Model) BundleInfo() []byte { return m.InfoPlist }

// PackageInfo implements Provider.
func (m *Model) PackageInfo() []byte { return m.PkgInfo }

// ProvisioningProfile implements Provider.
func (m *Model) ProvisioningProfile() string {
	if m.Codesign == nil {
		return ""
	}
	return m.Codesign.ProvisioningProfile
}

// CodesignIdentity implements Provider.
func (m *Model) CodesignIdentity() string {
	if m.Codesign == nil {
		return ""
	}
	return m.Codesign.Identity
}
