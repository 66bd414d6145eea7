package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths and translates it into
	// the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Provider is the read-only contract the builder consumes. Every value is
// fixed for the duration of one build invocation.
type Provider interface {
	// SDK returns the SDK root used as the sysroot for the given platform.
	SDK(platform string) string
	// PlatformDir returns the toolchain directory for the given platform.
	PlatformDir(platform string) string
	BuildDir() string
	// Frameworks returns the framework names in configuration order.
	Frameworks() []string
	// Files returns the source-unit paths in configuration order.
	Files() []string
	AppName() string
	// BundleInfo returns the pre-rendered Info property-list bytes.
	BundleInfo() []byte
	PackageInfo() []byte
	ProvisioningProfile() string
	CodesignIdentity() string
}
