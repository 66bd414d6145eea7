package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top-level blocks of one configuration file.
type fileRoot struct {
	Apps   []*appBlock `hcl:"app,block"`
	Remain hcl.Body    `hcl:",remain"`
}

type appBlock struct {
	Name             string   `hcl:"name,label"`
	BuildDir         string   `hcl:"build_dir,optional"`
	DataDir          string   `hcl:"data_dir,optional"`
	Files            []string `hcl:"files"`
	Frameworks       []string `hcl:"frameworks,optional"`
	Delegate         string   `hcl:"delegate,optional"`
	DeploymentTarget string   `hcl:"deployment_target,optional"`
	Identifier       string   `hcl:"identifier,optional"`
	Version          string   `hcl:"version,optional"`
	PackageType      string   `hcl:"package_type,optional"`
	Signature        string   `hcl:"signature,optional"`

	Toolchain *toolchainBlock `hcl:"toolchain,block"`
	Codesign  *codesignBlock  `hcl:"codesign,block"`
	InfoPlist *infoPlistBlock `hcl:"info_plist,block"`
}

type toolchainBlock struct {
	PlatformsDir string `hcl:"platforms_dir,optional"`
	SDKVersion   string `hcl:"sdk_version"`
}

type codesignBlock struct {
	Identity            string `hcl:"identity"`
	ProvisioningProfile string `hcl:"provisioning_profile"`
}

// infoPlistBlock holds free-form property-list keys.
type infoPlistBlock struct {
	Body hcl.Body `hcl:",remain"`
}
