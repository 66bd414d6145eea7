// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It parses `app.hcl` files, resolves paths relative to the file
// that declares them, and renders the bundle's Info property list and
// package-info bytes so the builder can write them verbatim.
//
// A minimal configuration:
//
//	app "Demo" {
//	  files      = ["app/app_delegate.rb", "app/main.rb"]
//	  frameworks = ["UIKit", "Foundation"]
//
//	  toolchain {
//	    sdk_version = "4.3"
//	  }
//
//	  info_plist {
//	    UIStatusBarHidden = true
//	  }
//	}
package hcl
