// Package config defines the format-agnostic build configuration model,
// along with the core interfaces (Loader, Provider) the builder consumes.
//
// The `config.Model` is the single source of truth for the `builder` and
// `app` packages. Concrete loaders, such as the HCL one, are provided in
// separate packages and only need to produce a populated Model.
package config
