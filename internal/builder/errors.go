package builder

import "errors"

var (
	// ErrNoArchitectures is returned when no runtime-kernel blob exists for
	// the target platform, so no architecture can be compiled.
	ErrNoArchitectures = errors.New("no architectures available for platform")

	// ErrMissingBundle is returned when signing is requested for a bundle that
	// has not been built.
	ErrMissingBundle = errors.New("bundle does not exist")

	// ErrDuplicateUnit is returned when two configured units resolve to the
	// same source file or the same object path.
	ErrDuplicateUnit = errors.New("source unit listed more than once")

	// ErrUnitOutsideBuild is returned when a unit's artifacts would be written
	// outside the object directory.
	ErrUnitOutsideBuild = errors.New("source unit maps outside the object directory")

	// ErrIncompleteObject is returned when a merged universal object does not
	// contain one slice per requested architecture.
	ErrIncompleteObject = errors.New("universal object is missing architecture slices")
)
