/*
Package builder is the incremental compile, link, bundle and sign pipeline. It
turns an ordered list of precompiled source units into a signed application
bundle by driving the external toolchain through the `toolchain` package.

The pipeline runs in fixed stages:

 1. Architecture discovery: the runtime-kernel blobs shipped for a platform
    decide which instruction sets are built. No blobs means nothing can be
    compiled, so the build stops with ErrNoArchitectures.

 2. Unit compilation: every unit is checked against the build cache. A fresh
    object keeps its InitSymbol; a stale one is translated, lowered and
    assembled once per architecture and the slices are merged into one
    universal object. Units run on the bounded worker pool of the `executor`
    package and the first failure cancels the rest.

 3. Entry module: a generated Objective-C++ main calls every unit's init
    function in configuration order. It is recompiled only when its text
    changes.

 4. Link: entry object, unit objects, runtime archive, system libraries,
    frameworks and optional framework stubs become the bundle executable.

 5. Bundle: Info.plist (converted to binary) and PkgInfo are written next to
    the executable.

 6. Codesign: resource rules and the provisioning profile are added and the
    signing tool is run over the bundle.

Every toolchain failure aborts the build. Intermediates of an aborted run are
left on disk; universal objects are only ever renamed into place complete.
*/
package builder
