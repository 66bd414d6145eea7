package builder

import (
	"path/filepath"
	"strings"
)

// layout computes every path the pipeline produces under
// <buildDir>/<platform>.
type layout struct {
	root    string
	appName string
}

func newLayout(buildDir, platform, appName string) layout {
	return layout{root: filepath.Join(buildDir, platform), appName: appName}
}

func (l layout) objsDir() string { return filepath.Join(l.root, "objs") }

// unitKey is the unit's path relative to objs/. A relative path that climbs
// above the working directory is made absolute first, so it nests under
// objs/ like any absolute path.
func unitKey(unit string) string {
	c := filepath.Clean(unit)
	if c == ".." || strings.HasPrefix(c, ".."+string(filepath.Separator)) {
		if abs, err := filepath.Abs(c); err == nil {
			return abs
		}
	}
	return c
}

// unitObject is the canonical universal object of a source unit.
func (l layout) unitObject(unit string) string {
	return filepath.Join(l.objsDir(), unitKey(unit)+".o")
}

// intermediate is a per-architecture artifact stored next to the unit object.
func (l layout) intermediate(unit, arch, ext string) string {
	return filepath.Join(l.objsDir(), unitKey(unit)+"."+arch+ext)
}

// contains reports whether path lies strictly inside objs/.
func (l layout) contains(path string) bool {
	rel, err := filepath.Rel(l.objsDir(), path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (l layout) entrySource() string { return filepath.Join(l.objsDir(), "main", "main.mm") }
func (l layout) entryObject() string { return filepath.Join(l.objsDir(), "main", "main.o") }
func (l layout) cacheManifest() string { return filepath.Join(l.objsDir(), ".unitcache.json") }

func (l layout) bundle() string     { return filepath.Join(l.root, l.appName+".app") }
func (l layout) executable() string { return filepath.Join(l.bundle(), l.appName) }
