package texture

import (
	"path/filepath"
	"strings"
)

// Usage is how a texture is sampled, derived from its file name.
type Usage int

const (
	UsageColor Usage = iota
	UsageNormal
	UsageBump
	UsageMask
)

func (u Usage) String() string {
	switch u {
	case UsageNormal:
		return "normal"
	case UsageBump:
		return "bump"
	case UsageMask:
		return "mask"
	}
	return "color"
}

// Class is the processing path chosen for a source image.
type Class struct {
	Usage Usage
	Cube  bool
	HDR   bool
}

// Skip reports whether the source produces no output. Masks are consumed
// by other tools, not by the engine.
func (c Class) Skip() bool {
	return c.Usage == UsageMask
}

// Classify inspects the lowercased file name: "mask" skips the file,
// "cubemap" selects cube processing, a .hdr extension the HDR path,
// "normal" or "ddn" a normal map and "bump" a bump map.
func Classify(filename string) Class {
	base := strings.ToLower(filepath.Base(filename))
	c := Class{
		Cube: strings.Contains(base, "cubemap"),
		HDR:  filepath.Ext(base) == ".hdr",
	}
	switch {
	case strings.Contains(base, "mask"):
		c.Usage = UsageMask
	case strings.Contains(base, "normal") || strings.Contains(base, "ddn"):
		c.Usage = UsageNormal
	case strings.Contains(base, "bump"):
		c.Usage = UsageBump
	}
	return c
}
