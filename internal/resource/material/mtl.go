package material

import (
	"strconv"
	"strings"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/props"
	"github.com/Faultbox/ceforge/internal/textenc"
)

type mtlBlock struct {
	desc           *Description
	diffuseColor   [4]float32
	diffuseTexture string
	normalTexture  string
	bumpTexture    string
}

func (b *mtlBlock) finish() *Description {
	b.desc.Add("DiffuseColor", props.FloatsValue(b.diffuseColor[:]...))
	b.desc.Add("DiffuseTexture", props.StringValue(b.diffuseTexture))
	b.desc.Add("NormalTexture", props.StringValue(b.normalTexture))
	b.desc.Add("BumpTexture", props.StringValue(b.bumpTexture))
	return b.desc
}

// ReadMTL parses a Wavefront material library into one description per
// newmtl block. Directives before the first newmtl are ignored.
func ReadMTL(source []byte, cc resource.CompilerContext) ([]*Description, error) {
	var (
		out     []*Description
		current *mtlBlock
	)

	for n, line := range textenc.Lines(source) {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		directive := strings.ToLower(fields[0])
		if directive == "newmtl" {
			if current != nil {
				out = append(out, current.finish())
			}
			current = &mtlBlock{desc: &Description{Name: resource.SafeName(strings.Join(fields[1:], " "))}}
			continue
		}
		if current == nil {
			continue
		}

		// Map directives may carry options; the file name is the last field.
		arg := fields[len(fields)-1]
		switch directive {
		case "kd":
			if len(fields) < 4 {
				return nil, resource.Malformed("line %d: Kd needs 3 components", n+1)
			}
			for i := 0; i < 3; i++ {
				f, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					return nil, resource.Malformed("line %d: bad number %q", n+1, fields[i+1])
				}
				current.diffuseColor[i] = float32(f)
			}
			current.diffuseColor[3] = 1
		case "map_kd":
			current.diffuseTexture = ResolveTexturePath(cc, arg)
		case "map_disp":
			current.normalTexture = ResolveTexturePath(cc, arg)
		case "map_bump", "bump":
			current.bumpTexture = ResolveTexturePath(cc, arg)
		case "map_d":
			current.desc.IsTransparent = true
		}
	}

	if current != nil {
		out = append(out, current.finish())
	}
	return out, nil
}
