package material

import (
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/props"
)

// ReadDocument parses a .cematerial document:
//
//	Material:
//	  IsTransparent: false
//	  Properties:
//	    - DiffuseColor: [1, 1, 1, 1]
//	    - DiffuseTexture: 'brick.png'
//
// The description is named after the source file.
func ReadDocument(source []byte, cc resource.CompilerContext) (*Description, error) {
	root, err := props.Document(source)
	if err != nil {
		return nil, err
	}

	d := &Description{Name: cc.BaseName()}
	for _, kv := range props.Pairs(root) {
		if kv[0].Value != "Material" {
			continue
		}
		if err := props.Expect(kv[1], yaml.MappingNode, "Material"); err != nil {
			return nil, err
		}
		if err := readMaterial(d, kv[1], cc); err != nil {
			return nil, err
		}
	}

	cc.Logger().Debug("material read",
		zap.String("name", d.Name),
		zap.Int("properties", len(d.Properties)),
		zap.Bool("transparent", d.IsTransparent))
	return d, nil
}

func readMaterial(d *Description, n *yaml.Node, cc resource.CompilerContext) error {
	for _, kv := range props.Pairs(n) {
		switch kv[0].Value {
		case "Properties":
			if err := props.Expect(kv[1], yaml.SequenceNode, "Properties"); err != nil {
				return err
			}
			for _, item := range kv[1].Content {
				var err error
				if d.Properties, err = props.ReadMapping(d.Properties, item, nil, cc.Logger()); err != nil {
					return err
				}
			}
		case "IsTransparent":
			b, err := strconv.ParseBool(kv[1].Value)
			if err != nil || kv[1].Kind != yaml.ScalarNode {
				return resource.Malformed("line %d: IsTransparent must be true or false", kv[1].Line)
			}
			d.IsTransparent = b
		}
	}
	return nil
}
