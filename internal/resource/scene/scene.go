// Package scene compiles entity scene documents into SCENE resources. Each
// entity references a deduplicated layout describing its component types.
package scene

import (
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/props"
)

// Description is a parsed scene.
type Description struct {
	Layouts  []Layout
	Entities []Entity
}

// Entity is a named set of components.
type Entity struct {
	Name        string
	LayoutIndex int32
	Components  []Component
}

// Component is a typed key/value map. Values keep document order and keys
// are unique.
type Component struct {
	Type   string
	Values []props.Property
}

// Read parses a .cescene document:
//
//	Entities:
//	  - Entity: Camera
//	    Components:
//	      - Component: Transform
//	        Position: [0, 1, -5]
//
// Layouts are registered in r, which may be nil to use TypeHash.
func Read(source []byte, r *LayoutRegistry, log *zap.Logger) (*Description, error) {
	if r == nil {
		r = NewLayoutRegistry(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	root, err := props.Document(source)
	if err != nil {
		return nil, err
	}

	d := &Description{}
	for _, kv := range props.Pairs(root) {
		if kv[0].Value != "Entities" {
			continue
		}
		if err := props.Expect(kv[1], yaml.SequenceNode, "Entities"); err != nil {
			return nil, err
		}
		for _, n := range kv[1].Content {
			e, err := readEntity(n, r, log)
			if err != nil {
				return nil, err
			}
			d.Entities = append(d.Entities, e)
		}
	}
	d.Layouts = r.Layouts()
	return d, nil
}

func readEntity(n *yaml.Node, r *LayoutRegistry, log *zap.Logger) (Entity, error) {
	if err := props.Expect(n, yaml.MappingNode, "entity"); err != nil {
		return Entity{}, err
	}

	var (
		e       Entity
		named   bool
		types   []string
		present = map[string]bool{}
	)
	for _, kv := range props.Pairs(n) {
		switch kv[0].Value {
		case "Entity":
			if err := props.Expect(kv[1], yaml.ScalarNode, "Entity"); err != nil {
				return Entity{}, err
			}
			e.Name, named = kv[1].Value, true
		case "Components":
			if err := props.Expect(kv[1], yaml.SequenceNode, "Components"); err != nil {
				return Entity{}, err
			}
			for _, cn := range kv[1].Content {
				c, ok, err := readComponent(cn, log)
				if err != nil {
					return Entity{}, err
				}
				if !ok {
					log.Warn("component without type skipped", zap.Int("line", cn.Line))
					continue
				}
				if present[c.Type] {
					return Entity{}, resource.Malformed("line %d: entity has two %s components", cn.Line, c.Type)
				}
				present[c.Type] = true
				e.Components = append(e.Components, c)
				types = append(types, c.Type)
			}
		}
	}
	if !named {
		return Entity{}, resource.Malformed("line %d: entity has no name", n.Line)
	}

	e.LayoutIndex = r.Add(types)
	log.Debug("entity read",
		zap.String("name", e.Name),
		zap.Int("components", len(e.Components)),
		zap.Int32("layout", e.LayoutIndex))
	return e, nil
}

func readComponent(n *yaml.Node, log *zap.Logger) (Component, bool, error) {
	if err := props.Expect(n, yaml.MappingNode, "component"); err != nil {
		return Component{}, false, err
	}

	var (
		c      Component
		typed  bool
		keySet = map[string]bool{}
	)
	for _, kv := range props.Pairs(n) {
		if keySet[kv[0].Value] {
			return Component{}, false, resource.Malformed("line %d: duplicate key %s", kv[0].Line, kv[0].Value)
		}
		keySet[kv[0].Value] = true
		if kv[0].Value == "Component" {
			c.Type, typed = kv[1].Value, true
		}
	}
	if !typed {
		return Component{}, false, nil
	}

	values, err := props.ReadMapping(nil, n, func(k string) bool { return k == "Component" }, log)
	if err != nil {
		return Component{}, false, err
	}
	c.Values = values
	return c, true, nil
}
