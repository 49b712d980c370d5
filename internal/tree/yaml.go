package tree

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const mergeTag = "!!merge"

// FromYAML converts a parsed YAML node into a Value. Aliases are expanded and
// `<<` merge keys are applied, with keys written in the mapping itself taking
// precedence over merged ones.
func FromYAML(node *yaml.Node) (Value, error) {
	c := &converter{active: make(map[*yaml.Node]bool)}
	return c.convert(node)
}

// Parse decodes a single YAML document into a Value. An empty document yields
// an empty map.
func Parse(text string) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if doc.Kind == 0 {
		return Empty(), nil
	}
	return FromYAML(&doc)
}

type converter struct {
	// active holds alias targets currently being expanded, to stop cycles.
	active map[*yaml.Node]bool
}

func (c *converter) convert(node *yaml.Node) (Value, error) {
	if node == nil {
		return Null(), nil
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Empty(), nil
		}
		return c.convert(node.Content[0])

	case yaml.AliasNode:
		if node.Alias == nil {
			return nil, fmt.Errorf("line %d: alias without anchor", node.Line)
		}
		if c.active[node.Alias] {
			return nil, fmt.Errorf("line %d: recursive alias *%s", node.Line, node.Value)
		}
		c.active[node.Alias] = true
		defer delete(c.active, node.Alias)
		return c.convert(node.Alias)

	case yaml.ScalarNode:
		return NewScalar(node.Value, scalarKind(node)), nil

	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := c.convert(child)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return &List{items: items}, nil

	case yaml.MappingNode:
		return c.convertMapping(node)
	}

	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", node.Line, node.Kind)
}

func (c *converter) convertMapping(node *yaml.Node) (Value, error) {
	if len(node.Content)%2 != 0 {
		return nil, fmt.Errorf("line %d: mapping has odd number of nodes", node.Line)
	}

	merged := Empty()
	own := &Map{vals: make(map[string]Value, len(node.Content)/2)}

	for i := 0; i < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.ShortTag() == mergeTag {
			sources, err := c.mergeSources(valNode)
			if err != nil {
				return nil, err
			}
			for _, src := range sources {
				sm := src.(*Map)
				for _, k := range sm.keys {
					merged.set(k, sm.vals[k])
				}
			}
			continue
		}

		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping key must be a scalar", keyNode.Line)
		}
		v, err := c.convert(valNode)
		if err != nil {
			return nil, err
		}
		own.set(keyNode.Value, v)
	}

	if merged.Len() == 0 {
		return own, nil
	}
	// Merged keys are shallow defaults; keys written in the mapping replace
	// them entirely.
	out := &Map{vals: make(map[string]Value)}
	for _, k := range merged.keys {
		if v, ok := own.vals[k]; ok {
			out.set(k, v)
			continue
		}
		out.set(k, merged.vals[k])
	}
	for _, k := range own.keys {
		out.set(k, own.vals[k])
	}
	return out, nil
}

// mergeSources returns the maps referenced by a `<<` value, which is either a
// single map (usually an alias) or a sequence of them. Earlier entries in a
// sequence take precedence, so they are returned last.
func (c *converter) mergeSources(node *yaml.Node) ([]Value, error) {
	target := node
	if target.Kind == yaml.AliasNode && target.Alias != nil {
		target = target.Alias
	}

	if target.Kind == yaml.SequenceNode {
		out := make([]Value, 0, len(target.Content))
		for i := len(target.Content) - 1; i >= 0; i-- {
			v, err := c.convert(target.Content[i])
			if err != nil {
				return nil, err
			}
			if _, ok := v.(*Map); !ok {
				return nil, fmt.Errorf("line %d: merge key value must be a map", target.Content[i].Line)
			}
			out = append(out, v)
		}
		return out, nil
	}

	v, err := c.convert(node)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(*Map); !ok {
		return nil, fmt.Errorf("line %d: merge key value must be a map", node.Line)
	}
	return []Value{v}, nil
}

func scalarKind(node *yaml.Node) ScalarKind {
	switch node.ShortTag() {
	case "!!bool":
		return ScalarBool
	case "!!int":
		return ScalarInt
	case "!!float":
		return ScalarFloat
	case "!!null":
		return ScalarNull
	default:
		return ScalarString
	}
}
