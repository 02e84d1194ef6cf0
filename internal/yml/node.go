// Package yml converts YAML documents to the plain values JSON tooling expects.
package yml

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	Node yaml.Node
)

// Parse decodes data into a document node
func Parse(data []byte) (*Node, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return (*Node)(&node), nil
}

// Lookup returns the value node of key name in a mapping, nil when absent
func (n *Node) Lookup(name string) *Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return (*Node)(n.Content[0]).Lookup(name)
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == name {
			return (*Node)(n.Content[i+1])
		}
	}
	return nil
}

// Interface returns the node as string keyed maps, slices and scalars.
func (n *Node) Interface() interface{} {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return (*Node)(n.Content[0]).Interface()
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil
		}
		return (*Node)(n.Alias).Interface()
	case yaml.ScalarNode:
		switch (*yaml.Node)(n).ShortTag() {
		case "!!str":
			return n.Value
		case "!!bool":
			return strings.EqualFold(n.Value, "true")
		case "!!null":
			return nil
		case "!!float":
			f, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return n.Value
			}
			return f
		case "!!int":
			i, err := strconv.ParseInt(n.Value, 0, 64)
			if err != nil {
				return n.Value
			}
			return i
		default:
			return n.Value
		}
	case yaml.MappingNode:
		var aMap = make(map[string]interface{})
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			value := (*Node)(n.Content[i+1])
			aMap[key] = value.Interface()
		}
		return aMap
	case yaml.SequenceNode:
		var aSlice = make([]interface{}, 0, len(n.Content))
		for i := 0; i < len(n.Content); i++ {
			value := (*Node)(n.Content[i])
			aSlice = append(aSlice, value.Interface())
		}
		return aSlice
	}
	return nil
}

// Decode decodes the node into v
func (n *Node) Decode(v interface{}) error {
	return (*yaml.Node)(n).Decode(v)
}
