package operations

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// List is an ordered operation list that encodes to YAML as a sequence of
// single-key mappings keyed by operation kind:
//
//	- create_table:
//	    name: Products
//	- create_index:
//	    name: IX_Products_Name
type List []Operation

// MarshalYAML implements yaml.Marshaler.
func (l List) MarshalYAML() (any, error) {
	nodes := make([]map[string]Operation, 0, len(l))
	for _, op := range l {
		kind := Kind(op)
		if _, ok := factories[kind]; !ok {
			return nil, fmt.Errorf("cannot encode operation of type %T", op)
		}
		nodes = append(nodes, map[string]Operation{kind: op})
	}
	return nodes, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *List) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: operations must be a sequence", node.Line)
	}
	ops := make(List, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return fmt.Errorf("line %d: each operation must be a mapping with a single kind key", item.Line)
		}
		kind := item.Content[0].Value
		factory, ok := factories[kind]
		if !ok {
			return fmt.Errorf("line %d: unknown operation kind %q", item.Line, kind)
		}
		op := factory()
		if err := item.Content[1].Decode(op); err != nil {
			return fmt.Errorf("line %d: failed to decode %s: %w", item.Line, kind, err)
		}
		ops = append(ops, op)
	}
	*l = ops
	return nil
}
