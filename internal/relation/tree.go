// Package relation canonicalizes caller-declared relation trees.
//
// A declaration may be a single relation name, a list of declarations or a
// mapping from relation names to nested declarations. Normalize turns any of
// those into a Tree: an ordered mapping of relation name to nested Tree, where
// an empty Tree marks a leaf.
package relation

import (
	"sort"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
	"gopkg.in/yaml.v3"
)

// Tree is an ordered mapping from relation name to nested tree.
// The zero value and nil are both valid empty trees.
type Tree struct {
	children *orderedmap.OrderedMap[string, *Tree]
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{children: orderedmap.NewOrderedMap[string, *Tree]()}
}

// Len returns the number of relation names at this level.
func (t *Tree) Len() int {
	if t == nil || t.children == nil {
		return 0
	}
	return t.children.Len()
}

// IsLeaf reports whether the tree names no relations.
func (t *Tree) IsLeaf() bool {
	return t.Len() == 0
}

// Names returns the relation names at this level in declared order.
func (t *Tree) Names() []string {
	if t.Len() == 0 {
		return nil
	}
	return t.children.Keys()
}

// Child returns the nested tree for name; a missing name yields an empty tree.
func (t *Tree) Child(name string) *Tree {
	if t.Len() == 0 {
		return New()
	}
	if child, ok := t.children.Get(name); ok {
		return child
	}
	return New()
}

// Has reports whether name is declared at this level.
func (t *Tree) Has(name string) bool {
	if t.Len() == 0 {
		return false
	}
	_, ok := t.children.Get(name)
	return ok
}

// add merges child into the entry for name, creating it when missing.
func (t *Tree) add(name string, child *Tree) {
	if t.children == nil {
		t.children = orderedmap.NewOrderedMap[string, *Tree]()
	}
	if existing, ok := t.children.Get(name); ok {
		existing.Merge(child)
		return
	}
	t.children.Set(name, child.clone())
}

func (t *Tree) clone() *Tree {
	c := New()
	for _, name := range t.Names() {
		c.children.Set(name, t.Child(name).clone())
	}
	return c
}

// Merge deep-merges other into t by union of nested trees. Names already in t
// keep their position; new names are appended in other's order.
func (t *Tree) Merge(other *Tree) {
	for _, name := range other.Names() {
		t.add(name, other.Child(name))
	}
}

// Equal reports whether both trees declare the same names, in the same order, recursively.
func (t *Tree) Equal(other *Tree) bool {
	a, b := t.Names(), other.Names()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] || !t.Child(a[i]).Equal(other.Child(b[i])) {
			return false
		}
	}
	return true
}

// String renders the tree compactly, e.g. {orders: {items}, profile}.
func (t *Tree) String() string {
	if t.IsLeaf() {
		return "{}"
	}
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t *Tree) write(sb *strings.Builder) {
	sb.WriteString("{")
	for i, name := range t.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(name)
		if child := t.Child(name); !child.IsLeaf() {
			sb.WriteString(": ")
			child.write(sb)
		}
	}
	sb.WriteString("}")
}

// Normalize converts a relation declaration into a Tree.
//
//   - a name becomes {name: {}}
//   - a list becomes the deep merge of its normalized elements
//   - a mapping becomes each key mapped to its normalized value
//   - anything else becomes the empty tree
//
// Plain Go maps carry no order, so their keys are taken in sorted order.
func Normalize(decl interface{}) *Tree {
	tree := New()

	switch d := decl.(type) {
	case nil:
	case *Tree:
		tree.Merge(d)
	case string:
		if name := strings.TrimSpace(d); name != "" {
			tree.add(name, New())
		}
	case []string:
		for _, name := range d {
			tree.Merge(Normalize(name))
		}
	case []interface{}:
		for _, item := range d {
			tree.Merge(Normalize(item))
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tree.add(k, Normalize(d[k]))
		}
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(d))
		values := make(map[string]interface{}, len(d))
		for k, v := range d {
			name, ok := k.(string)
			if !ok {
				continue
			}
			keys = append(keys, name)
			values[name] = v
		}
		sort.Strings(keys)
		for _, k := range keys {
			tree.add(k, Normalize(values[k]))
		}
	case *orderedmap.OrderedMap[string, interface{}]:
		for el := d.Front(); el != nil; el = el.Next() {
			tree.add(el.Key, Normalize(el.Value))
		}
	case yaml.Node:
		tree.Merge(fromNode(&d))
	case *yaml.Node:
		tree.Merge(fromNode(d))
	}

	return tree
}

// fromNode normalizes a YAML node, keeping mapping keys in document order.
func fromNode(n *yaml.Node) *Tree {
	tree := New()
	if n == nil {
		return tree
	}

	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			tree.Merge(fromNode(c))
		}
	case yaml.AliasNode:
		tree.Merge(fromNode(n.Alias))
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return tree
		}
		tree.Merge(Normalize(n.Value))
	case yaml.SequenceNode:
		for _, c := range n.Content {
			tree.Merge(fromNode(c))
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				continue
			}
			tree.add(key.Value, fromNode(n.Content[i+1]))
		}
	}

	return tree
}
