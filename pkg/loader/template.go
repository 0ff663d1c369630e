package loader

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/retain/pkg/protocol"
	"github.com/vango-dev/retain/pkg/vdom"
)

// SlotTag is the element replaced by a component's children.
const SlotTag = "slot"

// ErrTemplateSyntax is returned for a YAML document that is not a node tree.
var ErrTemplateSyntax = errors.New("loader: invalid template")

// ParseTemplate decodes a template in either supported format.
func ParseTemplate(data []byte) (*vdom.VNode, error) {
	if protocol.IsTemplate(data) {
		return protocol.DecodeTemplate(data)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a YAML node tree.
func ParseYAML(data []byte) (*vdom.VNode, error) {
	var root yamlNode
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return root.build(0)
}

// yamlNode is one node of a YAML template. A scalar decodes as a text node.
type yamlNode struct {
	line int

	text    *string
	number  any
	tag     string
	comp    string
	key     string
	attrs   []vdom.Attr
	content []*yamlNode
}

func (n *yamlNode) UnmarshalYAML(value *yaml.Node) error {
	n.line = value.Line
	switch value.Kind {
	case yaml.ScalarNode:
		switch value.ShortTag() {
		case "!!int", "!!float":
			return value.Decode(&n.number)
		}
		s := value.Value
		n.text = &s
		return nil

	case yaml.MappingNode:
		var raw struct {
			Tag       string      `yaml:"tag"`
			Component string      `yaml:"component"`
			Key       string      `yaml:"key"`
			Text      *string     `yaml:"text"`
			Props     yaml.Node   `yaml:"props"`
			Children  []*yamlNode `yaml:"children"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		attrs, err := decodeProps(&raw.Props)
		if err != nil {
			return err
		}
		n.tag, n.comp, n.key = raw.Tag, raw.Component, raw.Key
		n.attrs = attrs
		n.content = raw.Children
		if raw.Text != nil {
			if n.tag == "" && n.comp == "" {
				n.text = raw.Text
			} else {
				n.content = append([]*yamlNode{{line: value.Line, text: raw.Text}}, n.content...)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: line %d: expected a node or a scalar", ErrTemplateSyntax, value.Line)
}

func decodeProps(node *yaml.Node) ([]vdom.Attr, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: props must be a mapping", ErrTemplateSyntax, node.Line)
	}
	attrs := make([]vdom.Attr, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, value := node.Content[i].Value, node.Content[i+1]
		if vdom.IsEventName(name) || name == "ref" {
			return nil, fmt.Errorf("%w: line %d: prop %q cannot be declared in a template", ErrTemplateSyntax, value.Line, name)
		}
		if name == "style" && value.Kind == yaml.MappingNode {
			var style map[string]string
			if err := value.Decode(&style); err != nil {
				return nil, err
			}
			attrs = append(attrs, vdom.StyleAttr(vdom.Style(style)))
			continue
		}
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: line %d: prop %q must be a scalar", ErrTemplateSyntax, value.Line, name)
		}
		var v any
		if err := value.Decode(&v); err != nil {
			return nil, err
		}
		attrs = append(attrs, vdom.Prop(name, v))
	}
	return attrs, nil
}

func (n *yamlNode) build(depth int) (*vdom.VNode, error) {
	if depth > protocol.MaxTreeDepth {
		return nil, protocol.ErrMaxDepthExceeded
	}
	switch {
	case n.number != nil:
		return vdom.Number(n.number), nil
	case n.text != nil:
		return vdom.Text(*n.text), nil
	case n.tag == "" && n.comp == "":
		return nil, fmt.Errorf("%w: line %d: node needs a tag or a component", ErrTemplateSyntax, n.line)
	}

	args := make([]any, 0, len(n.attrs)+len(n.content)+1)
	if n.key != "" {
		args = append(args, vdom.Key(n.key))
	}
	for _, a := range n.attrs {
		args = append(args, a)
	}
	for _, c := range n.content {
		child, err := c.build(depth + 1)
		if err != nil {
			return nil, err
		}
		args = append(args, child)
	}
	if n.comp != "" {
		return vdom.Named(n.comp, args...), nil
	}
	return vdom.El(n.tag, args...), nil
}

// Template returns a renderer instantiating tree. {{name}} in text and in
// string props is replaced by the prop of that name, and slot elements by the
// component's children. A tree whose root is a slot renders its children
// inside a div.
func Template(tree *vdom.VNode) vdom.Renderer {
	return func(props vdom.Props, children []*vdom.VNode) *vdom.VNode {
		if tree != nil && tree.Kind == vdom.KindElement && tree.Tag == SlotTag {
			return vdom.El(vdom.DefaultTag, children)
		}
		out := instantiate(tree, props, children)
		if len(out) == 0 {
			return nil
		}
		return out[0]
	}
}

func instantiate(n *vdom.VNode, props vdom.Props, children []*vdom.VNode) []*vdom.VNode {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case vdom.KindText:
		if n.Numeric || !strings.Contains(n.Text, "{{") {
			return []*vdom.VNode{n}
		}
		return []*vdom.VNode{vdom.Text(substitute(n.Text, props))}

	case vdom.KindElement, vdom.KindComponent:
		if n.Kind == vdom.KindElement && n.Tag == SlotTag {
			return children
		}
		cp := *n
		cp.Props = substituteProps(n.Props, props)
		if cp.Props.Has("key") {
			cp.Key = cp.Props.String("key")
		}
		cp.Children = make([]*vdom.VNode, 0, len(n.Children))
		for _, c := range n.Children {
			cp.Children = append(cp.Children, instantiate(c, props, children)...)
		}
		return []*vdom.VNode{&cp}
	}
	return []*vdom.VNode{n}
}

func substituteProps(p vdom.Props, props vdom.Props) vdom.Props {
	attrs := make([]vdom.Attr, 0, p.Len())
	p.Each(func(name string, v vdom.PropValue) {
		switch v.Kind {
		case vdom.PropScalar:
			if s, ok := v.Scalar.(string); ok {
				v = vdom.ScalarValue(substitute(s, props))
			}
		case vdom.PropStyle:
			style := make(vdom.Style, len(v.Style))
			for k, s := range v.Style {
				style[k] = substitute(s, props)
			}
			v = vdom.StyleValue(style)
		}
		attrs = append(attrs, vdom.Attr{Key: name, Value: v})
	})
	return vdom.NewProps(attrs...)
}

// substitute replaces every {{name}} in s with props.String(name).
func substitute(s string, props vdom.Props) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	var b strings.Builder
	for {
		open := strings.Index(s, "{{")
		if open < 0 {
			break
		}
		end := strings.Index(s[open+2:], "}}")
		if end < 0 {
			break
		}
		b.WriteString(s[:open])
		b.WriteString(props.String(strings.TrimSpace(s[open+2 : open+2+end])))
		s = s[open+2+end+2:]
	}
	b.WriteString(s)
	return b.String()
}
