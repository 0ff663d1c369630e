package host

import (
	"sort"
	"strings"
)

// voidElements are elements that cannot have children.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// IsVoidElement returns true if the tag is a void element.
func IsVoidElement(tag string) bool {
	return voidElements[tag]
}

// HTML serializes the children of n. Attributes and style properties are
// written in sorted order so the output is stable.
func (m *Memory) HTML(n Node) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := m.lookup(n)
	if mn == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range mn.children {
		writeHTML(&b, c)
	}
	return b.String()
}

// Snapshot returns HTML(n) together with the Seq of the last op applied
// before it was taken. Ops handed to OnOp handlers with a greater Seq are
// not reflected in the HTML; those with a lower or equal Seq are.
func (m *Memory) Snapshot(n Node) (html string, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := m.lookup(n)
	if mn == nil {
		return "", m.seq
	}
	var b strings.Builder
	for _, c := range mn.children {
		writeHTML(&b, c)
	}
	return b.String(), m.seq
}

// OuterHTML serializes n itself and its subtree.
func (m *Memory) OuterHTML(n Node) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := m.lookup(n)
	if mn == nil {
		return ""
	}
	var b strings.Builder
	writeHTML(&b, mn)
	return b.String()
}

func writeHTML(b *strings.Builder, n *memNode) {
	if n.kind == textNode {
		b.WriteString(escapeHTML(n.text))
		return
	}

	b.WriteByte('<')
	b.WriteString(n.tag)

	names := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		if k == "style" && len(n.style) > 0 {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		b.WriteByte(' ')
		b.WriteString(k)
		if v := n.attrs[k]; v != "" {
			b.WriteString(`="`)
			b.WriteString(escapeAttr(v))
			b.WriteByte('"')
		}
	}
	if len(n.style) > 0 {
		b.WriteString(` style="`)
		b.WriteString(escapeAttr(styleString(n.style)))
		b.WriteByte('"')
	}
	b.WriteByte('>')

	if voidElements[n.tag] && len(n.children) == 0 {
		return
	}
	for _, c := range n.children {
		writeHTML(b, c)
	}
	b.WriteString("</")
	b.WriteString(n.tag)
	b.WriteByte('>')
}

func styleString(style map[string]string) string {
	props := make([]string, 0, len(style))
	for k := range style {
		props = append(props, k)
	}
	sort.Strings(props)
	parts := make([]string, len(props))
	for i, k := range props {
		parts[i] = k + ": " + style[k]
	}
	return strings.Join(parts, "; ")
}

// escapeHTML escapes text for safe inclusion in HTML content.
func escapeHTML(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))

	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&#39;")
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}

// escapeAttr escapes text for safe inclusion in HTML attribute values.
// Whitespace that could break attribute parsing is escaped as well.
func escapeAttr(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))

	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&#39;")
		case '\n':
			buf.WriteString("&#10;")
		case '\r':
			buf.WriteString("&#13;")
		case '\t':
			buf.WriteString("&#9;")
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}
