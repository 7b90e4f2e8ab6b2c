package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// printer writes an object tree, following pointers up to depth levels.
type printer struct {
	w      io.Writer
	seen   map[*object.Object]bool
	depth  int
	styled bool
}

func newPrinter(w io.Writer, depth int, styled bool) *printer {
	return &printer{w: w, depth: depth, styled: styled, seen: make(map[*object.Object]bool)}
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) print(name string, o *object.Object) error {
	fmt.Fprintf(p.w, "%s %s\n", p.style(titleStyle, name), p.style(typeStyle, describe(o)))
	if leaf(o) {
		fmt.Fprintf(p.w, "  %s\n", p.summary(o))
		return nil
	}
	p.children(o, "  ", 1)
	return nil
}

func (p *printer) children(o *object.Object, indent string, level int) {
	p.seen[o] = true
	entries, err := o.Entries()
	if err != nil {
		fmt.Fprintf(p.w, "%s%s\n", indent, p.style(errorStyle, err.Error()))
		return
	}
	for _, e := range entries {
		p.entry(e, indent, level)
	}
}

func (p *printer) entry(e object.Entry, indent string, level int) {
	label := p.style(nameStyle, e.Name)
	child, ok := e.Value.(*object.Object)
	if !ok {
		fmt.Fprintf(p.w, "%s%s: %s\n", indent, label, p.value(e.Value))
		return
	}
	next := expand(child)
	line := p.summary(child)
	if next != nil && p.seen[next] {
		line += p.style(helpStyle, " (seen)")
		next = nil
	}
	fmt.Fprintf(p.w, "%s%s: %s\n", indent, label, line)
	if next == nil {
		return
	}
	if level >= p.depth {
		fmt.Fprintf(p.w, "%s  %s\n", indent, p.style(helpStyle, "..."))
		return
	}
	p.children(next, indent+"  ", level+1)
}

// summary is the one-line rendering of an object: its value for scalars,
// its target address for pointers, its type otherwise.
func (p *printer) summary(o *object.Object) string {
	if leaf(o) {
		v, err := o.Value()
		if err != nil {
			return p.style(errorStyle, err.Error())
		}
		return p.value(v)
	}
	if o.Kind() == structure.KindPointer {
		null, err := o.IsNull()
		if err != nil {
			return p.style(errorStyle, err.Error())
		}
		if null {
			return p.style(helpStyle, "null")
		}
		t, err := o.Deref()
		if err != nil {
			return p.style(errorStyle, err.Error())
		}
		out := "-> " + p.style(typeStyle, o.Structure().Name)
		if addr, ok := o.Address(); ok {
			out += fmt.Sprintf(" @ %#x", addr)
		}
		if leaf(t) {
			out += " = " + p.summary(t)
		}
		return out
	}
	return p.style(typeStyle, o.Structure().Name)
}

func (p *printer) value(v any) string {
	switch x := v.(type) {
	case nil:
		return p.style(helpStyle, "null")
	case error:
		return p.style(errorStyle, x.Error())
	case *object.Object:
		return p.summary(x)
	case []any:
		parts := make([]string, len(x))
		for i, el := range x {
			parts[i] = p.value(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return p.style(valueStyle, fmt.Sprint(v))
}

// leaf reports whether o renders on one line.
func leaf(o *object.Object) bool {
	switch o.Kind() {
	case structure.KindPrimitive, structure.KindEnum, structure.KindErrorSet,
		structure.KindFunction, structure.KindOpaque:
		return true
	}
	return false
}

// expand returns the object whose entries are listed under o, or nil.
func expand(o *object.Object) *object.Object {
	if leaf(o) {
		return nil
	}
	if o.Kind() != structure.KindPointer {
		return o
	}
	if null, err := o.IsNull(); err != nil || null {
		return nil
	}
	t, err := o.Deref()
	if err != nil || leaf(t) {
		return nil
	}
	return t
}

func describe(o *object.Object) string {
	s := o.Structure()
	out := fmt.Sprintf("(%s, %d bytes", s.Kind, o.View().Len())
	if addr, ok := o.View().Address(); ok {
		out += fmt.Sprintf(" @ %#x", addr)
	}
	return out + ")"
}

func printTypes(w io.Writer, ctors map[string]*object.Constructor, styled bool) {
	names := make([]string, 0, len(ctors))
	for name := range ctors {
		names = append(names, name)
	}
	sort.Strings(names)

	p := newPrinter(w, 0, styled)
	for _, name := range names {
		s := ctors[name].Structure()
		fmt.Fprintf(w, "%s %s\n", p.style(nameStyle, fmt.Sprintf("%-32s", name)),
			p.style(typeStyle, fmt.Sprintf("%-12s size %-4d align %d", s.Kind, s.ByteSize, s.Align)))
	}
}
