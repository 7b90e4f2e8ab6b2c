package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
)

type browserModel struct {
	err      error
	sess     *session
	render   *printer
	status   string
	stack    []frame
	entries  []object.Entry
	input    textinput.Model
	selected int
	editing  bool
}

// frame is one level of the browsed path.
type frame struct {
	obj      *object.Object
	name     string
	selected int
}

type entriesMsg struct {
	err     error
	entries []object.Entry
}

type assignedMsg struct {
	err  error
	name string
}

func newBrowserModel(sess *session, root *object.Object, name string) *browserModel {
	ti := textinput.New()
	ti.Width = 40
	return &browserModel{
		sess:   sess,
		render: newPrinter(io.Discard, 0, true),
		stack:  []frame{{obj: root, name: name}},
		input:  ti,
	}
}

func (m *browserModel) current() *frame { return &m.stack[len(m.stack)-1] }

func (m *browserModel) Init() tea.Cmd {
	return m.load
}

// load re-reads the entries of the current object from memory.
func (m *browserModel) load() tea.Msg {
	entries, err := m.current().obj.Entries()
	return entriesMsg{entries: entries, err: err}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "enter", "right", "l":
			if next := m.child(); next != nil {
				m.current().selected = m.selected
				m.stack = append(m.stack, frame{obj: next, name: m.entries[m.selected].Name})
				m.selected = 0
				m.status = ""
				return m, m.load
			}

		case "left", "h", "backspace", "esc":
			if len(m.stack) > 1 {
				m.stack = m.stack[:len(m.stack)-1]
				m.selected = m.current().selected
				m.status = ""
				return m, m.load
			}

		case "e":
			if m.editable() {
				e := m.entries[m.selected]
				m.input.Prompt = e.Name + ": "
				m.input.SetValue(m.plain(e.Value))
				m.input.CursorEnd()
				m.input.Focus()
				m.editing = true
			}

		case "r":
			m.status = ""
			return m, m.load
		}

	case entriesMsg:
		m.entries, m.err = msg.entries, msg.err
		if m.selected >= len(m.entries) {
			m.selected = max(len(m.entries)-1, 0)
		}

	case assignedMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(msg.err.Error())
		} else {
			m.status = valueStyle.Render("updated " + msg.name)
		}
		return m, m.load
	}
	return m, nil
}

func (m *browserModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.editing = false
		m.input.Blur()
		return m, m.assign(m.entries[m.selected].Name, parseInput(m.input.Value()))
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// assign writes v through the current object: by index for arrays and
// slices, by name otherwise.
func (m *browserModel) assign(name string, v any) tea.Cmd {
	obj := m.current().obj
	return func() tea.Msg {
		var err error
		switch obj.Kind() {
		case structure.KindArray, structure.KindSlice:
			i, _ := strconv.Atoi(name)
			err = obj.SetAt(i, v)
		default:
			err = obj.Set(name, v)
		}
		return assignedMsg{name: name, err: err}
	}
}

func (m *browserModel) child() *object.Object {
	if m.selected >= len(m.entries) {
		return nil
	}
	o, ok := m.entries[m.selected].Value.(*object.Object)
	if !ok {
		return nil
	}
	return expand(o)
}

func (m *browserModel) editable() bool {
	if m.selected >= len(m.entries) || m.current().obj.IsReadOnly() {
		return false
	}
	switch v := m.entries[m.selected].Value.(type) {
	case *object.Object:
		return leaf(v) && !v.IsReadOnly()
	case error:
		return false
	}
	return true
}

// plain is the editable text of a value.
func (m *browserModel) plain(v any) string {
	if o, ok := v.(*object.Object); ok {
		pv, err := o.Value()
		if err != nil {
			return ""
		}
		v = pv
	}
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}

// parseInput turns typed text into the narrowest matching Go value.
func parseInput(s string) any {
	s = strings.TrimSpace(s)
	if s == "null" {
		return nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return n
	}
	if n, err := strconv.ParseUint(s, 0, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("memview"))
	b.WriteString(" ")
	b.WriteString(m.sess.source)
	b.WriteString("\n")

	names := make([]string, len(m.stack))
	for i, f := range m.stack {
		names[i] = f.name
	}
	cur := m.current().obj
	b.WriteString(nameStyle.Render(strings.Join(names, ".")))
	b.WriteString(" ")
	b.WriteString(typeStyle.Render(cur.Structure().Name + " " + describe(cur)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	for i, e := range m.entries {
		line := e.Name + ": " + m.render.value(e.Value)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + e.Name))
			b.WriteString(": " + m.render.value(e.Value))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if len(m.entries) == 0 && m.err == nil {
		b.WriteString(helpStyle.Render("(no entries)"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.editing {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter write • esc cancel"))
		return b.String()
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select • enter open • ← back • e edit • r reload • q quit"))
	return b.String()
}

func runInteractive(sess *session, root *object.Object, name string) error {
	p := tea.NewProgram(newBrowserModel(sess, root, name), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
