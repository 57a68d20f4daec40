package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/mfe-bridge/bridge"
	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/reactive"
	"github.com/wippyai/mfe-bridge/remote"
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

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const logLines = 12

// field is one editable input. Bound fields are part of the input map the
// controller observes; editing them sets the cell.
type field struct {
	cell  *reactive.Cell[any]
	name  string
	typ   string
	input textinput.Model
	bound bool
}

type interactiveModel struct {
	ctx      context.Context
	ctrl     *bridge.Controller
	err      error
	status   string
	spec     remote.Spec
	fields   []field
	events   []string
	failures []string
	focusIdx int
}

type mountedMsg struct {
	err  error
	decl map[string]string
}

type outputMsg bridge.OutputEvent

type failureMsg struct{ err error }

type committedMsg struct {
	err   error
	value any
	name  string
}

func newInteractiveModel(ctx context.Context, ctrl *bridge.Controller, spec remote.Spec, values map[string]any) *interactiveModel {
	m := &interactiveModel{ctx: ctx, ctrl: ctrl, spec: spec}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.addField(k, "", values[k], true)
	}
	m.focus(0)
	return m
}

func (m *interactiveModel) addField(name, typ string, v any, bound bool) {
	ti := textinput.New()
	ti.Prompt = name + ": "
	ti.Placeholder = typ
	ti.Width = 40
	if v != nil {
		ti.SetValue(fmt.Sprint(v))
	}
	m.fields = append(m.fields, field{
		cell:  reactive.NewCell[any](v),
		name:  name,
		typ:   typ,
		input: ti,
		bound: bound,
	})
}

func (m *interactiveModel) focus(i int) {
	if len(m.fields) == 0 {
		return
	}
	m.fields[m.focusIdx].input.Blur()
	m.focusIdx = (i + len(m.fields)) % len(m.fields)
	m.fields[m.focusIdx].input.Focus()
}

// inputs returns the map handed to the controller. The same cells are
// passed every time so that existing observations are kept.
func (m *interactiveModel) inputs() bridge.Inputs {
	in := make(bridge.Inputs, len(m.fields))
	for _, f := range m.fields {
		if f.bound {
			in[f.name] = f.cell
		}
	}
	return in
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.mount()
}

func (m *interactiveModel) mount() tea.Cmd {
	ctx, ctrl, spec, in := m.ctx, m.ctrl, m.spec, m.inputs()
	return func() tea.Msg {
		if err := ctrl.Attach(ctx, spec, in); err != nil {
			return mountedMsg{err: err}
		}
		inst := ctrl.Instance()
		if inst == nil {
			return mountedMsg{}
		}
		return mountedMsg{decl: inst.Declaration().Inputs}
	}
}

// commit applies the focused field. Cells are set off the event loop
// because a component may emit synchronously and emissions are sent back
// into the program.
func (m *interactiveModel) commit() tea.Cmd {
	if len(m.fields) == 0 {
		return nil
	}
	f := &m.fields[m.focusIdx]
	name, cell := f.name, f.cell
	v := parseValue(f.input.Value())
	if f.bound {
		return func() tea.Msg {
			cell.Set(v)
			return committedMsg{name: name, value: v}
		}
	}

	cell.Set(v)
	f.bound = true
	ctrl, in := m.ctrl, m.inputs()
	return func() tea.Msg {
		return committedMsg{name: name, value: v, err: ctrl.SetInputs(in)}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "down":
			m.focus(m.focusIdx + 1)
			return m, nil
		case "shift+tab", "up":
			m.focus(m.focusIdx - 1)
			return m, nil
		case "enter":
			return m, m.commit()
		case "ctrl+r":
			if m.err != nil {
				m.err = nil
				m.status = "retrying"
				return m, m.mount()
			}
			return m, nil
		}

	case mountedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = "mounted"
		m.declare(msg.decl)

	case outputMsg:
		m.events = appendLog(m.events, nameStyle.Render(msg.Property)+"  "+eventStyle.Render(fmt.Sprint(msg.Payload)))

	case failureMsg:
		m.failures = appendLog(m.failures, msg.err.Error())

	case committedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.name, msg.err)
		} else {
			m.status = fmt.Sprintf("%s = %v", msg.name, msg.value)
		}
	}

	var cmds []tea.Cmd
	for i := range m.fields {
		var cmd tea.Cmd
		m.fields[i].input, cmd = m.fields[i].input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// declare adds a field for every declared input the user has not given a
// value for, and records declared types.
func (m *interactiveModel) declare(decl map[string]string) {
	known := make(map[string]bool, len(m.fields))
	for i := range m.fields {
		f := &m.fields[i]
		known[f.name] = true
		if typ, ok := decl[f.name]; ok {
			f.typ = typ
			f.input.Placeholder = typ
		}
	}
	names := make([]string, 0, len(decl))
	for name := range decl {
		if !known[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		m.addField(name, decl[name], nil, false)
	}
	if len(m.fields) > 0 && !m.fields[m.focusIdx].input.Focused() {
		m.focus(m.focusIdx)
	}
}

func appendLog(lines []string, line string) []string {
	lines = append(lines, line)
	if len(lines) > logLines {
		lines = lines[len(lines)-logLines:]
	}
	return lines
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Remote Component"))
	b.WriteString(" ")
	b.WriteString(m.spec.String())
	b.WriteString(" ")
	b.WriteString(typeStyle.Render(m.ctrl.State().String()))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	b.WriteString("Inputs:\n\n")
	if len(m.fields) == 0 {
		b.WriteString(helpStyle.Render("  (none)"))
		b.WriteString("\n")
	}
	for i, f := range m.fields {
		if i == m.focusIdx {
			b.WriteString(selectedStyle.Render(">"))
			b.WriteString(" ")
		} else {
			b.WriteString("  ")
		}
		b.WriteString(f.input.View())
		if f.typ != "" {
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.typ))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nOutputs:\n\n")
	for _, line := range m.events {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.failures) > 0 {
		b.WriteString("\nFailures:\n\n")
		for _, line := range m.failures {
			b.WriteString("  ")
			b.WriteString(errorStyle.Render(line))
			b.WriteString("\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(m.status))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("tab/↑/↓ field • enter apply • ctrl+r retry • esc quit"))
	return b.String()
}

func runInteractive(ctx context.Context, a *app, o *mountOptions) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.Unsupported(errors.PhaseConfig, "interactive mode without a terminal")
	}

	values, err := o.values(a.cfg)
	if err != nil {
		return err
	}
	res, err := a.newResolver(ctx)
	if err != nil {
		return err
	}
	defer a.closeResolver(res)

	spec := res.Normalize(o.spec(a.cfg))
	if err := spec.Validate(); err != nil {
		return err
	}

	ctrl := bridge.NewController(res, bridge.NewMountPoint(spec.Export), bridge.WithLogger(a.log))
	defer ctrl.Detach()

	p := tea.NewProgram(newInteractiveModel(ctx, ctrl, spec, values), tea.WithAltScreen())
	outSub := ctrl.Outputs().Subscribe(func(ev bridge.OutputEvent) { p.Send(outputMsg(ev)) })
	defer outSub.Unsubscribe()
	failSub := ctrl.Failures().Subscribe(func(err error) { p.Send(failureMsg{err: err}) })
	defer failSub.Unsubscribe()

	_, err = p.Run()
	return err
}
