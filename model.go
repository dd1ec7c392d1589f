package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model is the inspector TUI: it plays an upstream program one event at a
// time and shows the mapping chain, the pending batch, and the downstream
// output after every step.
type Model struct {
	// newSession builds a fresh plugin and backend so the program can be
	// replayed from the start.
	newSession func() (*Plugin, *SimBackend, error)

	plugin       *Plugin
	backend      *SimBackend
	program      *Program
	pos          int
	measurements []Measurement

	statusMsg string
	statusErr bool
	done      bool

	// editor lets the user rewrite the upstream program in place; leaving
	// the editor re-parses it and restarts the session.
	editor  textarea.Model
	editing bool

	width  int
	height int
}

func newInspector(program *Program, newSession func() (*Plugin, *SimBackend, error)) (Model, error) {
	ta := textarea.New()
	ta.SetValue(program.Source)
	ta.ShowLineNumbers = true

	m := Model{
		newSession: newSession,
		program:    program,
		editor:     ta,
	}
	if err := m.restart(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func (m *Model) restart() error {
	plugin, backend, err := m.newSession()
	if err != nil {
		return err
	}
	m.plugin = plugin
	m.backend = backend
	m.pos = 0
	m.measurements = nil
	m.statusMsg = ""
	m.statusErr = false
	m.done = false
	return nil
}

// step plays the next stream event, then the end-of-stream drop.
func (m *Model) step() {
	if m.done {
		return
	}
	if m.pos >= len(m.program.Events) {
		if err := m.plugin.Drop(); err != nil {
			m.fail(err)
			return
		}
		m.statusMsg = "stream dropped, final flush done"
		m.done = true
		return
	}

	ev := m.program.Events[m.pos]
	switch ev.Kind {
	case EventAlloc:
		if err := m.plugin.AllocateQubits(ev.Refs, false); err != nil {
			m.fail(err)
			return
		}
	case EventFree:
		m.plugin.FreeQubits(ev.Refs)
	case EventGate:
		ms, err := m.plugin.HandleGate(ev.Gate)
		if err != nil {
			m.fail(err)
			return
		}
		m.measurements = append(m.measurements, ms...)
	}
	m.pos++
	m.statusMsg = ev.Text
	m.statusErr = false
}

func (m *Model) fail(err error) {
	m.statusMsg = fmt.Sprintf("error: %v", err)
	m.statusErr = true
	m.done = true
}

// applyEdit re-parses the edited source and restarts the session on it.
// A parse failure keeps the old program and reports the error.
func (m *Model) applyEdit() {
	prog, err := ParseProgram(m.editor.Value())
	if err != nil {
		m.statusMsg = fmt.Sprintf("program not updated: %v", err)
		m.statusErr = true
		return
	}
	m.program = prog
	if err := m.restart(); err != nil {
		m.fail(err)
		return
	}
	m.statusMsg = "program updated, restarted"
}

// ──────────────────────────── Init / Update ────────────────────────────

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.editor.SetWidth(max(msg.Width/3-4, 20))
		m.editor.SetHeight(max(msg.Height-12, 4))

	case tea.KeyMsg:
		if m.editing {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc":
				m.editing = false
				m.editor.Blur()
				m.applyEdit()
			default:
				var cmd tea.Cmd
				m.editor, cmd = m.editor.Update(msg)
				return m, cmd
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "n", "enter":
			m.step()
		case "e":
			m.editing = true
			m.editor.SetValue(m.program.Source)
			return m, m.editor.Focus()
		case "f":
			if !m.done && m.plugin.Controller() != nil {
				if err := m.plugin.Controller().Flush(); err != nil {
					m.fail(err)
				} else {
					m.statusMsg = "batch flushed"
					m.statusErr = false
				}
			}
		case "r":
			if err := m.restart(); err != nil {
				m.fail(err)
			} else {
				m.statusMsg = "restarted"
			}
		}
	}

	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	leftWidth := m.width / 3
	rightWidth := m.width - 2*leftWidth - 6
	controlsHeight := 5
	panelHeight := max(m.height-controlsHeight-2, 8)
	halfHeight := panelHeight/2 - 1

	streamPanel := m.renderStreamPanel(leftWidth, panelHeight)
	if m.editing {
		streamPanel = m.renderEditorPanel(leftWidth, panelHeight)
	}
	mapPanel := m.renderMappingPanel(leftWidth, halfHeight)
	batchPanel := m.renderBatchPanel(leftWidth, halfHeight)
	emittedPanel := m.renderEmittedPanel(rightWidth, panelHeight)
	controlsPanel := m.renderControlsPanel(m.width-4, controlsHeight-2)

	middle := lipgloss.JoinVertical(lipgloss.Left, mapPanel, batchPanel)
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, streamPanel, middle, emittedPanel)
	return lipgloss.JoinVertical(lipgloss.Left, topRow, controlsPanel)
}
