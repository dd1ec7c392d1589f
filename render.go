package main

import (
	"fmt"
	"strings"
)

// ──────────────────────────── Plain-text tables ────────────────────────────

// mappingTableString formats the mapping chain as a fixed-width table.
// The same text is written to the debug log and shown in the inspector.
func mappingTableString(rows []MappingRow) string {
	cell := func(v int) string {
		if v == Unmapped {
			return "-"
		}
		return fmt.Sprintf("%d", v)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%8s %8s %8s %10s\n", "upstream", "virtual", "physical", "downstream")
	for _, r := range rows {
		fmt.Fprintf(&sb, "%8s %8s %8s %10s\n",
			cell(r.Upstream), cell(r.Virtual), cell(r.Physical), cell(r.Downstream))
	}
	return sb.String()
}

// gateText returns a one-line description of a wire gate.
func gateText(g Gate) string {
	refs := func(qs []int) string {
		parts := make([]string, len(qs))
		for i, q := range qs {
			parts[i] = fmt.Sprintf("q%d", q)
		}
		return strings.Join(parts, ",")
	}
	switch g.Class {
	case ClassMeasure:
		return "measure " + refs(g.Measures)
	case ClassPrep:
		return "prep " + refs(g.Targets)
	default:
		if len(g.Controls) > 0 {
			return fmt.Sprintf("unitary(%dx%d) %s -> %s",
				g.Matrix.Dim(), g.Matrix.Dim(), refs(g.Controls), refs(g.Targets))
		}
		return fmt.Sprintf("unitary(%dx%d) %s", g.Matrix.Dim(), g.Matrix.Dim(), refs(g.Targets))
	}
}

// ──────────────────────────── Panel rendering ────────────────────────────

// renderStreamPanel renders the upstream program with a cursor on the next
// event to play. Already-played lines are dimmed.
func (m Model) renderStreamPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Upstream Stream"))
	sb.WriteString("\n\n")

	if m.program == nil {
		sb.WriteString(dimStyle.Render("  no program loaded"))
		return streamStyle.Width(width).Height(height).Render(sb.String())
	}

	// Keep the cursor in view for long programs.
	visible := max(height-4, 1)
	start := 0
	if m.pos >= visible {
		start = m.pos - visible + 1
	}
	for i := start; i < len(m.program.Events) && i < start+visible; i++ {
		ev := m.program.Events[i]
		switch {
		case i < m.pos:
			sb.WriteString(dimStyle.Render("  " + ev.Text))
		case i == m.pos:
			sb.WriteString(cursorStyle.Render("▶ " + ev.Text))
		default:
			sb.WriteString("  " + ev.Text)
		}
		sb.WriteString("\n")
	}
	if m.pos >= len(m.program.Events) {
		sb.WriteString(cursorStyle.Render("▶ <end of stream>"))
		sb.WriteString("\n")
	}

	return streamStyle.Width(width).Height(height).Render(sb.String())
}

// renderMappingPanel renders the current upstream/virtual/physical table.
func (m Model) renderMappingPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Qubit Map"))
	sb.WriteString("\n\n")

	if m.plugin == nil || m.plugin.Controller() == nil {
		sb.WriteString(dimStyle.Render("  not initialized"))
	} else {
		ctl := m.plugin.Controller()
		for i, line := range strings.Split(mappingTableString(ctl.MappingRows()), "\n") {
			if i == 0 {
				sb.WriteString(labelStyle.Render(line))
			} else {
				sb.WriteString(line)
			}
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "\n%s %d", labelStyle.Render("generation:"), ctl.Generation())
	}

	return mapStyle.Width(width).Height(height).Render(sb.String())
}

// renderBatchPanel renders the pending batch with its dependency layers.
func (m Model) renderBatchPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Pending Batch"))
	sb.WriteString("\n\n")

	if m.plugin == nil || m.plugin.Controller() == nil || m.plugin.Controller().BatchLen() == 0 {
		sb.WriteString(dimStyle.Render("  empty"))
		return batchStyle.Width(width).Height(height).Render(sb.String())
	}

	batch := m.plugin.Controller().Batch()
	dag := NewBatchDAG(batch)
	for depth, layer := range dag.Layers() {
		fmt.Fprintf(&sb, "%s", labelStyle.Render(fmt.Sprintf("layer %d", depth)))
		sb.WriteString("\n")
		for _, idx := range layer {
			sb.WriteString("  " + batch[idx].String() + "\n")
		}
	}

	return batchStyle.Width(width).Height(height).Render(sb.String())
}

// renderEmittedPanel renders the gates the downstream backend has received,
// newest last, plus any measurement results returned upstream.
func (m Model) renderEmittedPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Downstream"))
	sb.WriteString("\n\n")

	history := m.backend.History
	visible := max(height-6, 1)
	start := max(len(history)-visible, 0)
	if start > 0 {
		fmt.Fprintf(&sb, "%s\n", dimStyle.Render(fmt.Sprintf("  … %d earlier", start)))
	}
	for _, g := range history[start:] {
		sb.WriteString("  " + gateText(g) + "\n")
	}
	if len(history) == 0 {
		sb.WriteString(dimStyle.Render("  nothing emitted yet"))
		sb.WriteString("\n")
	}

	if len(m.measurements) > 0 {
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render("results"))
		sb.WriteString(" ")
		parts := make([]string, len(m.measurements))
		for i, meas := range m.measurements {
			parts[i] = fmt.Sprintf("q%d=%d", meas.Qubit, meas.Value)
		}
		sb.WriteString(strings.Join(parts, " "))
	}

	return emittedStyle.Width(width).Height(height).Render(sb.String())
}

// renderEditorPanel renders the program editor in place of the stream view.
func (m Model) renderEditorPanel(width, height int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Edit Program"))
	sb.WriteString("\n\n")
	sb.WriteString(m.editor.View())
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("Esc applies and restarts"))
	return streamStyle.Width(width).Height(height).Render(sb.String())
}

// renderControlsPanel renders the bottom help bar and status line.
func (m Model) renderControlsPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(labelStyle.Render("Keys: "))
	sb.WriteString("Space/n Next event  f Flush  e Edit program  r Restart  q/^C Quit")
	if m.statusMsg != "" {
		sb.WriteString("\n")
		if m.statusErr {
			sb.WriteString(errStyle.Render(m.statusMsg))
		} else {
			sb.WriteString(cursorStyle.Render(m.statusMsg))
		}
	}

	return controlsStyle.Width(width).Height(height).Render(sb.String())
}
