package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/store"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	plotNodeStyle     = lipgloss.NewStyle().Foreground(colorWhite)
	plotNewStyle      = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
)

// =============================================================================
// RunListModel - Interactive run selection
// =============================================================================

// RunListModel is the bubbletea model for picking a stored run.
type RunListModel struct {
	Runs     []store.Summary
	Cursor   int
	Selected *store.Summary
	Height   int
	Offset   int
}

// NewRunListModel creates a new run list model.
func NewRunListModel(runs []store.Summary) RunListModel {
	return RunListModel{Runs: runs, Height: 15}
}

func (m RunListModel) Init() tea.Cmd {
	return nil
}

func (m RunListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Runs)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Runs) == 0 {
				return m, nil
			}
			run := m.Runs[m.Cursor]
			m.Selected = &run
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m RunListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Run"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ open  q quit"))
	b.WriteString("\n\n")

	if len(m.Runs) == 0 {
		b.WriteString(listDimStyle.Render("  no stored runs"))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Runs))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Runs[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, r.ID, r.Mode, fmt.Sprintf("%d", r.Frames), formatRelativeTime(r.CreatedAt, time.Now())})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Run", "Mode", "Frames", "Created").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
			}
			if col >= 3 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Runs))))
	return b.String()
}

// =============================================================================
// FrameBrowserModel - Stepping through a timeline
// =============================================================================

// FrameBrowserModel shows one frame of a stored run at a time: a scatter
// plot of node positions and the frame's solver statistics. All frames
// share one coordinate box so motion between frames is visible.
type FrameBrowserModel struct {
	Run    *store.Run
	Frame  int
	Width  int // plot columns
	Height int // plot rows

	box  plotBox
	news [][]bool // per frame, per node: absent from the frame before
}

// NewFrameBrowserModel creates a browser positioned on the first frame.
func NewFrameBrowserModel(run *store.Run) FrameBrowserModel {
	m := FrameBrowserModel{Run: run, Width: 60, Height: 20}
	m.box = boxOf(run.Frames)
	m.news = make([][]bool, len(run.Frames))
	for i, f := range run.Frames {
		m.news[i] = make([]bool, len(f.Snapshot.Nodes))
		if i == 0 {
			continue
		}
		seen := make(map[string]bool, len(run.Frames[i-1].Snapshot.Nodes))
		for _, n := range run.Frames[i-1].Snapshot.Nodes {
			seen[n.ID] = true
		}
		for j, n := range f.Snapshot.Nodes {
			m.news[i][j] = !seen[n.ID]
		}
	}
	return m
}

func (m FrameBrowserModel) Init() tea.Cmd {
	return nil
}

func (m FrameBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h", "p":
			if m.Frame > 0 {
				m.Frame--
			}
		case "right", "l", "n", " ":
			if m.Frame < len(m.Run.Frames)-1 {
				m.Frame++
			}
		case "home", "g":
			m.Frame = 0
		case "end", "G":
			m.Frame = max(len(m.Run.Frames)-1, 0)
		}
	case tea.WindowSizeMsg:
		m.Width = max(msg.Width-36, 20)
		m.Height = max(msg.Height-8, 8)
	}
	return m, nil
}

func (m FrameBrowserModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Run " + m.Run.ID))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("←/→ frame  g/G first/last  q quit"))
	b.WriteString("\n\n")

	if len(m.Run.Frames) == 0 {
		b.WriteString(listDimStyle.Render("  run has no frames"))
		return b.String()
	}

	f := m.Run.Frames[m.Frame]
	plot := renderScatter(f.Snapshot, m.news[m.Frame], m.box, m.Width, m.Height)
	plot = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorDim).
		Render(plot)

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, plot, "  ", frameTable(f)))
	b.WriteString("\n")
	b.WriteString(listSelectedStyle.Render(fmt.Sprintf("  frame %d/%d", m.Frame+1, len(m.Run.Frames))))
	if f.Snapshot.Label != "" {
		b.WriteString(listDimStyle.Render("  " + f.Snapshot.Label))
	}
	return b.String()
}

// frameTable renders the statistics of f as a two-column table.
func frameTable(f store.Frame) string {
	st := f.Stats
	cached := "no"
	if st.CacheHit {
		cached = "yes"
	}
	rows := [][]string{
		{"nodes", fmt.Sprintf("%d", len(f.Snapshot.Nodes))},
		{"edges", fmt.Sprintf("%d", len(f.Snapshot.Edges))},
		{"iterations", fmt.Sprintf("%d", st.Iterations)},
		{"rebuilds", fmt.Sprintf("%d", st.Rebuilds)},
		{"levels", fmt.Sprintf("%d", st.Levels)},
		{"new nodes", fmt.Sprintf("%d", st.NewNodes)},
		{"removed edges", fmt.Sprintf("%d", st.RemovedEdges)},
		{"movable", fmt.Sprintf("%d", st.Movable)},
		{"displacement", fmt.Sprintf("%.2f", st.Displacement)},
		{"duration", (time.Duration(st.DurationMS) * time.Millisecond).String()},
		{"cached", cached},
	}
	keyStyle := lipgloss.NewStyle().Foreground(colorGray)
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return keyStyle
			}
			return StyleNumber
		}).
		Render()
}

// =============================================================================
// Scatter Plot
// =============================================================================

type plotBox struct {
	minX, minY, maxX, maxY float64
}

// boxOf returns the bounding box of every positioned node in frames.
func boxOf(frames []store.Frame) plotBox {
	b := plotBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, f := range frames {
		for _, n := range f.Snapshot.Nodes {
			if n.X == nil || n.Y == nil {
				continue
			}
			b.minX, b.maxX = min(b.minX, *n.X), max(b.maxX, *n.X)
			b.minY, b.maxY = min(b.minY, *n.Y), max(b.maxY, *n.Y)
		}
	}
	if math.IsInf(b.minX, 1) {
		return plotBox{-1, -1, 1, 1}
	}
	return b
}

// cell maps a coordinate to a plot cell. Y grows upwards.
func (b plotBox) cell(x, y float64, w, h int) (col, row int) {
	span := func(lo, hi float64) float64 {
		if hi-lo == 0 {
			return 1
		}
		return hi - lo
	}
	col = int(math.Round((x - b.minX) / span(b.minX, b.maxX) * float64(w-1)))
	row = int(math.Round((b.maxY - y) / span(b.minY, b.maxY) * float64(h-1)))
	return min(max(col, 0), w-1), min(max(row, 0), h-1)
}

// renderScatter draws the positioned nodes of snap into a w×h character
// grid. Nodes flagged in isNew are drawn in the highlight style; a cell
// holding a new node stays highlighted.
func renderScatter(snap graph.Snapshot, isNew []bool, box plotBox, w, h int) string {
	const (
		empty = iota
		node
		fresh
	)
	grid := make([][]int, h)
	for i := range grid {
		grid[i] = make([]int, w)
	}
	for i, n := range snap.Nodes {
		if n.X == nil || n.Y == nil {
			continue
		}
		c, r := box.cell(*n.X, *n.Y, w, h)
		if i < len(isNew) && isNew[i] {
			grid[r][c] = fresh
		} else if grid[r][c] == empty {
			grid[r][c] = node
		}
	}

	var b strings.Builder
	for r, line := range grid {
		for _, v := range line {
			switch v {
			case node:
				b.WriteString(plotNodeStyle.Render("●"))
			case fresh:
				b.WriteString(plotNewStyle.Render("◆"))
			default:
				b.WriteString(listDimStyle.Render("·"))
			}
		}
		if r < len(grid)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
