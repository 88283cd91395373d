// Package render draws boards described by cell updates to a terminal.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
	"github.com/tomasstrnad1997/sweeper/replay"
)

const hidden = mines.Unflag

var countColors = []lipgloss.Color{
	"",
	"#0000FF", // blue
	"#008000", // green
	"#FF0000", // red
	"#00008B", // darkblue
	"#A52A2A", // brown
	"#008080", // teal
	"#000000", // black
	"#808080", // gray
}

type styles struct {
	hidden lipgloss.Style
	flag   lipgloss.Style
	mine   lipgloss.Style
	header lipgloss.Style
	title  lipgloss.Style
	counts []lipgloss.Style
}

// newStyles binds the palette to r so colours are only emitted when the
// output supports them.
func newStyles(r *lipgloss.Renderer) styles {
	st := styles{
		hidden: r.NewStyle().Foreground(lipgloss.Color("#808080")),
		flag:   r.NewStyle().Foreground(lipgloss.Color("#FF4500")).Bold(true),
		mine:   r.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		header: r.NewStyle().Faint(true),
		title:  r.NewStyle().Bold(true),
		counts: make([]lipgloss.Style, len(countColors)),
	}
	for i, c := range countColors {
		st.counts[i] = r.NewStyle().Foreground(c)
	}
	return st
}

// Terminal keeps the last known value of every cell and redraws the whole
// board on each step.
type Terminal struct {
	out   io.Writer
	size  int
	grid  [][]byte
	style styles
}

var _ replay.Renderer = (*Terminal)(nil)

func NewTerminal(out io.Writer, size int) *Terminal {
	grid := make([][]byte, size)
	for x := range grid {
		grid[x] = make([]byte, size)
		for y := range grid[x] {
			grid[x][y] = hidden
		}
	}
	return &Terminal{out: out, size: size, grid: grid, style: newStyles(lipgloss.NewRenderer(out))}
}

// Apply records updates; cells outside the board are ignored.
func (t *Terminal) Apply(updates []mines.UpdatedCell) {
	for _, u := range updates {
		if u.X < 0 || u.Y < 0 || u.X >= t.size || u.Y >= t.size {
			continue
		}
		t.grid[u.X][u.Y] = u.Value
	}
}

func (t *Terminal) glyph(value byte) string {
	switch {
	case value == mines.ShowMine:
		return t.style.mine.Render("*")
	case value == mines.ShowFlag:
		return t.style.flag.Render("F")
	case value == hidden:
		return t.style.hidden.Render("#")
	case value == 0:
		return "."
	case int(value) < len(countColors):
		return t.style.counts[value].Render(strconv.Itoa(int(value)))
	default:
		return "?"
	}
}

// Board renders the grid with column and row indexes.
func (t *Terminal) Board() string {
	var b strings.Builder
	header := make([]string, t.size)
	for x := range header {
		header[x] = strconv.Itoa(x % 10)
	}
	b.WriteString(t.style.header.Render("  " + strings.Join(header, " ")))
	b.WriteString("\n")
	for y := 0; y < t.size; y++ {
		b.WriteString(t.style.header.Render(strconv.Itoa(y % 10)))
		for x := 0; x < t.size; x++ {
			b.WriteString(" ")
			b.WriteString(t.glyph(t.grid[x][y]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (t *Terminal) RenderStep(step replay.Step) error {
	t.Apply(step.Updates)
	action := "reveal"
	if r := step.Result.Result; r == mines.Flagged || r == mines.Unflagged {
		action = "toggle flag"
	}
	return t.Draw(fmt.Sprintf("Move %d: %s (%d, %d) -> %s", step.Move.MoveNumber, action, step.Move.X, step.Move.Y, step.Result.Result))
}

func (t *Terminal) RenderEnd(outcome history.Outcome) error {
	var msg string
	switch outcome {
	case history.Won:
		msg = "Game won"
	case history.Lost:
		msg = "Mine exploded, game lost"
	default:
		msg = "Game did not finish"
	}
	_, err := fmt.Fprintln(t.out, t.style.title.Render(msg))
	return err
}

// Draw writes a title line followed by the board.
func (t *Terminal) Draw(title string) error {
	_, err := fmt.Fprintf(t.out, "%s\n%s", t.style.title.Render(title), t.Board())
	return err
}
