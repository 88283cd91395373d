package mines

import (
	"fmt"
	"strconv"
	"strings"
)

type MoveType byte

const (
	Reveal MoveType = 0x01
	Flag   MoveType = 0x02
)

type Move struct {
	X    int
	Y    int
	Type MoveType
}

func (move Move) String() string {
	msg := fmt.Sprintf("(%d, %d) ", move.X, move.Y)
	switch move.Type {
	case Reveal:
		return msg + "Reveal"
	case Flag:
		return msg + "Flag"
	default:
		return msg + "UNKNOWN"
	}
}

// ParseMove reads a "x y" reveal or "x y f" flag command.
func ParseMove(text string) (Move, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || len(fields) > 3 {
		return Move{}, fmt.Errorf("Incorrect input %q, expected \"x y [f]\"", strings.TrimSpace(text))
	}
	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return Move{}, fmt.Errorf("Incorrect x coordinate %q", fields[0])
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return Move{}, fmt.Errorf("Incorrect y coordinate %q", fields[1])
	}
	if len(fields) == 3 && strings.EqualFold(fields[2], "f") {
		return Move{X: x, Y: y, Type: Flag}, nil
	}
	return Move{X: x, Y: y, Type: Reveal}, nil
}

// Values of UpdatedCell. Counts 0-8 are sent as is.
const (
	ShowCount byte = 0x00
	ShowMine  byte = 0x10
	ShowFlag  byte = 0x20
	Unflag    byte = 0x30
)

type UpdatedCell struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Value byte `json:"value"`
}

func cellValue(cell *Cell) byte {
	switch {
	case cell.Revealed && cell.Mine:
		return ShowMine
	case cell.Revealed:
		return ShowCount + byte(cell.AdjacentMines)
	case cell.Flagged:
		return ShowFlag
	default:
		// Is not flagged nor revealed so it must be unflag
		return Unflag
	}
}

func CreateUpdatedCells(cells []*Cell) []UpdatedCell {
	updates := make([]UpdatedCell, len(cells))
	for i, cell := range cells {
		updates[i] = UpdatedCell{X: cell.X, Y: cell.Y, Value: cellValue(cell)}
	}
	return updates
}

func (game *Game) CellUpdate(x, y int) (UpdatedCell, bool) {
	cell, ok := game.Cell(x, y)
	if !ok {
		return UpdatedCell{}, false
	}
	return UpdatedCell{X: x, Y: y, Value: cellValue(cell)}, true
}

// MineUpdates shows every mine on the board, used once a game is lost.
func (game *Game) MineUpdates() []UpdatedCell {
	updates := make([]UpdatedCell, len(game.Board.MineLocations))
	for i, p := range game.Board.MineLocations {
		updates[i] = UpdatedCell{X: p.X, Y: p.Y, Value: ShowMine}
	}
	return updates
}

// CreateCellUpdates lists every revealed or flagged cell, enough to draw
// the board from scratch. After a loss every mine is listed as well.
func (game *Game) CreateCellUpdates() []UpdatedCell {
	updates := []UpdatedCell{}
	board := game.Board
	for y := 0; y < board.Size; y++ {
		for x := 0; x < board.Size; x++ {
			cell := board.Cells[x][y]
			switch {
			case game.exploded && cell.Mine:
				updates = append(updates, UpdatedCell{X: x, Y: y, Value: ShowMine})
			case cell.Revealed || cell.Flagged:
				updates = append(updates, UpdatedCell{X: x, Y: y, Value: cellValue(cell)})
			}
		}
	}
	return updates
}

func (game *Game) String() string {
	var b strings.Builder
	board := game.Board
	b.WriteString("X")
	for i := 0; i < board.Size; i++ {
		b.WriteString(strconv.Itoa(i % 10))
	}
	b.WriteString("\n")
	for y := 0; y < board.Size; y++ {
		b.WriteString(strconv.Itoa(y % 10))
		for x := 0; x < board.Size; x++ {
			cell := board.Cells[x][y]
			switch {
			case cell.Revealed && cell.Mine:
				b.WriteString("*")
			case cell.Revealed:
				b.WriteString(strconv.Itoa(cell.AdjacentMines))
			case cell.Flagged:
				b.WriteString("F")
			default:
				b.WriteString("#")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
