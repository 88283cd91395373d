package mines

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Cell struct {
	Mine          bool
	Revealed      bool
	Flagged       bool
	AdjacentMines int
	X             int
	Y             int
}

func (c *Cell) Position() Position {
	return Position{c.X, c.Y}
}

// BoardMode tells whether mines have been placed on a board.
type BoardMode int

const (
	Unseeded BoardMode = iota
	Seeded
)

type Board struct {
	Size          int
	Mines         int
	Cells         [][]*Cell
	Mode          BoardMode
	MineLocations []Position
}

// Game wraps a board with the state of one play-through.
type Game struct {
	Board         *Board
	GameOver      bool
	CellsRevealed int
	exploded      bool
	rng           *rand.Rand
}

type MoveResultType int

const (
	NoChange MoveResultType = iota
	Safe
	Exploded
	Win
	// Flagged and Unflagged describe flag toggles in a move log.
	Flagged
	Unflagged
)

func (r MoveResultType) String() string {
	switch r {
	case NoChange:
		return "no_change"
	case Safe:
		return "safe"
	case Exploded:
		return "exploded"
	case Win:
		return "win"
	case Flagged:
		return "flag"
	case Unflagged:
		return "unflag"
	default:
		return fmt.Sprintf("MoveResultType(%d)", int(r))
	}
}

// ParseMoveResult accepts the engine names as well as the "won"/"lost"
// spelling used by the REST history.
func ParseMoveResult(s string) (MoveResultType, error) {
	switch s {
	case "no_change":
		return NoChange, nil
	case "safe":
		return Safe, nil
	case "exploded", "lost":
		return Exploded, nil
	case "win", "won":
		return Win, nil
	case "flag":
		return Flagged, nil
	case "unflag":
		return Unflagged, nil
	default:
		return NoChange, fmt.Errorf("unknown move result %q", s)
	}
}

func (r MoveResultType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *MoveResultType) UnmarshalText(text []byte) error {
	parsed, err := ParseMoveResult(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type MoveResult struct {
	Result        MoveResultType
	RevealedCells []*Cell
}

var ErrInvalidConfiguration = errors.New("invalid board configuration")

type InvalidBoardParamsError struct {
	size  int
	mines int
	pos   *Position
	dup   bool
}

func (e *InvalidBoardParamsError) Error() string {
	switch {
	case e.size <= 0:
		return fmt.Sprintf("Cannot create a board with size: %d", e.size)
	case e.mines < 0:
		return fmt.Sprintf("Cannot create a board with negative amount of mines: %d", e.mines)
	case e.mines >= e.size*e.size:
		return fmt.Sprintf("Not enough space for %d mines. (%d >= %d * %d)", e.mines, e.mines, e.size, e.size)
	case e.pos != nil && e.dup:
		return fmt.Sprintf("Mine at (%d, %d) listed more than once", e.pos.X, e.pos.Y)
	case e.pos != nil:
		return fmt.Sprintf("Mine at (%d, %d) is outside of a %dx%d board", e.pos.X, e.pos.Y, e.size, e.size)
	default:
		return "Cannot construct board: unknown error"
	}
}

func (e *InvalidBoardParamsError) Unwrap() error {
	return ErrInvalidConfiguration
}

func validateParams(size, mines int) error {
	if size <= 0 || mines < 0 || mines >= size*size {
		return &InvalidBoardParamsError{size: size, mines: mines}
	}
	return nil
}

func newBoard(size, mines int) *Board {
	cells := make([][]*Cell, size)
	for x := range cells {
		cells[x] = make([]*Cell, size)
		for y := 0; y < size; y++ {
			cells[x][y] = &Cell{X: x, Y: y}
		}
	}
	return &Board{Size: size, Mines: mines, Cells: cells, Mode: Unseeded}
}

func CreateGame(size, mines int) (*Game, error) {
	return CreateGameWithSource(size, mines, rand.NewSource(time.Now().UnixNano()))
}

// CreateGameWithSource is CreateGame with a caller supplied random source,
// mines are drawn from src on the first reveal.
func CreateGameWithSource(size, mines int, src rand.Source) (*Game, error) {
	if err := validateParams(size, mines); err != nil {
		return nil, err
	}
	return &Game{Board: newBoard(size, mines), rng: rand.New(src)}, nil
}

// Reconstruct rebuilds a seeded game from a known mine layout. The board
// never goes through deferred placement.
func Reconstruct(size int, layout []Position) (*Game, error) {
	if err := validateParams(size, len(layout)); err != nil {
		return nil, err
	}
	board := newBoard(size, len(layout))
	for _, p := range layout {
		if !board.ValidCellIndex(p.X, p.Y) {
			return nil, &InvalidBoardParamsError{size: size, mines: len(layout), pos: &p}
		}
		cell := board.Cells[p.X][p.Y]
		if cell.Mine {
			return nil, &InvalidBoardParamsError{size: size, mines: len(layout), pos: &p, dup: true}
		}
		cell.Mine = true
	}
	board.MineLocations = append([]Position(nil), layout...)
	board.Mode = Seeded
	board.calculateAdjacentMines()
	return &Game{Board: board}, nil
}

func (board *Board) ValidCellIndex(x, y int) bool {
	return !(x < 0 || x >= board.Size || y < 0 || y >= board.Size)
}

func (board *Board) GetNeighbouringCells(cell *Cell) []*Cell {
	cells := make([]*Cell, 0, 8)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			x := cell.X + dx
			y := cell.Y + dy
			if board.ValidCellIndex(x, y) {
				cells = append(cells, board.Cells[x][y])
			}
		}
	}
	return cells
}

func (board *Board) GetNumberOfMines(cell *Cell) int {
	mines := 0
	for _, n := range board.GetNeighbouringCells(cell) {
		if n.Mine {
			mines++
		}
	}
	return mines
}

// placeMines puts board.Mines mines on random cells other than exclude.
func (board *Board) placeMines(rng *rand.Rand, exclude Position) {
	board.MineLocations = make([]Position, 0, board.Mines)
	for placed := 0; placed < board.Mines; {
		x := rng.Intn(board.Size)
		y := rng.Intn(board.Size)
		cell := board.Cells[x][y]
		if cell.Mine || (x == exclude.X && y == exclude.Y) {
			continue
		}
		cell.Mine = true
		board.MineLocations = append(board.MineLocations, Position{x, y})
		placed++
	}
	board.calculateAdjacentMines()
	board.Mode = Seeded
}

func (board *Board) calculateAdjacentMines() {
	for _, column := range board.Cells {
		for _, cell := range column {
			if cell.Mine {
				cell.AdjacentMines = 0
				continue
			}
			cell.AdjacentMines = board.GetNumberOfMines(cell)
		}
	}
}

func (game *Game) FirstClick() bool {
	return game.Board.Mode == Unseeded
}

func (game *Game) MineLocations() []Position {
	return append([]Position(nil), game.Board.MineLocations...)
}

func (game *Game) SafeCells() int {
	return game.Board.Size*game.Board.Size - game.Board.Mines
}

func (game *Game) Reveal(x, y int) MoveResult {
	board := game.Board
	if game.GameOver || !board.ValidCellIndex(x, y) {
		return MoveResult{Result: NoChange}
	}
	cell := board.Cells[x][y]
	if cell.Revealed || cell.Flagged {
		return MoveResult{Result: NoChange}
	}
	if board.Mode == Unseeded {
		board.placeMines(game.rng, Position{x, y})
	}

	cell.Revealed = true
	if cell.Mine {
		game.GameOver = true
		game.exploded = true
		return MoveResult{Result: Exploded, RevealedCells: []*Cell{cell}}
	}
	game.CellsRevealed++
	revealed := []*Cell{cell}
	if cell.AdjacentMines == 0 {
		revealed = game.cascade(cell, revealed)
	}

	if game.CellsRevealed == game.SafeCells() {
		game.GameOver = true
		return MoveResult{Result: Win, RevealedCells: revealed}
	}
	return MoveResult{Result: Safe, RevealedCells: revealed}
}

// cascade opens the blank region around start and its numbered border.
// Revealed doubles as the visited marker, so every cell is opened once.
func (game *Game) cascade(start *Cell, revealed []*Cell) []*Cell {
	queue := []*Cell{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, n := range game.Board.GetNeighbouringCells(current) {
			if n.Revealed || n.Flagged || n.Mine {
				continue
			}
			n.Revealed = true
			game.CellsRevealed++
			revealed = append(revealed, n)
			if n.AdjacentMines == 0 {
				queue = append(queue, n)
			}
		}
	}
	return revealed
}

// Lost reports whether a mine has been revealed.
func (game *Game) Lost() bool {
	return game.exploded
}

func (game *Game) ToggleFlag(x, y int) bool {
	if game.GameOver || !game.Board.ValidCellIndex(x, y) {
		return false
	}
	cell := game.Board.Cells[x][y]
	if cell.Revealed {
		return false
	}
	cell.Flagged = !cell.Flagged
	return true
}

func (game *Game) Cell(x, y int) (*Cell, bool) {
	if !game.Board.ValidCellIndex(x, y) {
		return nil, false
	}
	return game.Board.Cells[x][y], true
}
