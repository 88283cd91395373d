// Package replay re-applies a recorded move log to a board rebuilt from the
// stored mine layout.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
)

var (
	ErrDataIntegrity = errors.New("replay data integrity violation")
	ErrFinished      = errors.New("replay finished")
)

type IntegrityError struct {
	GameID     int64
	MoveNumber int
	Reason     string
}

func (e *IntegrityError) Error() string {
	if e.MoveNumber > 0 {
		return fmt.Sprintf("game %d move %d: %s", e.GameID, e.MoveNumber, e.Reason)
	}
	return fmt.Sprintf("game %d: %s", e.GameID, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

type Step struct {
	Move    history.Move
	Result  mines.MoveResult
	Updates []mines.UpdatedCell
}

type Renderer interface {
	RenderStep(step Step) error
	RenderEnd(outcome history.Outcome) error
}

type Replayer struct {
	record *history.GameRecord
	moves  []history.Move
	game   *mines.Game
	next   int
	last   mines.MoveResultType
	err    error
}

func New(record *history.GameRecord, moves []history.Move) (*Replayer, error) {
	if record == nil {
		return nil, &IntegrityError{Reason: "missing game record"}
	}
	fail := func(format string, args ...any) (*Replayer, error) {
		return nil, &IntegrityError{GameID: record.ID, Reason: fmt.Sprintf(format, args...)}
	}
	if record.Width != record.Height {
		return fail("board %dx%d is not square", record.Width, record.Height)
	}
	if record.MinesCount > 0 && len(record.MinePositions) == 0 {
		return fail("mine layout is missing")
	}
	if len(record.MinePositions) != record.MinesCount {
		return fail("layout has %d mines, record says %d", len(record.MinePositions), record.MinesCount)
	}
	if record.LayoutDigest != "" && record.LayoutDigest != history.LayoutDigest(record.Width, record.Height, record.MinePositions) {
		return fail("mine layout does not match its digest")
	}
	game, err := mines.Reconstruct(record.Width, record.MinePositions)
	if err != nil {
		return fail("invalid mine layout: %v", err)
	}
	for i := 1; i < len(moves); i++ {
		if moves[i].MoveNumber <= moves[i-1].MoveNumber {
			return nil, &IntegrityError{
				GameID:     record.ID,
				MoveNumber: moves[i].MoveNumber,
				Reason:     fmt.Sprintf("move follows move %d out of order", moves[i-1].MoveNumber),
			}
		}
	}
	return &Replayer{record: record, moves: moves, game: game, last: mines.NoChange}, nil
}

func (r *Replayer) Game() *mines.Game {
	return r.game
}

func (r *Replayer) Record() *history.GameRecord {
	return r.record
}

func (r *Replayer) Len() int {
	return len(r.moves)
}

func (r *Replayer) Done() bool {
	return r.err != nil || r.next >= len(r.moves)
}

// Outcome is the outcome of the last applied move.
func (r *Replayer) Outcome() history.Outcome {
	return history.OutcomeFor(r.last)
}

// Step applies the next recorded move. A move whose recorded result is not
// reproduced stops the replay for good. A losing step shows every mine.
func (r *Replayer) Step() (*Step, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.next >= len(r.moves) {
		return nil, ErrFinished
	}
	move := r.moves[r.next]
	if move.Result == mines.Flagged || move.Result == mines.Unflagged {
		return r.flag(move)
	}
	result := r.game.Reveal(move.X, move.Y)
	if result.Result != move.Result {
		return nil, r.fail(move, fmt.Sprintf("reveal (%d, %d) gave %s, recorded %s", move.X, move.Y, result.Result, move.Result))
	}
	r.next++
	if result.Result != mines.NoChange {
		r.last = result.Result
	}
	updates := mines.CreateUpdatedCells(result.RevealedCells)
	if result.Result == mines.Exploded {
		updates = r.game.MineUpdates()
	}
	return &Step{Move: move, Result: result, Updates: updates}, nil
}

// flag replays a flag toggle; the cell has to end up in the recorded state.
func (r *Replayer) flag(move history.Move) (*Step, error) {
	if !r.game.ToggleFlag(move.X, move.Y) {
		return nil, r.fail(move, fmt.Sprintf("cannot toggle flag at (%d, %d)", move.X, move.Y))
	}
	update, _ := r.game.CellUpdate(move.X, move.Y)
	if (update.Value == mines.ShowFlag) != (move.Result == mines.Flagged) {
		return nil, r.fail(move, fmt.Sprintf("toggle at (%d, %d) does not give recorded %s", move.X, move.Y, move.Result))
	}
	r.next++
	return &Step{
		Move:    move,
		Result:  mines.MoveResult{Result: move.Result},
		Updates: []mines.UpdatedCell{update},
	}, nil
}

func (r *Replayer) fail(move history.Move, reason string) error {
	r.err = &IntegrityError{GameID: r.record.ID, MoveNumber: move.MoveNumber, Reason: reason}
	return r.err
}

// RunAll replays every move without pacing.
func (r *Replayer) RunAll() ([]Step, error) {
	steps := make([]Step, 0, len(r.moves))
	for !r.Done() {
		step, err := r.Step()
		if err != nil {
			return steps, err
		}
		steps = append(steps, *step)
	}
	if r.err != nil {
		return steps, r.err
	}
	return steps, r.checkOutcome()
}

func (r *Replayer) checkOutcome() error {
	if r.record.Outcome.Terminal() && r.record.Outcome != r.Outcome() {
		r.err = &IntegrityError{
			GameID: r.record.ID,
			Reason: fmt.Sprintf("record outcome %s, replay ended %s", r.record.Outcome, r.Outcome()),
		}
		return r.err
	}
	return nil
}

// Play hands one move per interval to renderer until the log is exhausted
// or ctx is cancelled.
func Play(ctx context.Context, r *Replayer, interval time.Duration, renderer Renderer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for !r.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		step, err := r.Step()
		if err != nil {
			return err
		}
		if err := renderer.RenderStep(*step); err != nil {
			return err
		}
	}
	if r.err != nil {
		return r.err
	}
	if err := r.checkOutcome(); err != nil {
		return err
	}
	return renderer.RenderEnd(r.Outcome())
}
