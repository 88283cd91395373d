package replay_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
	"github.com/tomasstrnad1997/sweeper/replay"
)

type recordingRenderer struct {
	steps   []replay.Step
	outcome history.Outcome
	ended   bool
}

func (r *recordingRenderer) RenderStep(step replay.Step) error {
	r.steps = append(r.steps, step)
	return nil
}

func (r *recordingRenderer) RenderEnd(outcome history.Outcome) error {
	r.outcome = outcome
	r.ended = true
	return nil
}

func newRecord(size int, layout []mines.Position, outcome history.Outcome) *history.GameRecord {
	return &history.GameRecord{
		GameSummary: history.GameSummary{
			ID:         7,
			PlayerName: "John",
			Width:      size,
			Height:     size,
			MinesCount: len(layout),
			Outcome:    outcome,
		},
		MinePositions: layout,
		LayoutDigest:  history.LayoutDigest(size, size, layout),
	}
}

func TestReplayScenario(t *testing.T) {
	record := newRecord(3, []mines.Position{{X: 0, Y: 0}}, history.InProgress)
	moves := []history.Move{{GameID: 7, MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe}}
	r, err := replay.New(record, moves)
	if err != nil {
		t.Fatalf("Failed to create replayer: %v", err)
	}
	steps, err := r.RunAll()
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(steps) != 1 || steps[0].Result.Result != mines.Safe {
		t.Fatalf("Expected one safe step, got %+v", steps)
	}
	if steps[0].Updates[0] != (mines.UpdatedCell{X: 1, Y: 1, Value: 1}) {
		t.Fatalf("Expected (1, 1) to show 1, got %+v", steps[0].Updates[0])
	}
	if r.Outcome() != history.InProgress {
		t.Fatalf("Expected in progress, got %s", r.Outcome())
	}
}

func TestReplayBlankCornerWins(t *testing.T) {
	record := newRecord(3, []mines.Position{{X: 0, Y: 0}}, history.Won)
	moves := []history.Move{{GameID: 7, MoveNumber: 1, X: 2, Y: 2, Result: mines.Win}}
	r, err := replay.New(record, moves)
	if err != nil {
		t.Fatalf("Failed to create replayer: %v", err)
	}
	steps, err := r.RunAll()
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(steps[0].Updates) != 8 {
		t.Fatalf("Expected 8 updated cells, got %d", len(steps[0].Updates))
	}
	if r.Outcome() != history.Won {
		t.Fatalf("Expected win, got %s", r.Outcome())
	}
}

// Play a random game, record it, and check the replay reproduces it.
func TestReplayReproducesRecordedGame(t *testing.T) {
	for seed := int64(0); seed < 15; seed++ {
		game, err := mines.CreateGameWithSource(8, 10, rand.NewSource(seed))
		if err != nil {
			t.Fatalf("Failed to create game: %v", err)
		}
		picker := rand.New(rand.NewSource(seed + 100))
		var moves []history.Move
		for !game.GameOver {
			x, y := picker.Intn(8), picker.Intn(8)
			result := game.Reveal(x, y)
			if result.Result == mines.NoChange {
				continue
			}
			moves = append(moves, history.Move{GameID: 7, MoveNumber: len(moves) + 1, X: x, Y: y, Result: result.Result})
		}
		final := history.OutcomeFor(moves[len(moves)-1].Result)
		record := newRecord(8, game.MineLocations(), final)

		r, err := replay.New(record, moves)
		if err != nil {
			t.Fatalf("Failed to create replayer: %v", err)
		}
		steps, err := r.RunAll()
		if err != nil {
			t.Fatalf("Replay failed for seed %d: %v", seed, err)
		}
		if len(steps) != len(moves) {
			t.Fatalf("Replayed %d of %d moves", len(steps), len(moves))
		}
		if r.Outcome() != final {
			t.Fatalf("Replay outcome %s, expected %s", r.Outcome(), final)
		}
		if r.Game().CellsRevealed != game.CellsRevealed {
			t.Fatalf("Replay revealed %d cells, original %d", r.Game().CellsRevealed, game.CellsRevealed)
		}
	}
}

func TestReplayDetectsCorruptedMove(t *testing.T) {
	record := newRecord(3, []mines.Position{{X: 0, Y: 0}}, history.Lost)
	moves := []history.Move{
		{MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe},
		{MoveNumber: 2, X: 2, Y: 1, Result: mines.Exploded},
	}
	r, err := replay.New(record, moves)
	if err != nil {
		t.Fatalf("Failed to create replayer: %v", err)
	}
	if _, err := r.Step(); err != nil {
		t.Fatalf("First step failed: %v", err)
	}
	_, err = r.Step()
	var integrity *replay.IntegrityError
	if !errors.As(err, &integrity) || integrity.MoveNumber != 2 {
		t.Fatalf("Expected integrity error on move 2, got %v", err)
	}
	if !errors.Is(err, replay.ErrDataIntegrity) {
		t.Fatalf("Expected ErrDataIntegrity, got %v", err)
	}
	if !r.Done() {
		t.Fatalf("Replay should stop after an integrity error")
	}
	if _, again := r.Step(); !errors.Is(again, replay.ErrDataIntegrity) {
		t.Fatalf("Expected the integrity error to stick, got %v", again)
	}
}

func TestReplayRejectsBadRecords(t *testing.T) {
	layout := []mines.Position{{X: 0, Y: 0}}
	cases := map[string]func() (*history.GameRecord, []history.Move){
		"nil record": func() (*history.GameRecord, []history.Move) { return nil, nil },
		"missing layout": func() (*history.GameRecord, []history.Move) {
			r := newRecord(3, layout, history.InProgress)
			r.MinePositions = nil
			r.LayoutDigest = ""
			return r, nil
		},
		"count mismatch": func() (*history.GameRecord, []history.Move) {
			r := newRecord(3, layout, history.InProgress)
			r.MinesCount = 2
			return r, nil
		},
		"digest mismatch": func() (*history.GameRecord, []history.Move) {
			r := newRecord(3, layout, history.InProgress)
			r.MinePositions = []mines.Position{{X: 1, Y: 1}}
			return r, nil
		},
		"not square": func() (*history.GameRecord, []history.Move) {
			r := newRecord(3, layout, history.InProgress)
			r.Height = 4
			r.LayoutDigest = ""
			return r, nil
		},
		"mine out of range": func() (*history.GameRecord, []history.Move) {
			r := newRecord(3, []mines.Position{{X: 5, Y: 0}}, history.InProgress)
			return r, nil
		},
		"moves out of order": func() (*history.GameRecord, []history.Move) {
			return newRecord(3, layout, history.InProgress), []history.Move{
				{MoveNumber: 2, X: 2, Y: 2, Result: mines.Safe},
				{MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe},
			}
		},
	}
	for name, build := range cases {
		record, moves := build()
		if _, err := replay.New(record, moves); !errors.Is(err, replay.ErrDataIntegrity) {
			t.Fatalf("%s: expected ErrDataIntegrity, got %v", name, err)
		}
	}
}

func TestReplayOutcomeMismatch(t *testing.T) {
	record := newRecord(3, []mines.Position{{X: 0, Y: 0}}, history.Won)
	moves := []history.Move{{MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe}}
	r, err := replay.New(record, moves)
	if err != nil {
		t.Fatalf("Failed to create replayer: %v", err)
	}
	if _, err := r.RunAll(); !errors.Is(err, replay.ErrDataIntegrity) {
		t.Fatalf("Expected outcome mismatch to be reported, got %v", err)
	}
}

func TestPlayRendersEveryStep(t *testing.T) {
	record := newRecord(3, []mines.Position{{X: 0, Y: 0}}, history.Won)
	moves := []history.Move{
		{MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe},
		{MoveNumber: 2, X: 1, Y: 0, Result: mines.Safe},
		{MoveNumber: 3, X: 2, Y: 2, Result: mines.Win},
	}
	r, err := replay.New(record, moves)
	if err != nil {
		t.Fatalf("Failed to create replayer: %v", err)
	}
	renderer := &recordingRenderer{}
	if err := replay.Play(context.Background(), r, time.Millisecond, renderer); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(renderer.steps) != 3 {
		t.Fatalf("Rendered %d steps, expected 3", len(renderer.steps))
	}
	if !renderer.ended || renderer.outcome != history.Won {
		t.Fatalf("Expected replay to end with a win, got %q", renderer.outcome)
	}
}

func TestPlayStopsOnCancel(t *testing.T) {
	record := newRecord(3, []mines.Position{{X: 0, Y: 0}}, history.InProgress)
	moves := []history.Move{{MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe}}
	r, err := replay.New(record, moves)
	if err != nil {
		t.Fatalf("Failed to create replayer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	renderer := &recordingRenderer{}
	if err := replay.Play(ctx, r, time.Hour, renderer); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(renderer.steps) != 0 || renderer.ended {
		t.Fatalf("Cancelled replay still rendered")
	}
}

func TestReplayAppliesFlags(t *testing.T) {
	record := newRecord(3, nil, history.Won)
	moves := []history.Move{
		{GameID: 7, MoveNumber: 1, X: 2, Y: 2, Result: mines.Flagged},
		{GameID: 7, MoveNumber: 2, X: 0, Y: 0, Result: mines.Safe},
		{GameID: 7, MoveNumber: 3, X: 2, Y: 2, Result: mines.Unflagged},
		{GameID: 7, MoveNumber: 4, X: 2, Y: 2, Result: mines.Win},
	}
	r, err := replay.New(record, moves)
	if err != nil {
		t.Fatalf("Failed to create replayer: %v", err)
	}
	steps, err := r.RunAll()
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if steps[0].Updates[0] != (mines.UpdatedCell{X: 2, Y: 2, Value: mines.ShowFlag}) {
		t.Fatalf("Expected flag update, got %+v", steps[0].Updates)
	}
	if len(steps[1].Updates) != 8 {
		t.Fatalf("Flag should hold back one cell, got %d updates", len(steps[1].Updates))
	}
	if steps[2].Updates[0].Value != mines.Unflag {
		t.Fatalf("Expected unflag update, got %+v", steps[2].Updates)
	}
	if r.Outcome() != history.Won {
		t.Fatalf("Expected won, got %s", r.Outcome())
	}
}

func TestReplayRejectsBadFlags(t *testing.T) {
	logs := [][]history.Move{
		// the cell is already revealed
		{
			{GameID: 7, MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe},
			{GameID: 7, MoveNumber: 2, X: 1, Y: 1, Result: mines.Flagged},
		},
		// unflag of a cell that was never flagged
		{{GameID: 7, MoveNumber: 1, X: 2, Y: 2, Result: mines.Unflagged}},
	}
	for _, moves := range logs {
		r, err := replay.New(newRecord(3, []mines.Position{{X: 0, Y: 0}}, history.InProgress), moves)
		if err != nil {
			t.Fatalf("Failed to create replayer: %v", err)
		}
		if _, err := r.RunAll(); !errors.Is(err, replay.ErrDataIntegrity) {
			t.Fatalf("Expected integrity error for %+v, got %v", moves, err)
		}
	}
}

func TestReplayLossShowsEveryMine(t *testing.T) {
	layout := []mines.Position{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}
	record := newRecord(3, layout, history.Lost)
	moves := []history.Move{
		{GameID: 7, MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe},
		{GameID: 7, MoveNumber: 2, X: 2, Y: 2, Result: mines.Flagged},
		{GameID: 7, MoveNumber: 3, X: 0, Y: 2, Result: mines.Exploded},
	}
	r, err := replay.New(record, moves)
	if err != nil {
		t.Fatalf("Failed to create replayer: %v", err)
	}
	renderer := &recordingRenderer{}
	if err := replay.Play(context.Background(), r, time.Millisecond, renderer); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	last := renderer.steps[len(renderer.steps)-1]
	if len(last.Updates) != len(layout) {
		t.Fatalf("Expected every mine on the losing step, got %+v", last.Updates)
	}
	for i, u := range last.Updates {
		if u != (mines.UpdatedCell{X: layout[i].X, Y: layout[i].Y, Value: mines.ShowMine}) {
			t.Fatalf("Unexpected update %+v", u)
		}
	}
	if renderer.outcome != history.Lost {
		t.Fatalf("Expected lost, got %s", renderer.outcome)
	}
}
