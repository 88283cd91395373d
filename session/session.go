// Package session plays one game against the engine and records it
// through a history.Store.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
)

type Session struct {
	ID         uuid.UUID
	PlayerName string

	mu     sync.Mutex
	game   *mines.Game
	store  history.Store
	gameID int64
	moves  int
	// pending holds flag toggles made before the game was recorded.
	pending []history.Move
	log     *logrus.Entry
}

type Option func(*options)

type options struct {
	src rand.Source
	log *logrus.Entry
}

func WithSource(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

type RevealResponse struct {
	Result  mines.MoveResultType
	Updates []mines.UpdatedCell
	// GameID is zero until the game has been recorded.
	GameID   int64
	GameOver bool
}

func New(store history.Store, playerName string, size, mineCount int, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = rand.NewSource(time.Now().UnixNano())
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	game, err := mines.CreateGameWithSource(size, mineCount, o.src)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	return &Session{
		ID:         id,
		PlayerName: playerName,
		game:       game,
		store:      store,
		log:        o.log.WithField("session", id.String()),
	}, nil
}

func (s *Session) Size() int {
	return s.game.Board.Size
}

func (s *Session) Mines() int {
	return s.game.Board.Mines
}

func (s *Session) GameID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID
}

func (s *Session) GameOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.GameOver
}

// Board returns every visible cell, for redrawing the board from scratch.
func (s *Session) Board() []mines.UpdatedCell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.CreateCellUpdates()
}

// Reveal applies the move to the engine first. Storage failures are logged
// and leave the move unrecorded; they never undo or block the move.
// Losing reveals carry an update for every mine on the board.
func (s *Session) Reveal(ctx context.Context, x, y int) RevealResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	firstClick := s.game.FirstClick()
	result := s.game.Reveal(x, y)
	response := RevealResponse{
		Result:   result.Result,
		Updates:  mines.CreateUpdatedCells(result.RevealedCells),
		GameOver: s.game.GameOver,
	}
	if result.Result == mines.Exploded {
		response.Updates = s.game.MineUpdates()
	}
	if result.Result == mines.NoChange {
		response.GameID = s.gameID
		return response
	}

	if firstClick {
		s.createRecord(ctx)
	}
	s.moves++
	log := s.record(ctx, history.Move{MoveNumber: s.moves, X: x, Y: y, Result: result.Result})
	if outcome := history.OutcomeFor(result.Result); outcome.Terminal() && s.gameID != 0 {
		if err := s.store.SetOutcome(ctx, s.gameID, outcome); err != nil {
			log.WithError(err).Warn("failed to record outcome")
		}
	}
	log.Debug("move applied")
	response.GameID = s.gameID
	return response
}

// record appends move to the game log, or keeps it for later while the
// board is still unseeded.
func (s *Session) record(ctx context.Context, move history.Move) *logrus.Entry {
	log := s.log.WithFields(logrus.Fields{"move": move.MoveNumber, "x": move.X, "y": move.Y, "result": move.Result.String()})
	switch {
	case s.game.FirstClick():
		s.pending = append(s.pending, move)
	case s.gameID != 0:
		if err := s.store.AppendMove(ctx, s.gameID, move.MoveNumber, move.X, move.Y, move.Result); err != nil {
			log.WithError(err).Warn("failed to record move")
		}
	}
	return log
}

func (s *Session) createRecord(ctx context.Context) {
	pending := s.pending
	s.pending = nil
	board := s.game.Board
	id, err := s.store.CreateGameRecord(ctx, s.PlayerName, board.Size, board.Mines, s.game.MineLocations())
	if err != nil {
		s.log.WithError(err).Warn("failed to record game, moves will not be saved")
		return
	}
	s.gameID = id
	s.log = s.log.WithField("game_id", id)
	s.log.Info("game recorded")
	for _, move := range pending {
		s.record(ctx, move)
	}
}

// ToggleFlag flags or unflags a hidden cell. Toggles are part of the move
// log because a flag stops the flood fill.
func (s *Session) ToggleFlag(ctx context.Context, x, y int) (bool, []mines.UpdatedCell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.game.ToggleFlag(x, y) {
		return false, nil
	}
	update, _ := s.game.CellUpdate(x, y)
	result := mines.Unflagged
	if update.Value == mines.ShowFlag {
		result = mines.Flagged
	}
	s.moves++
	s.record(ctx, history.Move{MoveNumber: s.moves, X: x, Y: y, Result: result}).Debug("flag toggled")
	return true, []mines.UpdatedCell{update}
}

// Apply dispatches a text or wire move to Reveal or ToggleFlag.
func (s *Session) Apply(ctx context.Context, move mines.Move) (RevealResponse, error) {
	switch move.Type {
	case mines.Reveal:
		return s.Reveal(ctx, move.X, move.Y), nil
	case mines.Flag:
		result := mines.NoChange
		changed, updates := s.ToggleFlag(ctx, move.X, move.Y)
		if changed && updates[0].Value == mines.ShowFlag {
			result = mines.Flagged
		} else if changed {
			result = mines.Unflagged
		}
		return RevealResponse{Result: result, Updates: updates, GameID: s.GameID(), GameOver: s.GameOver()}, nil
	default:
		return RevealResponse{}, fmt.Errorf("Invalid move type %x", move.Type)
	}
}

func (s *Session) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.String()
}
