package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomasstrnad1997/sweeper/mines"
)

// MemoryStore keeps games and moves in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	games  map[int64]*GameRecord
	moves  map[int64][]Move
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[int64]*GameRecord),
		moves: make(map[int64][]Move),
		now:   time.Now,
	}
}

func (s *MemoryStore) CreateGameRecord(ctx context.Context, playerName string, size, mineCount int, layout []mines.Position) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.games[id] = &GameRecord{
		GameSummary: GameSummary{
			ID:         id,
			Date:       s.now().UTC(),
			PlayerName: playerName,
			Width:      size,
			Height:     size,
			MinesCount: mineCount,
			Outcome:    InProgress,
		},
		MinePositions: append([]mines.Position(nil), layout...),
		LayoutDigest:  LayoutDigest(size, size, layout),
	}
	return id, nil
}

func (s *MemoryStore) AppendMove(ctx context.Context, gameID int64, moveNumber, x, y int, result mines.MoveResultType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return fmt.Errorf("append move %d: %w", moveNumber, ErrGameNotFound)
	}
	s.moves[gameID] = append(s.moves[gameID], Move{GameID: gameID, MoveNumber: moveNumber, X: x, Y: y, Result: result})
	return nil
}

func (s *MemoryStore) SetOutcome(ctx context.Context, gameID int64, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return fmt.Errorf("set outcome: %w", ErrGameNotFound)
	}
	game.Outcome = outcome
	return nil
}

func (s *MemoryStore) ListGames(ctx context.Context) ([]GameSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]GameSummary, 0, len(s.games))
	for _, g := range s.games {
		list = append(list, g.GameSummary)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (s *MemoryStore) GetGameForReplay(ctx context.Context, gameID int64) (*GameRecord, []Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[gameID]
	if !ok {
		return nil, nil, ErrGameNotFound
	}
	record := *game
	record.MinePositions = append([]mines.Position(nil), game.MinePositions...)
	moves := append([]Move(nil), s.moves[gameID]...)
	sort.SliceStable(moves, func(i, j int) bool { return moves[i].MoveNumber < moves[j].MoveNumber })
	return &record, moves, nil
}
