package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tomasstrnad1997/sweeper/db/store"
	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
)

//go:embed sqlc/schema.sql
var ddl string

const dateLayout = time.RFC3339

type SQLStore struct {
	Q   store.Queries
	DB  *sql.DB
	now func() time.Time
}

var _ history.Store = (*SQLStore)(nil)

func InitializeTables(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}

func (s *SQLStore) InitializeTables() error {
	return InitializeTables(s.DB)
}

// InitStore opens the database named by DB_PATH.
func InitStore() (*SQLStore, error) {
	path := os.Getenv("DB_PATH")
	if path == "" {
		return nil, fmt.Errorf("DB_PATH not set in environment")
	}
	return Open(path)
}

func Open(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// Need to ping the database to check if the file could be opened
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{Q: *store.New(db), DB: db, now: time.Now}, nil
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

func (s *SQLStore) CreateGameRecord(ctx context.Context, playerName string, size, mineCount int, layout []mines.Position) (int64, error) {
	if layout == nil {
		layout = []mines.Position{}
	}
	positions, err := json.Marshal(layout)
	if err != nil {
		return 0, err
	}
	params := store.CreateGameParams{
		Date:          s.now().UTC().Format(dateLayout),
		PlayerName:    playerName,
		Width:         int64(size),
		Height:        int64(size),
		MinesCount:    int64(mineCount),
		MinePositions: string(positions),
		LayoutDigest:  history.LayoutDigest(size, size, layout),
		Outcome:       string(history.InProgress),
	}
	return s.Q.CreateGame(ctx, params)
}

func (s *SQLStore) AppendMove(ctx context.Context, gameID int64, moveNumber, x, y int, result mines.MoveResultType) error {
	params := store.InsertMoveParams{
		GameID:     gameID,
		MoveNumber: int64(moveNumber),
		X:          int64(x),
		Y:          int64(y),
		Result:     result.String(),
	}
	return s.Q.InsertMove(ctx, params)
}

func (s *SQLStore) SetOutcome(ctx context.Context, gameID int64, outcome history.Outcome) error {
	n, err := s.Q.UpdateGameOutcome(ctx, store.UpdateGameOutcomeParams{Outcome: string(outcome), ID: gameID})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("set outcome of game %d: %w", gameID, history.ErrGameNotFound)
	}
	return nil
}

func (s *SQLStore) ListGames(ctx context.Context) ([]history.GameSummary, error) {
	rows, err := s.Q.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	games := make([]history.GameSummary, 0, len(rows))
	for _, row := range rows {
		summary, err := toSummary(row.ID, row.Date, row.PlayerName, row.Width, row.Height, row.MinesCount, row.Outcome)
		if err != nil {
			return nil, err
		}
		games = append(games, summary)
	}
	return games, nil
}

func (s *SQLStore) GetGameForReplay(ctx context.Context, gameID int64) (*history.GameRecord, []history.Move, error) {
	g, err := s.Q.GetGame(ctx, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, history.ErrGameNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	summary, err := toSummary(g.ID, g.Date, g.PlayerName, g.Width, g.Height, g.MinesCount, g.Outcome)
	if err != nil {
		return nil, nil, err
	}
	record := &history.GameRecord{GameSummary: summary, LayoutDigest: g.LayoutDigest}
	if err := json.Unmarshal([]byte(g.MinePositions), &record.MinePositions); err != nil {
		return nil, nil, fmt.Errorf("game %d has unreadable mine positions: %w", g.ID, err)
	}

	rows, err := s.Q.ListMovesForGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	moves := make([]history.Move, 0, len(rows))
	for _, row := range rows {
		result, err := mines.ParseMoveResult(row.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("game %d move %d: %w", gameID, row.MoveNumber, err)
		}
		moves = append(moves, history.Move{
			GameID:     row.GameID,
			MoveNumber: int(row.MoveNumber),
			X:          int(row.X),
			Y:          int(row.Y),
			Result:     result,
		})
	}
	return record, moves, nil
}

func toSummary(id int64, date, player string, width, height, minesCount int64, outcome string) (history.GameSummary, error) {
	parsedDate, err := parseDate(date)
	if err != nil {
		return history.GameSummary{}, fmt.Errorf("game %d: %w", id, err)
	}
	parsedOutcome, err := history.ParseOutcome(outcome)
	if err != nil {
		return history.GameSummary{}, fmt.Errorf("game %d: %w", id, err)
	}
	return history.GameSummary{
		ID:         id,
		Date:       parsedDate,
		PlayerName: player,
		Width:      int(width),
		Height:     int(height),
		MinesCount: int(minesCount),
		Outcome:    parsedOutcome,
	}, nil
}

// parseDate also reads the "Y-m-d H:i:s" dates of older databases.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.DateTime, value)
}
