package store

import (
	"context"
)

const createGame = `
INSERT INTO games (date, player_name, width, height, mines_count, mine_positions, layout_digest, outcome)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateGameParams struct {
	Date          string
	PlayerName    string
	Width         int64
	Height        int64
	MinesCount    int64
	MinePositions string
	LayoutDigest  string
	Outcome       string
}

func (q *Queries) CreateGame(ctx context.Context, arg CreateGameParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createGame,
		arg.Date,
		arg.PlayerName,
		arg.Width,
		arg.Height,
		arg.MinesCount,
		arg.MinePositions,
		arg.LayoutDigest,
		arg.Outcome,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const insertMove = `
INSERT INTO moves (game_id, move_number, x, y, result) VALUES (?, ?, ?, ?, ?)
`

type InsertMoveParams struct {
	GameID     int64
	MoveNumber int64
	X          int64
	Y          int64
	Result     string
}

func (q *Queries) InsertMove(ctx context.Context, arg InsertMoveParams) error {
	_, err := q.db.ExecContext(ctx, insertMove,
		arg.GameID,
		arg.MoveNumber,
		arg.X,
		arg.Y,
		arg.Result,
	)
	return err
}

const updateGameOutcome = `
UPDATE games SET outcome = ? WHERE id = ?
`

type UpdateGameOutcomeParams struct {
	Outcome string
	ID      int64
}

func (q *Queries) UpdateGameOutcome(ctx context.Context, arg UpdateGameOutcomeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateGameOutcome, arg.Outcome, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listGames = `
SELECT id, date, player_name, width, height, mines_count, outcome FROM games ORDER BY id DESC
`

type ListGamesRow struct {
	ID         int64
	Date       string
	PlayerName string
	Width      int64
	Height     int64
	MinesCount int64
	Outcome    string
}

func (q *Queries) ListGames(ctx context.Context) ([]ListGamesRow, error) {
	rows, err := q.db.QueryContext(ctx, listGames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListGamesRow
	for rows.Next() {
		var i ListGamesRow
		if err := rows.Scan(
			&i.ID,
			&i.Date,
			&i.PlayerName,
			&i.Width,
			&i.Height,
			&i.MinesCount,
			&i.Outcome,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getGame = `
SELECT id, date, player_name, width, height, mines_count, mine_positions, layout_digest, outcome FROM games WHERE id = ?
`

func (q *Queries) GetGame(ctx context.Context, id int64) (Game, error) {
	row := q.db.QueryRowContext(ctx, getGame, id)
	var i Game
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.PlayerName,
		&i.Width,
		&i.Height,
		&i.MinesCount,
		&i.MinePositions,
		&i.LayoutDigest,
		&i.Outcome,
	)
	return i, err
}

const listMovesForGame = `
SELECT id, game_id, move_number, x, y, result FROM moves WHERE game_id = ? ORDER BY move_number ASC
`

func (q *Queries) ListMovesForGame(ctx context.Context, gameID int64) ([]Move, error) {
	rows, err := q.db.QueryContext(ctx, listMovesForGame, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Move
	for rows.Next() {
		var i Move
		if err := rows.Scan(
			&i.ID,
			&i.GameID,
			&i.MoveNumber,
			&i.X,
			&i.Y,
			&i.Result,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
