// Package history describes the persisted record of played games and the
// storage collaborator the game session and the replay engine depend on.
package history

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/tomasstrnad1997/sweeper/mines"
)

type Outcome string

const (
	InProgress Outcome = "in_progress"
	Won        Outcome = "win"
	Lost       Outcome = "loss"
)

var ErrGameNotFound = errors.New("game not found")

// ParseOutcome also accepts the "playing", "won" and "lost" spelling.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "in_progress", "playing":
		return InProgress, nil
	case "win", "won":
		return Won, nil
	case "loss", "lost":
		return Lost, nil
	default:
		return "", fmt.Errorf("unknown game outcome %q", s)
	}
}

// OutcomeFor maps the result of a move to the outcome of its game.
func OutcomeFor(result mines.MoveResultType) Outcome {
	switch result {
	case mines.Exploded:
		return Lost
	case mines.Win:
		return Won
	default:
		return InProgress
	}
}

func (o Outcome) Terminal() bool {
	return o == Won || o == Lost
}

type GameSummary struct {
	ID         int64     `json:"id"`
	Date       time.Time `json:"date"`
	PlayerName string    `json:"player_name"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	MinesCount int       `json:"mines_count"`
	Outcome    Outcome   `json:"outcome"`
}

type GameRecord struct {
	GameSummary
	MinePositions []mines.Position `json:"mine_positions"`
	LayoutDigest  string           `json:"layout_digest,omitempty"`
}

type Move struct {
	GameID     int64                `json:"game_id"`
	MoveNumber int                  `json:"move_number"`
	X          int                  `json:"x"`
	Y          int                  `json:"y"`
	Result     mines.MoveResultType `json:"result"`
}

type Store interface {
	CreateGameRecord(ctx context.Context, playerName string, size, mineCount int, layout []mines.Position) (int64, error)
	AppendMove(ctx context.Context, gameID int64, moveNumber, x, y int, result mines.MoveResultType) error
	SetOutcome(ctx context.Context, gameID int64, outcome Outcome) error
	// ListGames returns the newest game first.
	ListGames(ctx context.Context) ([]GameSummary, error)
	// GetGameForReplay returns the moves ordered by move number.
	GetGameForReplay(ctx context.Context, gameID int64) (*GameRecord, []Move, error)
}

// LayoutDigest fingerprints a mine layout independent of the order the
// positions are listed in.
func LayoutDigest(width, height int, layout []mines.Position) string {
	sorted := append([]mines.Position(nil), layout...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	data := make([]byte, 8+8*len(sorted))
	binary.BigEndian.PutUint32(data[0:4], uint32(width))
	binary.BigEndian.PutUint32(data[4:8], uint32(height))
	for i, p := range sorted {
		binary.BigEndian.PutUint32(data[8+8*i:12+8*i], uint32(p.X))
		binary.BigEndian.PutUint32(data[12+8*i:16+8*i], uint32(p.Y))
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
