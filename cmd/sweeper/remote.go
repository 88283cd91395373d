package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
	"github.com/tomasstrnad1997/sweeper/protocol"
	"github.com/tomasstrnad1997/sweeper/render"
	"github.com/tomasstrnad1997/sweeper/replay"
)

func outcomeFor(end protocol.GameEndType) history.Outcome {
	switch end {
	case protocol.Win:
		return history.Won
	case protocol.Loss:
		return history.Lost
	default:
		return history.InProgress
	}
}

func replayURL(base string, id int64, interval time.Duration) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = "/games/" + strconv.FormatInt(id, 10) + "/replay"
	u.RawQuery = url.Values{"interval": {interval.String()}}.Encode()
	return u.String(), nil
}

// remoteReplay draws a replay streamed by a sweeper server.
func remoteReplay(ctx context.Context, base string, id int64, interval time.Duration, out io.Writer) error {
	target, err := replayURL(base, id, interval)
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dialing %s: %w (status %s)", target, err, resp.Status)
		}
		return fmt.Errorf("dialing %s: %w", target, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var term *render.Terminal
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("replay stream ended early: %w", err)
		}
		tp, err := protocol.PeekType(data)
		if err != nil {
			return err
		}
		switch tp {
		case protocol.StartGame:
			params, err := protocol.DecodeGameStart(data)
			if err != nil {
				return err
			}
			term = render.NewTerminal(out, params.Size)
			if err := term.Draw(fmt.Sprintf("Replay of game %d, %d mines", id, params.Mines)); err != nil {
				return err
			}
		case protocol.ReplayStep:
			step, err := protocol.DecodeReplayStep(data)
			if err != nil {
				return err
			}
			if term == nil {
				return fmt.Errorf("replay step before game start")
			}
			err = term.RenderStep(replay.Step{
				Move:    history.Move{GameID: id, MoveNumber: step.MoveNumber, X: step.X, Y: step.Y, Result: step.Result},
				Result:  mines.MoveResult{Result: step.Result},
				Updates: step.Updates,
			})
			if err != nil {
				return err
			}
		case protocol.GameEnd:
			end, err := protocol.DecodeGameEnd(data)
			if err != nil {
				return err
			}
			if term == nil {
				return fmt.Errorf("game end before game start")
			}
			return term.RenderEnd(outcomeFor(end))
		case protocol.TextMessage:
			text, err := protocol.DecodeTextMessage(data)
			if err != nil {
				return err
			}
			return fmt.Errorf("server: %s", text)
		default:
			return fmt.Errorf("%w: %d", protocol.ErrUnknownMessage, tp)
		}
	}
}
