package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/protocol"
	"github.com/tomasstrnad1997/sweeper/replay"
)

type replayForm struct {
	Interval time.Duration `schema:"interval"`
}

// wsRenderer sends replay steps as binary protocol frames.
type wsRenderer struct {
	conn *websocket.Conn
}

func (r *wsRenderer) send(data []byte) error {
	r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (r *wsRenderer) RenderStep(step replay.Step) error {
	encoded, err := protocol.EncodeReplayStep(protocol.Step{
		MoveNumber: step.Move.MoveNumber,
		X:          step.Move.X,
		Y:          step.Move.Y,
		Result:     step.Result.Result,
		Updates:    step.Updates,
	})
	if err != nil {
		return err
	}
	return r.send(encoded)
}

func (r *wsRenderer) RenderEnd(outcome history.Outcome) error {
	encoded, err := protocol.EncodeGameEnd(protocol.GameEndFor(outcome))
	if err != nil {
		return err
	}
	return r.send(encoded)
}

func (r *wsRenderer) sendText(msg string) error {
	encoded, err := protocol.EncodeTextMessage(msg)
	if err != nil {
		return err
	}
	return r.send(encoded)
}

func (r *wsRenderer) close(code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	r.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	r.conn.Close()
}

// handleReplayStream validates the record before upgrading so a missing game
// is still a plain 404.
func (s *Server) handleReplayStream(w http.ResponseWriter, r *http.Request) {
	var form replayForm
	if err := s.decoder.Decode(&form, r.URL.Query()); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	interval := form.Interval
	if interval <= 0 {
		interval = s.cfg.ReplayInterval
	}
	record, moves, ok := s.loadGame(w, r)
	if !ok {
		return
	}
	log := s.log.WithField("game_id", record.ID)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("replay upgrade failed")
		return
	}
	out := &wsRenderer{conn: conn}

	replayer, err := replay.New(record, moves)
	if err != nil {
		log.WithError(err).Warn("replay rejected")
		out.sendText(err.Error())
		out.close(websocket.CloseInternalServerErr, "data integrity")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Reading is the only way to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	start, err := protocol.EncodeGameStart(protocol.GameParams{Size: record.Width, Mines: record.MinesCount})
	if err == nil {
		err = out.send(start)
	}
	if err != nil {
		log.WithError(err).Warn("failed to start replay")
		conn.Close()
		return
	}

	log.WithFields(logrus.Fields{"moves": replayer.Len(), "interval": interval}).Info("replay started")
	err = replay.Play(ctx, replayer, interval, out)
	switch {
	case err == nil:
		log.Info("replay finished")
		out.close(websocket.CloseNormalClosure, "")
	case errors.Is(err, replay.ErrDataIntegrity):
		log.WithError(err).Warn("replay integrity check failed")
		out.sendText(err.Error())
		out.close(websocket.CloseInternalServerErr, "data integrity")
	case errors.Is(err, context.Canceled):
		log.Info("replay cancelled by client")
		conn.Close()
	default:
		log.WithError(err).Warn("replay stream failed")
		conn.Close()
	}
}
