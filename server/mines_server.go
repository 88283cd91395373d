package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/sweeper/mines"
	"github.com/tomasstrnad1997/sweeper/protocol"
	"github.com/tomasstrnad1997/sweeper/session"
)

// Player is one websocket connection playing single player games.
type Player struct {
	conn       *websocket.Conn
	name       string
	session    *session.Session
	log        *logrus.Entry
	writeMutex sync.Mutex
}

type MessageHandler func(ctx context.Context, data []byte, player *Player) error

type playForm struct {
	PlayerName string `schema:"player_name"`
}

func (player *Player) send(data []byte) error {
	player.writeMutex.Lock()
	defer player.writeMutex.Unlock()
	player.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return player.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (player *Player) sendTextMessage(msg string) error {
	encoded, err := protocol.EncodeTextMessage(msg)
	if err != nil {
		return err
	}
	return player.send(encoded)
}

func (player *Player) gameRunning() bool {
	return player.session != nil && !player.session.GameOver()
}

func (s *Server) registerHandler(msgType protocol.MessageType, handler MessageHandler) {
	s.handlers[msgType] = handler
}

func (s *Server) HandleMessage(ctx context.Context, data []byte, player *Player) error {
	if len(data) == 0 {
		return fmt.Errorf("Cannot handle empty message")
	}
	msgType := protocol.MessageType(data[0])
	handler, exists := s.handlers[msgType]
	if !exists {
		return fmt.Errorf("%w: no handler registered for message type %d", protocol.ErrUnknownMessage, msgType)
	}
	return handler(ctx, data, player)
}

func (s *Server) RegisterHandlers() {
	s.handlers = make(map[protocol.MessageType]MessageHandler)
	s.registerHandler(protocol.StartGame, func(ctx context.Context, bytes []byte, player *Player) error {
		params, err := protocol.DecodeGameStart(bytes)
		if err != nil {
			return err
		}
		if err := s.cfg.CheckSize(params.Size); err != nil {
			return player.sendTextMessage(err.Error())
		}
		sess, err := session.New(s.store, player.name, params.Size, params.Mines,
			append([]session.Option{session.WithLogger(player.log)}, s.sessionOpts...)...)
		if err != nil {
			return player.sendTextMessage(err.Error())
		}
		if player.gameRunning() {
			msg, err := protocol.EncodeGameEnd(protocol.Aborted)
			if err != nil {
				return err
			}
			if err := player.send(msg); err != nil {
				return err
			}
		}
		player.session = sess
		player.log.WithFields(logrus.Fields{"size": params.Size, "mines": params.Mines}).Info("starting a new game")
		if err := player.sendTextMessage(fmt.Sprintf("Starting a new game...\nNumber of mines %d", params.Mines)); err != nil {
			return err
		}
		startMsg, err := protocol.EncodeGameStart(*params)
		if err != nil {
			return err
		}
		return player.send(startMsg)
	})
	s.registerHandler(protocol.MoveCommand, func(ctx context.Context, bytes []byte, player *Player) error {
		if !player.gameRunning() {
			return player.sendTextMessage("Game not running. Cant make moves.")
		}
		move, err := protocol.DecodeMove(bytes)
		if err != nil {
			return err
		}
		resp, err := player.session.Apply(ctx, *move)
		if err != nil {
			return err
		}
		if len(resp.Updates) > 0 {
			encoded, err := protocol.EncodeCellUpdates(resp.Updates)
			if err != nil {
				return err
			}
			if err := player.send(encoded); err != nil {
				return err
			}
		}
		var endMsg []byte
		switch resp.Result {
		case mines.Exploded:
			endMsg, err = protocol.EncodeGameEnd(protocol.Loss)
		case mines.Win:
			endMsg, err = protocol.EncodeGameEnd(protocol.Win)
		}
		if err != nil {
			return err
		}
		if endMsg != nil {
			return player.send(endMsg)
		}
		return nil
	})
}

// readMessages feeds binary frames to commands until the connection fails.
func readMessages(conn *websocket.Conn, commands chan<- []byte) {
	defer close(commands)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		commands <- data
	}
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var form playForm
	if err := s.decoder.Decode(&form, r.URL.Query()); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if form.PlayerName == "" {
		form.PlayerName = "anonymous"
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("play upgrade failed")
		return
	}
	defer conn.Close()
	player := &Player{
		conn: conn,
		name: form.PlayerName,
		log:  s.log.WithFields(logrus.Fields{"player": form.PlayerName, "remote": conn.RemoteAddr().String()}),
	}
	player.log.Info("player connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commands := make(chan []byte)
	go readMessages(conn, commands)
	for message := range commands {
		if err := s.HandleMessage(ctx, message, player); err != nil {
			player.log.WithError(err).Warn("failed to handle message")
			player.sendTextMessage(err.Error())
		}
	}
	player.log.Info("player disconnected")
}
