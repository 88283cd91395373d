// Package server exposes game sessions, the game history and replays over
// HTTP and websockets.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/sweeper/config"
	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/protocol"
	"github.com/tomasstrnad1997/sweeper/session"
)

const writeWait = 10 * time.Second

type Server struct {
	store    history.Store
	sessions *session.Manager
	cfg      config.Config
	log      *logrus.Logger
	decoder  *schema.Decoder
	upgrader websocket.Upgrader
	handlers map[protocol.MessageType]MessageHandler
	// sessionOpts are applied to every new session, tests use it to seed boards.
	sessionOpts []session.Option
}

func New(store history.Store, cfg config.Config, log *logrus.Logger, opts ...session.Option) *Server {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	decoder.RegisterConverter(time.Duration(0), func(value string) reflect.Value {
		d, err := time.ParseDuration(value)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(d)
	})
	s := &Server{
		store:    store,
		sessions: session.NewManager(),
		cfg:      cfg,
		log:      log,
		decoder:  decoder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessionOpts: opts,
	}
	s.RegisterHandlers()
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/reveal", s.handleReveal)
	mux.HandleFunc("POST /sessions/{id}/flag", s.handleFlag)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /games", s.handleListGames)
	mux.HandleFunc("GET /games/{id}", s.handleGetGame)
	mux.HandleFunc("GET /games/{id}/verify", s.handleVerify)
	mux.HandleFunc("GET /games/{id}/replay", s.handleReplayStream)
	mux.HandleFunc("GET /play", s.handlePlay)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("session not found"))
		return nil, false
	}
	return sess, true
}

func gameIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
