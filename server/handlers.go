package server

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
	"github.com/tomasstrnad1997/sweeper/replay"
	"github.com/tomasstrnad1997/sweeper/session"
)

type newSessionForm struct {
	PlayerName string `schema:"player_name"`
	Size       *int   `schema:"size"`
	Mines      *int   `schema:"mines"`
}

type coordinatesForm struct {
	X int `schema:"x,required"`
	Y int `schema:"y,required"`
}

type sessionResponse struct {
	SessionID string              `json:"session_id"`
	Size      int                 `json:"size"`
	Mines     int                 `json:"mines"`
	GameID    int64               `json:"game_id,omitempty"`
	GameOver  bool                `json:"game_over"`
	Cells     []mines.UpdatedCell `json:"cells,omitempty"`
}

type moveResponse struct {
	Result   mines.MoveResultType `json:"result"`
	Updates  []mines.UpdatedCell  `json:"updates"`
	GameID   int64                `json:"game_id,omitempty"`
	GameOver bool                 `json:"game_over"`
}

type flagResponse struct {
	Changed bool                `json:"changed"`
	Updates []mines.UpdatedCell `json:"updates"`
}

type gameResponse struct {
	Game  *history.GameRecord `json:"game"`
	Moves []history.Move      `json:"moves"`
}

type verifyResponse struct {
	Valid   bool            `json:"valid"`
	Moves   int             `json:"moves"`
	Outcome history.Outcome `json:"outcome,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var form newSessionForm
	if err := s.decoder.Decode(&form, r.PostForm); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	size, mineCount := s.cfg.DefaultSize, s.cfg.DefaultMines
	if form.Size != nil {
		size = *form.Size
	}
	if form.Mines != nil {
		mineCount = *form.Mines
	}
	if err := s.cfg.CheckSize(size); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if form.PlayerName == "" {
		form.PlayerName = "anonymous"
	}
	opts := append([]session.Option{session.WithLogger(logrus.NewEntry(s.log))}, s.sessionOpts...)
	sess, err := session.New(s.store, form.PlayerName, size, mineCount, opts...)
	if errors.Is(err, mines.ErrInvalidConfiguration) {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.sessions.Add(sess)
	s.log.WithFields(logrus.Fields{"session": sess.ID, "player": sess.PlayerName, "size": size, "mines": mineCount}).Info("session created")
	s.writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sess.ID.String(),
		Size:      sess.Size(),
		Mines:     sess.Mines(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID.String(),
		Size:      sess.Size(),
		Mines:     sess.Mines(),
		GameID:    sess.GameID(),
		GameOver:  sess.GameOver(),
		Cells:     sess.Board(),
	})
}

func (s *Server) decodeCoordinates(w http.ResponseWriter, r *http.Request) (coordinatesForm, bool) {
	var form coordinatesForm
	if err := s.decoder.Decode(&form, r.URL.Query()); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return form, false
	}
	return form, true
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	form, ok := s.decodeCoordinates(w, r)
	if !ok {
		return
	}
	resp := sess.Reveal(r.Context(), form.X, form.Y)
	s.writeJSON(w, http.StatusOK, moveResponse{
		Result:   resp.Result,
		Updates:  resp.Updates,
		GameID:   resp.GameID,
		GameOver: resp.GameOver,
	})
}

func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	form, ok := s.decodeCoordinates(w, r)
	if !ok {
		return
	}
	changed, updates := sess.ToggleFlag(r.Context(), form.X, form.Y)
	if updates == nil {
		updates = []mines.UpdatedCell{}
	}
	s.writeJSON(w, http.StatusOK, flagResponse{Changed: changed, Updates: updates})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	s.sessions.Remove(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.store.ListGames(r.Context())
	if err != nil {
		s.log.WithError(err).Error("failed to list games")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if games == nil {
		games = []history.GameSummary{}
	}
	s.writeJSON(w, http.StatusOK, games)
}

// loadGame writes the error response itself when it returns false.
func (s *Server) loadGame(w http.ResponseWriter, r *http.Request) (*history.GameRecord, []history.Move, bool) {
	id, err := gameIDFromPath(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return nil, nil, false
	}
	record, moves, err := s.store.GetGameForReplay(r.Context(), id)
	if errors.Is(err, history.ErrGameNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return nil, nil, false
	}
	if err != nil {
		s.log.WithError(err).WithField("game_id", id).Error("failed to load game")
		s.writeError(w, http.StatusInternalServerError, err)
		return nil, nil, false
	}
	return record, moves, true
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	record, moves, ok := s.loadGame(w, r)
	if !ok {
		return
	}
	if moves == nil {
		moves = []history.Move{}
	}
	s.writeJSON(w, http.StatusOK, gameResponse{Game: record, Moves: moves})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	record, moves, ok := s.loadGame(w, r)
	if !ok {
		return
	}
	replayer, err := replay.New(record, moves)
	if err == nil {
		_, err = replayer.RunAll()
	}
	if errors.Is(err, replay.ErrDataIntegrity) {
		s.log.WithError(err).WithField("game_id", record.ID).Warn("replay integrity check failed")
		s.writeJSON(w, http.StatusConflict, verifyResponse{Valid: false, Moves: len(moves), Error: err.Error()})
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verifyResponse{Valid: true, Moves: replayer.Len(), Outcome: replayer.Outcome()})
}
