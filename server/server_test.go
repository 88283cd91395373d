package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/tomasstrnad1997/sweeper/config"
	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
	"github.com/tomasstrnad1997/sweeper/protocol"
	"github.com/tomasstrnad1997/sweeper/server"
)

type sessionBody struct {
	SessionID string              `json:"session_id"`
	Size      int                 `json:"size"`
	Mines     int                 `json:"mines"`
	GameID    int64               `json:"game_id"`
	GameOver  bool                `json:"game_over"`
	Cells     []mines.UpdatedCell `json:"cells"`
}

type moveBody struct {
	Result   mines.MoveResultType `json:"result"`
	Updates  []mines.UpdatedCell  `json:"updates"`
	GameID   int64                `json:"game_id"`
	GameOver bool                 `json:"game_over"`
}

type verifyBody struct {
	Valid   bool            `json:"valid"`
	Moves   int             `json:"moves"`
	Outcome history.Outcome `json:"outcome"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) (*httptest.Server, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore()
	cfg := config.Default()
	cfg.ReplayInterval = time.Millisecond
	logger, _ := test.NewNullLogger()
	ts := httptest.NewServer(server.New(store, cfg, logger).Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	if resp.StatusCode != status {
		resp.Body.Close()
		t.Fatalf("%s %s: status %d, expected %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, status)
	}
}

func createSession(t *testing.T, ts *httptest.Server, form url.Values) sessionBody {
	t.Helper()
	resp, err := http.PostForm(ts.URL+"/sessions", form)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	expectStatus(t, resp, http.StatusCreated)
	var body sessionBody
	decodeBody(t, resp, &body)
	return body
}

func post(t *testing.T, target string) *http.Response {
	t.Helper()
	resp, err := http.Post(target, "", nil)
	if err != nil {
		t.Fatalf("Failed to post %s: %v", target, err)
	}
	return resp
}

func get(t *testing.T, target string) *http.Response {
	t.Helper()
	resp, err := http.Get(target)
	if err != nil {
		t.Fatalf("Failed to get %s: %v", target, err)
	}
	return resp
}

// recordGame stores a 3x3 game with a single mine at (0, 0).
func recordGame(t *testing.T, store history.Store, moves []history.Move, outcome history.Outcome) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateGameRecord(ctx, "John", 3, 1, []mines.Position{{X: 0, Y: 0}})
	if err != nil {
		t.Fatalf("Failed to create record: %v", err)
	}
	for _, m := range moves {
		if err := store.AppendMove(ctx, id, m.MoveNumber, m.X, m.Y, m.Result); err != nil {
			t.Fatalf("Failed to append move: %v", err)
		}
	}
	if err := store.SetOutcome(ctx, id, outcome); err != nil {
		t.Fatalf("Failed to set outcome: %v", err)
	}
	return id
}

func TestPlayRecordAndVerify(t *testing.T) {
	ts, _ := newTestServer(t)
	sess := createSession(t, ts, url.Values{"player_name": {"John"}, "size": {"4"}, "mines": {"0"}})
	if sess.Size != 4 || sess.Mines != 0 || sess.SessionID == "" {
		t.Fatalf("Unexpected session %+v", sess)
	}

	resp := post(t, ts.URL+"/sessions/"+sess.SessionID+"/reveal?x=1&y=2")
	expectStatus(t, resp, http.StatusOK)
	var move moveBody
	decodeBody(t, resp, &move)
	if move.Result != mines.Win || !move.GameOver || len(move.Updates) != 16 || move.GameID == 0 {
		t.Fatalf("Unexpected reveal response %+v", move)
	}

	resp = get(t, ts.URL+"/games")
	expectStatus(t, resp, http.StatusOK)
	var games []history.GameSummary
	decodeBody(t, resp, &games)
	if len(games) != 1 || games[0].PlayerName != "John" || games[0].Outcome != history.Won {
		t.Fatalf("Unexpected games %+v", games)
	}

	resp = get(t, ts.URL+"/games/"+itoa(move.GameID)+"/verify")
	expectStatus(t, resp, http.StatusOK)
	var verify verifyBody
	decodeBody(t, resp, &verify)
	if !verify.Valid || verify.Moves != 1 || verify.Outcome != history.Won {
		t.Fatalf("Unexpected verify response %+v", verify)
	}

	resp = get(t, ts.URL+"/sessions/"+sess.SessionID)
	expectStatus(t, resp, http.StatusOK)
	var state sessionBody
	decodeBody(t, resp, &state)
	if !state.GameOver || state.GameID != move.GameID || len(state.Cells) != 16 {
		t.Fatalf("Unexpected session state %+v", state)
	}
}

func TestCreateSessionDefaults(t *testing.T) {
	ts, _ := newTestServer(t)
	sess := createSession(t, ts, url.Values{})
	defaults := config.Default()
	if sess.Size != defaults.DefaultSize || sess.Mines != defaults.DefaultMines {
		t.Fatalf("Expected default board, got %+v", sess)
	}
}

func TestCreateSessionRejectsInvalid(t *testing.T) {
	ts, _ := newTestServer(t)
	for _, form := range []url.Values{
		{"size": {"3"}, "mines": {"9"}},
		{"size": {"0"}},
		{"size": {"big"}},
		{"size": {"100000"}, "mines": {"10"}},
	} {
		resp, err := http.PostForm(ts.URL+"/sessions", form)
		if err != nil {
			t.Fatalf("Failed to post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("Form %v: status %d, expected 400", form, resp.StatusCode)
		}
	}
}

func TestSessionRequests(t *testing.T) {
	ts, _ := newTestServer(t)
	sess := createSession(t, ts, url.Values{"size": {"5"}, "mines": {"3"}})
	base := ts.URL + "/sessions/" + sess.SessionID

	resp := post(t, base+"/flag?x=2&y=3")
	expectStatus(t, resp, http.StatusOK)
	var flag struct {
		Changed bool                `json:"changed"`
		Updates []mines.UpdatedCell `json:"updates"`
	}
	decodeBody(t, resp, &flag)
	if !flag.Changed || len(flag.Updates) != 1 || flag.Updates[0].Value != mines.ShowFlag {
		t.Fatalf("Unexpected flag response %+v", flag)
	}

	resp = post(t, base+"/reveal?x=2&y=3")
	expectStatus(t, resp, http.StatusOK)
	var move moveBody
	decodeBody(t, resp, &move)
	if move.Result != mines.NoChange || len(move.Updates) != 0 {
		t.Fatalf("Reveal of flagged cell should be a no-op, got %+v", move)
	}

	for target, status := range map[string]int{
		base + "/reveal?x=1":                                 http.StatusBadRequest,
		base + "/reveal?x=1&y=one":                           http.StatusBadRequest,
		ts.URL + "/sessions/not-a-uuid/reveal?x=1&y=1":       http.StatusBadRequest,
		ts.URL + "/sessions/" + zeroUUID + "/reveal?x=1&y=1": http.StatusNotFound,
		ts.URL + "/sessions/" + zeroUUID + "/flag?x=1&y=1":   http.StatusNotFound,
	} {
		resp := post(t, target)
		resp.Body.Close()
		if resp.StatusCode != status {
			t.Fatalf("%s: status %d, expected %d", target, resp.StatusCode, status)
		}
	}

	req, _ := http.NewRequest(http.MethodDelete, base, nil)
	for _, status := range []int{http.StatusNoContent, http.StatusNotFound} {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != status {
			t.Fatalf("Delete: status %d, expected %d", resp.StatusCode, status)
		}
	}
}

const zeroUUID = "00000000-0000-0000-0000-000000000000"

func TestGameLookups(t *testing.T) {
	ts, store := newTestServer(t)
	id := recordGame(t, store, []history.Move{
		{MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe},
		{MoveNumber: 2, X: 0, Y: 0, Result: mines.Exploded},
	}, history.Lost)

	resp := get(t, ts.URL+"/games/"+itoa(id))
	expectStatus(t, resp, http.StatusOK)
	var game struct {
		Game  history.GameRecord `json:"game"`
		Moves []history.Move     `json:"moves"`
	}
	decodeBody(t, resp, &game)
	if game.Game.ID != id || len(game.Game.MinePositions) != 1 || len(game.Moves) != 2 {
		t.Fatalf("Unexpected game %+v", game)
	}
	if game.Moves[1].Result != mines.Exploded {
		t.Fatalf("Move results not preserved: %+v", game.Moves)
	}

	for _, target := range []string{"/games/999", "/games/999/verify", "/games/999/replay"} {
		resp := get(t, ts.URL+target)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: status %d, expected 404", target, resp.StatusCode)
		}
	}
	resp = get(t, ts.URL+"/games/abc")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Non numeric id: status %d, expected 400", resp.StatusCode)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	ts, store := newTestServer(t)
	id := recordGame(t, store, []history.Move{
		{MoveNumber: 1, X: 1, Y: 1, Result: mines.Exploded},
	}, history.Lost)
	resp := get(t, ts.URL+"/games/"+itoa(id)+"/verify")
	expectStatus(t, resp, http.StatusConflict)
	var verify verifyBody
	decodeBody(t, resp, &verify)
	if verify.Valid || !strings.Contains(verify.Error, "move 1") {
		t.Fatalf("Unexpected verify response %+v", verify)
	}
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+path, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, expected protocol.MessageType) []byte {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	tp, err := protocol.PeekType(data)
	if err != nil {
		t.Fatalf("Failed to peek frame: %v", err)
	}
	if tp != expected {
		t.Fatalf("Frame type %d, expected %d", tp, expected)
	}
	return data
}

func TestReplayStream(t *testing.T) {
	ts, store := newTestServer(t)
	id := recordGame(t, store, []history.Move{
		{MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe},
		{MoveNumber: 2, X: 0, Y: 0, Result: mines.Exploded},
	}, history.Lost)
	conn := dial(t, ts, "/games/"+itoa(id)+"/replay?interval=1ms")

	params, err := protocol.DecodeGameStart(readFrame(t, conn, protocol.StartGame))
	if err != nil || params.Size != 3 || params.Mines != 1 {
		t.Fatalf("Unexpected start %+v: %v", params, err)
	}
	first, err := protocol.DecodeReplayStep(readFrame(t, conn, protocol.ReplayStep))
	if err != nil {
		t.Fatalf("Failed to decode step: %v", err)
	}
	if first.MoveNumber != 1 || first.Result != mines.Safe || len(first.Updates) != 1 || first.Updates[0].Value != 1 {
		t.Fatalf("Unexpected first step %+v", first)
	}
	second, err := protocol.DecodeReplayStep(readFrame(t, conn, protocol.ReplayStep))
	if err != nil || second.Result != mines.Exploded {
		t.Fatalf("Unexpected second step %+v: %v", second, err)
	}
	if len(second.Updates) != 1 || second.Updates[0] != (mines.UpdatedCell{X: 0, Y: 0, Value: mines.ShowMine}) {
		t.Fatalf("Losing step should show the mine, got %+v", second.Updates)
	}
	end, err := protocol.DecodeGameEnd(readFrame(t, conn, protocol.GameEnd))
	if err != nil || end != protocol.Loss {
		t.Fatalf("Unexpected end %d: %v", end, err)
	}
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("Expected normal close, got %v", err)
	}
}

func TestReplayStreamReportsCorruption(t *testing.T) {
	ts, store := newTestServer(t)
	id := recordGame(t, store, []history.Move{
		{MoveNumber: 1, X: 1, Y: 1, Result: mines.Safe},
		{MoveNumber: 2, X: 2, Y: 2, Result: mines.Exploded},
	}, history.Lost)
	conn := dial(t, ts, "/games/"+itoa(id)+"/replay?interval=1ms")

	readFrame(t, conn, protocol.StartGame)
	readFrame(t, conn, protocol.ReplayStep)
	text, err := protocol.DecodeTextMessage(readFrame(t, conn, protocol.TextMessage))
	if err != nil || !strings.Contains(text, "move 2") {
		t.Fatalf("Unexpected integrity message %q: %v", text, err)
	}
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseInternalServerErr {
		t.Fatalf("Expected close with internal error, got %v", err)
	}
}

func TestPlayOverWebsocket(t *testing.T) {
	ts, store := newTestServer(t)
	conn := dial(t, ts, "/play?player_name=Ann")
	send := func(data []byte, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
	}

	send(protocol.EncodeMove(mines.Move{X: 0, Y: 0, Type: mines.Reveal}))
	text, _ := protocol.DecodeTextMessage(readFrame(t, conn, protocol.TextMessage))
	if !strings.Contains(text, "not running") {
		t.Fatalf("Unexpected message %q", text)
	}

	send(protocol.EncodeGameStart(protocol.GameParams{Size: 100000, Mines: 10}))
	text, _ = protocol.DecodeTextMessage(readFrame(t, conn, protocol.TextMessage))
	if !strings.Contains(text, "exceeds the maximum") {
		t.Fatalf("Expected oversized board to be refused, got %q", text)
	}

	send(protocol.EncodeGameStart(protocol.GameParams{Size: 4, Mines: 0}))
	readFrame(t, conn, protocol.TextMessage)
	readFrame(t, conn, protocol.StartGame)

	send(protocol.EncodeMove(mines.Move{X: 3, Y: 3, Type: mines.Flag}))
	cells, err := protocol.DecodeCellUpdates(readFrame(t, conn, protocol.CellUpdate))
	if err != nil || len(cells) != 1 || cells[0].Value != mines.ShowFlag {
		t.Fatalf("Unexpected flag update %+v: %v", cells, err)
	}

	// The flagged corner stops the fill, so the game is not won yet.
	send(protocol.EncodeMove(mines.Move{X: 0, Y: 0, Type: mines.Reveal}))
	cells, err = protocol.DecodeCellUpdates(readFrame(t, conn, protocol.CellUpdate))
	if err != nil || len(cells) != 15 {
		t.Fatalf("Expected 15 revealed cells around the flag, got %d: %v", len(cells), err)
	}

	send(protocol.EncodeMove(mines.Move{X: 3, Y: 3, Type: mines.Flag}))
	cells, err = protocol.DecodeCellUpdates(readFrame(t, conn, protocol.CellUpdate))
	if err != nil || len(cells) != 1 || cells[0].Value != mines.Unflag {
		t.Fatalf("Unexpected unflag update %+v: %v", cells, err)
	}
	send(protocol.EncodeMove(mines.Move{X: 3, Y: 3, Type: mines.Reveal}))
	readFrame(t, conn, protocol.CellUpdate)
	end, err := protocol.DecodeGameEnd(readFrame(t, conn, protocol.GameEnd))
	if err != nil || end != protocol.Win {
		t.Fatalf("Unexpected end %d: %v", end, err)
	}

	games, err := store.ListGames(context.Background())
	if err != nil || len(games) != 1 || games[0].PlayerName != "Ann" || games[0].Outcome != history.Won {
		t.Fatalf("Unexpected recorded games %+v: %v", games, err)
	}

	// Both flag toggles are in the log, so the game replays as played.
	resp := get(t, ts.URL+"/games/"+itoa(games[0].ID)+"/verify")
	expectStatus(t, resp, http.StatusOK)
	var verify verifyBody
	decodeBody(t, resp, &verify)
	if !verify.Valid || verify.Moves != 4 || verify.Outcome != history.Won {
		t.Fatalf("Unexpected verify response %+v", verify)
	}
}
