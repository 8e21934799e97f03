package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"pathtiles/internal/board"
	"pathtiles/internal/game"
	"pathtiles/internal/history"
	"pathtiles/internal/proto"
)

func testRules(t *testing.T) game.Rules {
	t.Helper()
	// A 2x1 strip with one port per edge: two distinct tiles, so a
	// two-player game ends within two placements.
	b, err := board.NewRectangle(2, 1, 1)
	require.NoError(t, err)
	return game.Rules{Board: b, TilesPerPlayer: 1}
}

func newTestServer(t *testing.T, hist Recorder) *httptest.Server {
	t.Helper()
	hub := NewHub(nil, testRules(t), hist)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return srv
}

// client is a test-side protocol peer.
type client struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func dialClient(t *testing.T, ctx context.Context, srv *httptest.Server) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return &client{t: t, ctx: ctx, conn: conn}
}

func (c *client) send(typ string, payload any) {
	c.t.Helper()
	data, err := proto.Encode(typ, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.Write(c.ctx, websocket.MessageText, data))
}

// readUntil skips frames until one of the wanted type arrives. An unexpected
// rejection fails the test immediately instead of blocking forever.
func (c *client) readUntil(typ string) proto.Msg {
	c.t.Helper()
	for {
		_, data, err := c.conn.Read(c.ctx)
		require.NoError(c.t, err)
		msg, err := proto.Decode(data)
		require.NoError(c.t, err)
		if msg.T == typ {
			return msg
		}
		if msg.T == proto.TRejected && typ != proto.TRejected {
			var rej proto.Rejected
			_ = msg.Payload(&rej)
			c.t.Fatalf("unexpected rejection while waiting for %s: %s", typ, rej.Reason)
		}
	}
}

func (c *client) hello(name string) {
	c.t.Helper()
	c.send(proto.TSetUsername, proto.SetUsername{Name: name})
	c.readUntil(proto.TWelcome)
}

func (c *client) state() game.View {
	c.t.Helper()
	var st proto.State
	require.NoError(c.t, c.readUntil(proto.TState).Payload(&st))
	return st.State
}

type recorderStub struct {
	recs chan history.Record
}

func (r *recorderStub) Record(_ context.Context, rec history.Record) error {
	r.recs <- rec
	return nil
}

func TestFullGameOverWebsocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hist := &recorderStub{recs: make(chan history.Record, 1)}
	srv := newTestServer(t, hist)

	alice := dialClient(t, ctx, srv)
	bob := dialClient(t, ctx, srv)
	alice.hello("alice")
	bob.hello("bob")

	alice.send(proto.TJoinLobby, nil)
	var lobby proto.Lobby
	require.NoError(t, alice.readUntil(proto.TLobby).Payload(&lobby))
	assert.Empty(t, lobby.Games)
	bob.send(proto.TJoinLobby, nil)
	bob.readUntil(proto.TLobby)

	alice.send(proto.TCreateGame, nil)
	var gc proto.GameChanged
	require.NoError(t, alice.readUntil(proto.TGameChanged).Payload(&gc))
	id := gc.Game.ID
	require.NotEmpty(t, id)
	assert.Equal(t, "open", gc.Game.Status)

	alice.send(proto.TJoinGame, proto.JoinGame{ID: id})
	var gj proto.GameJoined
	require.NoError(t, alice.readUntil(proto.TGameJoined).Payload(&gj))
	assert.Equal(t, 0, gj.Index)
	assert.False(t, gj.Spectator)
	var pc proto.PlayersChanged
	require.NoError(t, alice.readUntil(proto.TPlayersChanged).Payload(&pc))
	assert.Equal(t, []string{"alice"}, pc.Names)

	bob.send(proto.TJoinGame, proto.JoinGame{ID: id})
	require.NoError(t, bob.readUntil(proto.TGameJoined).Payload(&gj))
	assert.Equal(t, 1, gj.Index)

	require.NoError(t, alice.readUntil(proto.TPlayersChanged).Payload(&pc))
	assert.Equal(t, []string{"alice", "bob"}, pc.Names)

	bob.send(proto.TStartGame, proto.StartGame{ID: id})
	var gs proto.GameStarted
	require.NoError(t, alice.readUntil(proto.TGameStarted).Payload(&gs))
	require.Len(t, gs.State.Hand, 1, "alice sees her own hand")
	free := gs.State.FreeBoundaryPorts()
	require.NoError(t, bob.readUntil(proto.TGameStarted).Payload(&gs))
	require.Len(t, gs.State.Hand, 1)

	alice.send(proto.TPlaceToken, proto.PlaceToken{ID: id, Port: free[0]})
	alice.readUntil(proto.TTokenPlaced)
	bob.readUntil(proto.TTokenPlaced)
	bob.send(proto.TPlaceToken, proto.PlaceToken{ID: id, Port: free[1]})
	alice.readUntil(proto.TAllTokensPlaced)
	bob.readUntil(proto.TAllTokensPlaced)

	// Play until done. Every member receives a fresh view after each
	// placement; the mover plays its first legal option.
	clients := []*client{alice, bob}
	for {
		va := alice.state()
		vb := bob.state()
		if va.Phase == game.PhaseDone {
			require.Equal(t, game.PhaseDone, vb.Phase)
			break
		}
		mover := clients[va.Current]
		view := []game.View{va, vb}[va.Current]
		moves := view.LegalTilePlacements(va.Current)
		require.NotEmpty(t, moves)
		mover.send(proto.TPlaceTile, proto.PlaceTile{
			ID: id, Index: moves[0].Index, Rotation: moves[0].Rotation, Loc: moves[0].Loc,
		})
		alice.readUntil(proto.TTilePlaced)
		bob.readUntil(proto.TTilePlaced)
	}

	var over proto.GameOver
	require.NoError(t, alice.readUntil(proto.TGameOver).Payload(&over))
	assert.Equal(t, id, over.ID)
	assert.NotEmpty(t, over.Winners)
	bob.readUntil(proto.TGameOver)

	select {
	case rec := <-hist.recs:
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, []string{"alice", "bob"}, rec.Players)
		assert.Equal(t, over.Winners, rec.Winners)
	case <-ctx.Done():
		t.Fatal("no history record written")
	}
}

func TestUsernameValidation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv := newTestServer(t, nil)
	c := dialClient(t, ctx, srv)

	c.send(proto.TSetUsername, proto.SetUsername{Name: "   "})
	c.readUntil(proto.TUsernameRejected)

	c.send(proto.TSetUsername, proto.SetUsername{Name: strings.Repeat("x", 40)})
	c.readUntil(proto.TUsernameRejected)

	c.send(proto.TSetUsername, proto.SetUsername{Name: "  carol  "})
	var w proto.Welcome
	require.NoError(t, c.readUntil(proto.TWelcome).Payload(&w))
	assert.Equal(t, "carol", w.Name, "name is trimmed")
}

func TestRejections(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv := newTestServer(t, nil)
	c := dialClient(t, ctx, srv)

	// No username yet.
	c.send(proto.TCreateGame, nil)
	var rej proto.Rejected
	require.NoError(t, c.readUntil(proto.TRejected).Payload(&rej))
	assert.Equal(t, "set a username first", rej.Reason)

	c.hello("carol")

	c.send(proto.TJoinGame, proto.JoinGame{ID: "no-such-game"})
	require.NoError(t, c.readUntil(proto.TRejected).Payload(&rej))
	assert.Equal(t, "no such game", rej.Reason)

	c.send(proto.TCreateGame, nil)
	var gc proto.GameChanged
	require.NoError(t, c.readUntil(proto.TGameChanged).Payload(&gc))
	c.send(proto.TJoinGame, proto.JoinGame{ID: gc.Game.ID})
	c.readUntil(proto.TGameJoined)

	// Moves before the start bounce.
	c.send(proto.TPlaceToken, proto.PlaceToken{ID: gc.Game.ID, Port: board.Port{X: 0, Y: 0, DY: 1}})
	require.NoError(t, c.readUntil(proto.TRejected).Payload(&rej))
	assert.Equal(t, "game not started", rej.Reason)

	// A lone player cannot start.
	c.send(proto.TStartGame, proto.StartGame{ID: gc.Game.ID})
	require.NoError(t, c.readUntil(proto.TRejected).Payload(&rej))
	assert.Equal(t, "cannot start", rej.Reason)
}

func TestLateJoinerSpectates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv := newTestServer(t, nil)

	alice := dialClient(t, ctx, srv)
	bob := dialClient(t, ctx, srv)
	alice.hello("alice")
	bob.hello("bob")

	alice.send(proto.TCreateGame, nil)
	var gc proto.GameChanged
	require.NoError(t, alice.readUntil(proto.TGameChanged).Payload(&gc))
	id := gc.Game.ID
	alice.send(proto.TJoinGame, proto.JoinGame{ID: id})
	alice.readUntil(proto.TGameJoined)
	bob.send(proto.TJoinGame, proto.JoinGame{ID: id})
	bob.readUntil(proto.TGameJoined)
	alice.send(proto.TStartGame, proto.StartGame{ID: id})
	alice.readUntil(proto.TGameStarted)

	carol := dialClient(t, ctx, srv)
	carol.hello("carol")
	carol.send(proto.TJoinGame, proto.JoinGame{ID: id})
	var gj proto.GameJoined
	require.NoError(t, carol.readUntil(proto.TGameJoined).Payload(&gj))
	assert.True(t, gj.Spectator)
	assert.Equal(t, -1, gj.Index)

	// Spectators get the redacted state straight away, with no hand.
	v := carol.state()
	assert.Nil(t, v.Hand)
	assert.Equal(t, []int{1, 1}, v.HandSizes)
}

func TestOriginAllowlist(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub := NewHub([]string{"https://game.example"}, testRules(t), nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://game.example"}},
	})
	require.NoError(t, err)
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
