// Package ws runs the websocket side of the server: it accepts connections,
// decodes protocol frames, drives the lobby and games, and fans redacted
// game state out to the right peers.
package ws

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"pathtiles/internal/game"
	"pathtiles/internal/history"
	"pathtiles/internal/proto"
)

// Recorder persists finished games. Satisfied by *history.Store.
type Recorder interface {
	Record(ctx context.Context, rec history.Record) error
}

const maxUsernameLen = 32

// Hub owns the peers, the lobby and all live games. Per-message handlers run
// on each connection's reader goroutine; stateMu serializes everything that
// touches the lobby, the games or peer names.
type Hub struct {
	allowOrigins map[string]bool
	rules        game.Rules
	history      Recorder

	mu    sync.RWMutex
	peers map[string]*Peer // by key

	stateMu sync.Mutex
	lobby   *game.Lobby
	inLobby map[string]struct{}
}

// NewHub creates a hub hosting games with the given rules. hist may be nil.
func NewHub(allow []string, rules game.Rules, hist Recorder) *Hub {
	m := map[string]bool{}
	for _, a := range allow {
		if a != "" {
			m[a] = true
		}
	}
	return &Hub{
		allowOrigins: m,
		rules:        rules,
		history:      hist,
		peers:        map[string]*Peer{},
		lobby:        game.NewLobby(),
		inLobby:      map[string]struct{}{},
	}
}

// ServeWS upgrades the request and runs the peer until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && len(h.allowOrigins) > 0 && !h.allowOrigins[origin] {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}

	peer := newPeer(c)
	h.mu.Lock()
	h.peers[peer.key] = peer
	h.mu.Unlock()
	log.Printf("peer %s connected", peer.key)

	// writer
	go func() {
		ping := time.NewTicker(15 * time.Second)
		defer func() { ping.Stop(); _ = c.Close(websocket.StatusNormalClosure, "bye") }()
		for {
			select {
			case msg, ok := <-peer.send:
				if !ok {
					return
				}
				_ = c.Write(r.Context(), websocket.MessageText, msg)
			case <-ping.C:
				_ = c.Ping(r.Context())
			}
		}
	}()

	// reader
	for {
		_, data, err := c.Read(r.Context())
		if err != nil {
			break
		}
		msg, err := proto.Decode(data)
		if err != nil {
			log.Printf("peer %s sent garbage: %v", peer.key, err)
			continue
		}
		h.dispatch(peer, msg)
	}

	h.mu.Lock()
	delete(h.peers, peer.key)
	close(peer.send)
	h.mu.Unlock()

	h.stateMu.Lock()
	delete(h.inLobby, peer.key)
	changed := h.lobby.RemovePeer(peer.key)
	for _, g := range changed {
		h.broadcastGame(g, proto.TPlayersChanged, proto.PlayersChanged{ID: g.ID(), Names: g.PlayerNames()})
		h.broadcastLobby(proto.TGameChanged, proto.GameChanged{Game: proto.Summarize(g)})
	}
	h.stateMu.Unlock()

	log.Printf("peer %s disconnected", peer.key)
}

func (h *Hub) dispatch(peer *Peer, msg proto.Msg) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	switch msg.T {
	case proto.TSetUsername:
		var req proto.SetUsername
		if msg.Payload(&req) != nil {
			h.reject(peer, "", "bad payload")
			return
		}
		h.handleSetUsername(peer, req)
	case proto.TJoinLobby:
		h.handleJoinLobby(peer)
	case proto.TCreateGame:
		h.handleCreateGame(peer)
	case proto.TJoinGame:
		var req proto.JoinGame
		if msg.Payload(&req) != nil {
			h.reject(peer, "", "bad payload")
			return
		}
		h.handleJoinGame(peer, req)
	case proto.TStartGame:
		var req proto.StartGame
		if msg.Payload(&req) != nil {
			h.reject(peer, "", "bad payload")
			return
		}
		h.handleStartGame(peer, req)
	case proto.TPlaceToken:
		var req proto.PlaceToken
		if msg.Payload(&req) != nil {
			h.reject(peer, "", "bad payload")
			return
		}
		h.handlePlaceToken(peer, req)
	case proto.TPlaceTile:
		var req proto.PlaceTile
		if msg.Payload(&req) != nil {
			h.reject(peer, "", "bad payload")
			return
		}
		h.handlePlaceTile(peer, req)
	default:
		// Unknown types are ignored so newer clients don't get kicked.
	}
}

// ---- handlers (stateMu held) ----

func (h *Hub) handleSetUsername(peer *Peer, req proto.SetUsername) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxUsernameLen {
		h.sendTo(peer, proto.TUsernameRejected, nil)
		return
	}
	peer.name = name
	log.Printf("peer %s is now %q", peer.key, name)
	h.sendTo(peer, proto.TWelcome, proto.Welcome{Name: name})
}

func (h *Hub) handleJoinLobby(peer *Peer) {
	h.inLobby[peer.key] = struct{}{}
	h.sendTo(peer, proto.TLobby, proto.Lobby{Games: h.summaries()})
}

func (h *Hub) handleCreateGame(peer *Peer) {
	if peer.name == "" {
		h.reject(peer, "", "set a username first")
		return
	}
	g := h.lobby.Create(h.rules)
	log.Printf("game %s created by %q", g.ID(), peer.name)
	h.sendTo(peer, proto.TGameChanged, proto.GameChanged{Game: proto.Summarize(g)})
	h.broadcastLobby(proto.TGameChanged, proto.GameChanged{Game: proto.Summarize(g)})
}

func (h *Hub) handleJoinGame(peer *Peer, req proto.JoinGame) {
	g := h.lobby.Get(req.ID)
	if g == nil {
		h.reject(peer, req.ID, "no such game")
		return
	}
	if peer.name == "" {
		h.reject(peer, req.ID, "set a username first")
		return
	}

	index, err := g.AddPlayer(peer.key, peer.name)
	spectator := false
	if err != nil {
		// Game underway and the name is new: watch instead.
		g.AddSpectator(peer.key, peer.name)
		index, spectator = -1, true
	}
	log.Printf("game %s: %q joined (seat=%d spectator=%v)", g.ID(), peer.name, index, spectator)

	h.sendTo(peer, proto.TGameJoined, proto.GameJoined{Game: proto.Summarize(g), Index: index, Spectator: spectator})
	if g.Started() {
		h.sendTo(peer, proto.TState, proto.State{ID: g.ID(), State: g.State().VisibleState(index)})
	}
	h.broadcastGame(g, proto.TPlayersChanged, proto.PlayersChanged{ID: g.ID(), Names: g.PlayerNames()})
	h.broadcastLobby(proto.TGameChanged, proto.GameChanged{Game: proto.Summarize(g)})
}

func (h *Hub) handleStartGame(peer *Peer, req proto.StartGame) {
	g := h.lobby.Get(req.ID)
	if g == nil {
		h.reject(peer, req.ID, "no such game")
		return
	}
	if g.PlayerIndex(peer.key) < 0 {
		h.reject(peer, req.ID, "not in this game")
		return
	}
	if err := g.Start(nil); err != nil {
		log.Printf("game %s: start failed: %v", g.ID(), err)
		h.reject(peer, req.ID, "cannot start")
		return
	}
	log.Printf("game %s started with %d players", g.ID(), g.NumPlayers())

	for _, m := range g.Members() {
		h.sendToKey(m.Key, proto.TGameStarted, proto.GameStarted{
			ID:    g.ID(),
			State: g.State().VisibleState(g.PlayerIndex(m.Key)),
		})
	}
	h.broadcastLobby(proto.TGameChanged, proto.GameChanged{Game: proto.Summarize(g)})
}

func (h *Hub) handlePlaceToken(peer *Peer, req proto.PlaceToken) {
	g, index, ok := h.seat(peer, req.ID)
	if !ok {
		return
	}
	if err := g.State().PlaceToken(index, req.Port); err != nil {
		log.Printf("game %s: %q place token: %v", g.ID(), peer.name, err)
		h.reject(peer, g.ID(), "illegal token placement")
		return
	}
	h.broadcastGame(g, proto.TTokenPlaced, proto.TokenPlaced{ID: g.ID(), Player: index, Port: req.Port})

	if g.State().Phase() == game.PhasePlay {
		h.broadcastGame(g, proto.TAllTokensPlaced, proto.AllTokensPlaced{ID: g.ID()})
		h.sendStates(g)
		h.notifyTurn(g)
	}
}

func (h *Hub) handlePlaceTile(peer *Peer, req proto.PlaceTile) {
	g, index, ok := h.seat(peer, req.ID)
	if !ok {
		return
	}
	dead, err := g.State().PlaceTile(index, req.Index, req.Rotation, req.Loc)
	if err != nil {
		log.Printf("game %s: %q place tile: %v", g.ID(), peer.name, err)
		h.reject(peer, g.ID(), "illegal tile placement")
		return
	}
	if len(dead) > 0 {
		log.Printf("game %s: placement by %q killed players %v", g.ID(), peer.name, dead)
	}
	h.broadcastGame(g, proto.TTilePlaced, proto.TilePlaced{
		ID: g.ID(), Player: index, Index: req.Index, Rotation: req.Rotation, Loc: req.Loc,
	})
	h.sendStates(g)

	if g.State().Phase() == game.PhaseDone {
		winners := h.winnerNames(g)
		log.Printf("game %s over, winners: %v", g.ID(), winners)
		h.broadcastGame(g, proto.TGameOver, proto.GameOver{ID: g.ID(), Winners: winners})
		h.broadcastLobby(proto.TGameChanged, proto.GameChanged{Game: proto.Summarize(g)})
		h.record(g, winners)
		return
	}
	h.notifyTurn(g)
}

// seat resolves a game id and the peer's seat, rejecting as needed.
func (h *Hub) seat(peer *Peer, id string) (*game.Instance, int, bool) {
	g := h.lobby.Get(id)
	if g == nil {
		h.reject(peer, id, "no such game")
		return nil, 0, false
	}
	if !g.Started() {
		h.reject(peer, id, "game not started")
		return nil, 0, false
	}
	index := g.PlayerIndex(peer.key)
	if index < 0 {
		h.reject(peer, id, "not a player in this game")
		return nil, 0, false
	}
	return g, index, true
}

// ---- fan-out helpers ----

func (h *Hub) sendTo(peer *Peer, t string, payload any) {
	b, err := proto.Encode(t, payload)
	if err != nil {
		log.Printf("encode %s: %v", t, err)
		return
	}
	select {
	case peer.send <- b:
	default:
	}
}

func (h *Hub) sendToKey(key, t string, payload any) {
	h.mu.RLock()
	peer := h.peers[key]
	h.mu.RUnlock()
	if peer != nil {
		h.sendTo(peer, t, payload)
	}
}

func (h *Hub) broadcastGame(g *game.Instance, t string, payload any) {
	for _, m := range g.Members() {
		h.sendToKey(m.Key, t, payload)
	}
}

func (h *Hub) broadcastLobby(t string, payload any) {
	for key := range h.inLobby {
		h.sendToKey(key, t, payload)
	}
}

// sendStates fans the per-member redacted view out to a game.
func (h *Hub) sendStates(g *game.Instance) {
	for _, m := range g.Members() {
		h.sendToKey(m.Key, proto.TState, proto.State{
			ID:    g.ID(),
			State: g.State().VisibleState(g.PlayerIndex(m.Key)),
		})
	}
}

func (h *Hub) notifyTurn(g *game.Instance) {
	current := g.State().Current()
	for _, m := range g.Members() {
		if g.PlayerIndex(m.Key) == current {
			h.sendToKey(m.Key, proto.TYourTurn, proto.YourTurn{ID: g.ID()})
		}
	}
}

func (h *Hub) reject(peer *Peer, id, reason string) {
	h.sendTo(peer, proto.TRejected, proto.Rejected{ID: id, Reason: reason})
}

func (h *Hub) summaries() []proto.GameSummary {
	games := h.lobby.Games()
	out := make([]proto.GameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, proto.Summarize(g))
	}
	return out
}

func (h *Hub) winnerNames(g *game.Instance) []string {
	names := g.PlayerNames()
	var winners []string
	for _, w := range g.State().Winners() {
		if w >= 0 && w < len(names) {
			winners = append(winners, names[w])
		}
	}
	return winners
}

func (h *Hub) record(g *game.Instance, winners []string) {
	if h.history == nil {
		return
	}
	rec := history.Record{
		ID:         g.ID(),
		StartedAt:  g.StartedAt(),
		FinishedAt: time.Now(),
		Players:    g.PlayerNames(),
		Winners:    winners,
	}
	if err := h.history.Record(context.Background(), rec); err != nil {
		log.Printf("game %s: record history: %v", g.ID(), err)
	}
}
