// Package bot is a headless protocol client: it joins a game over the
// websocket API, places its token, and plays legal tiles until the game
// ends. It stands in for the browser client in tests and load drills.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"nhooyr.io/websocket"

	"pathtiles/internal/board"
	"pathtiles/internal/game"
	"pathtiles/internal/proto"
)

// Strategy picks one of the legal placements. moves is never empty.
type Strategy func(view game.View, moves []game.Placement) int

// First always plays the first legal placement.
func First(game.View, []game.Placement) int { return 0 }

// Options configure one bot run.
type Options struct {
	URL    string
	Name   string
	GameID string // join this game; empty means create one
	// StartAt sends start_game once this many players are seated. Zero
	// leaves starting to someone else.
	StartAt  int
	Strategy Strategy
}

// Result is the outcome of a finished game.
type Result struct {
	GameID  string
	Winners []string
}

// Run plays one game to completion and reports the winners.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Name == "" {
		return Result{}, errors.New("bot needs a name")
	}
	if opts.Strategy == nil {
		opts.Strategy = First
	}

	conn, _, err := websocket.Dial(ctx, opts.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	b := &bot{conn: conn, opts: opts, index: -1, taken: map[board.Port]bool{}}
	return b.run(ctx)
}

type bot struct {
	conn  *websocket.Conn
	opts  Options
	index int

	gameID       string
	joined       bool
	started      bool
	startSent    bool
	tokenAttempt int
	tokenPending bool
	view         *game.View
	taken        map[board.Port]bool // starting ports known to be occupied
}

func (b *bot) run(ctx context.Context) (Result, error) {
	if err := b.send(ctx, proto.TSetUsername, proto.SetUsername{Name: b.opts.Name}); err != nil {
		return Result{}, err
	}

	for {
		_, data, err := b.conn.Read(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("read: %w", err)
		}
		msg, err := proto.Decode(data)
		if err != nil {
			return Result{}, err
		}
		done, result, err := b.handle(ctx, msg)
		if err != nil {
			return Result{}, err
		}
		if done {
			return result, nil
		}
	}
}

func (b *bot) handle(ctx context.Context, msg proto.Msg) (bool, Result, error) {
	switch msg.T {
	case proto.TUsernameRejected:
		return false, Result{}, fmt.Errorf("username %q rejected", b.opts.Name)

	case proto.TWelcome:
		return false, Result{}, b.send(ctx, proto.TJoinLobby, nil)

	case proto.TLobby:
		if b.opts.GameID != "" {
			b.gameID = b.opts.GameID
			return false, Result{}, b.send(ctx, proto.TJoinGame, proto.JoinGame{ID: b.gameID})
		}
		return false, Result{}, b.send(ctx, proto.TCreateGame, nil)

	case proto.TGameChanged:
		var gc proto.GameChanged
		if err := msg.Payload(&gc); err != nil {
			return false, Result{}, err
		}
		// The echo of our create_game; join our own game.
		if b.gameID == "" {
			b.gameID = gc.Game.ID
			return false, Result{}, b.send(ctx, proto.TJoinGame, proto.JoinGame{ID: b.gameID})
		}
		return false, Result{}, nil

	case proto.TGameJoined:
		var gj proto.GameJoined
		if err := msg.Payload(&gj); err != nil {
			return false, Result{}, err
		}
		if gj.Spectator {
			return false, Result{}, fmt.Errorf("game %s already started, joined as spectator", gj.Game.ID)
		}
		b.joined = true
		b.index = gj.Index
		log.Printf("bot %s: seated at %d in game %s", b.opts.Name, b.index, b.gameID)
		return false, Result{}, nil

	case proto.TPlayersChanged:
		var pc proto.PlayersChanged
		if err := msg.Payload(&pc); err != nil {
			return false, Result{}, err
		}
		if b.joined && !b.startSent && b.opts.StartAt > 0 && len(pc.Names) >= b.opts.StartAt {
			b.startSent = true
			return false, Result{}, b.send(ctx, proto.TStartGame, proto.StartGame{ID: b.gameID})
		}
		return false, Result{}, nil

	case proto.TGameStarted:
		var gs proto.GameStarted
		if err := msg.Payload(&gs); err != nil {
			return false, Result{}, err
		}
		b.started = true
		b.view = &gs.State
		return false, Result{}, b.placeToken(ctx)

	case proto.TTokenPlaced:
		var tp proto.TokenPlaced
		if err := msg.Payload(&tp); err != nil {
			return false, Result{}, err
		}
		b.taken[tp.Port] = true
		if tp.Player == b.index {
			b.tokenPending = false
		}
		return false, Result{}, nil

	case proto.TState:
		var st proto.State
		if err := msg.Payload(&st); err != nil {
			return false, Result{}, err
		}
		b.view = &st.State
		return false, Result{}, nil

	case proto.TYourTurn:
		return false, Result{}, b.placeTile(ctx)

	case proto.TGameOver:
		var over proto.GameOver
		if err := msg.Payload(&over); err != nil {
			return false, Result{}, err
		}
		return true, Result{GameID: over.ID, Winners: over.Winners}, nil

	case proto.TRejected:
		var rej proto.Rejected
		if err := msg.Payload(&rej); err != nil {
			return false, Result{}, err
		}
		if b.tokenPending {
			// Someone beat us to the port; try the next one.
			b.tokenPending = false
			b.tokenAttempt++
			return false, Result{}, b.placeToken(ctx)
		}
		return false, Result{}, fmt.Errorf("server rejected move: %s", rej.Reason)
	}
	return false, Result{}, nil
}

// placeToken picks a free boundary port, offset by seat index so bots in
// the same game prefer different ports.
func (b *bot) placeToken(ctx context.Context) error {
	if b.view == nil || b.index < 0 || b.tokenPending {
		return nil
	}
	var free []board.Port
	for _, p := range b.view.FreeBoundaryPorts() {
		if !b.taken[p] {
			free = append(free, p)
		}
	}
	if len(free) == 0 {
		return errors.New("no free starting ports")
	}
	port := free[(b.index+b.tokenAttempt)%len(free)]
	b.tokenPending = true
	return b.send(ctx, proto.TPlaceToken, proto.PlaceToken{ID: b.gameID, Port: port})
}

func (b *bot) placeTile(ctx context.Context) error {
	if b.view == nil {
		return errors.New("turn notification before any state")
	}
	moves := b.view.LegalTilePlacements(b.index)
	if len(moves) == 0 {
		return errors.New("no legal placements")
	}
	choice := b.opts.Strategy(*b.view, moves)
	if choice < 0 || choice >= len(moves) {
		choice = 0
	}
	m := moves[choice]
	return b.send(ctx, proto.TPlaceTile, proto.PlaceTile{
		ID: b.gameID, Index: m.Index, Rotation: m.Rotation, Loc: m.Loc,
	})
}

func (b *bot) send(ctx context.Context, t string, payload any) error {
	data, err := proto.Encode(t, payload)
	if err != nil {
		return err
	}
	if err := b.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}
	return nil
}
