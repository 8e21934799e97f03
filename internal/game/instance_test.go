package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathtiles/internal/board"
)

func testRules(t *testing.T) Rules {
	t.Helper()
	b, err := board.NewRectangle(6, 6, 2)
	require.NoError(t, err)
	return Rules{Board: b, TilesPerPlayer: 3}
}

func TestInstanceSeating(t *testing.T) {
	g := NewInstance(testRules(t))
	assert.NotEmpty(t, g.ID())
	assert.False(t, g.Started())
	assert.Equal(t, "open", g.Status())

	i, err := g.AddPlayer("key-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	i, err = g.AddPlayer("key-b", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, []string{"alice", "bob"}, g.PlayerNames())

	// Same name from a new connection rebinds the seat instead of adding one.
	i, err = g.AddPlayer("key-a2", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	assert.Equal(t, 2, g.NumPlayers())
	assert.Equal(t, 0, g.PlayerIndex("key-a2"))
	assert.Equal(t, -1, g.PlayerIndex("key-a"))
}

func TestInstanceStartClosesSeating(t *testing.T) {
	g := NewInstance(testRules(t))
	_, err := g.AddPlayer("key-a", "alice")
	require.NoError(t, err)

	require.Error(t, g.Start(rand.New(rand.NewSource(1))), "one player is not enough")
	assert.False(t, g.Started())

	_, err = g.AddPlayer("key-b", "bob")
	require.NoError(t, err)
	require.NoError(t, g.Start(rand.New(rand.NewSource(1))))
	assert.True(t, g.Started())
	assert.Equal(t, "playing", g.Status())
	assert.False(t, g.StartedAt().IsZero())
	assert.ErrorIs(t, g.Start(rand.New(rand.NewSource(1))), ErrStarted)

	_, err = g.AddPlayer("key-c", "carol")
	assert.ErrorIs(t, err, ErrStarted)

	// Reconnects by name still work after the start.
	i, err := g.AddPlayer("key-b2", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
}

func TestInstanceRemovePeer(t *testing.T) {
	g := NewInstance(testRules(t))
	_, err := g.AddPlayer("key-a", "alice")
	require.NoError(t, err)
	_, err = g.AddPlayer("key-b", "bob")
	require.NoError(t, err)
	g.AddSpectator("key-s", "sam")
	assert.True(t, g.HasPeer("key-s"))

	// Before the start a disconnect frees the seat.
	assert.True(t, g.RemovePeer("key-b"))
	assert.Equal(t, []string{"alice"}, g.PlayerNames())
	assert.False(t, g.RemovePeer("key-b"), "already gone")

	_, err = g.AddPlayer("key-b", "bob")
	require.NoError(t, err)
	require.NoError(t, g.Start(rand.New(rand.NewSource(1))))

	// After the start the seat survives for reconnection.
	assert.False(t, g.RemovePeer("key-b"))
	assert.Equal(t, []string{"alice", "bob"}, g.PlayerNames())

	// Spectators are always dropped.
	assert.True(t, g.RemovePeer("key-s"))
	assert.False(t, g.HasPeer("key-s"))
}

func TestInstanceMembers(t *testing.T) {
	g := NewInstance(testRules(t))
	_, err := g.AddPlayer("key-a", "alice")
	require.NoError(t, err)
	g.AddSpectator("key-s", "sam")
	g.AddSpectator("key-s2", "sam") // rebind, not a second entry

	members := g.Members()
	require.Len(t, members, 2)
	assert.Equal(t, Member{Key: "key-a", Name: "alice"}, members[0])
	assert.Equal(t, Member{Key: "key-s2", Name: "sam"}, members[1])
}

func TestLobbyRegistry(t *testing.T) {
	l := NewLobby()
	assert.Empty(t, l.Games())

	a := l.Create(testRules(t))
	b := l.Create(testRules(t))
	assert.Same(t, a, l.Get(a.ID()))
	assert.Nil(t, l.Get("no-such-game"))

	games := l.Games()
	require.Len(t, games, 2)
	assert.Same(t, a, games[0], "creation order is stable")
	assert.Same(t, b, games[1])

	l.Remove(a.ID())
	l.Remove(a.ID()) // idempotent
	games = l.Games()
	require.Len(t, games, 1)
	assert.Same(t, b, games[0])
}

func TestLobbyRemovePeer(t *testing.T) {
	l := NewLobby()
	a := l.Create(testRules(t))
	b := l.Create(testRules(t))
	_, err := a.AddPlayer("key-x", "xavier")
	require.NoError(t, err)
	b.AddSpectator("key-x", "xavier")

	changed := l.RemovePeer("key-x")
	assert.Len(t, changed, 2)
	assert.Empty(t, l.RemovePeer("key-x"))
}
