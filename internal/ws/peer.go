package ws

import (
	crand "crypto/rand"
	"encoding/hex"

	"nhooyr.io/websocket"
)

// Peer is one connected client. key identifies the connection in game
// membership; name is set by set_username and guarded by the hub's state
// lock.
type Peer struct {
	key  string
	name string
	conn *websocket.Conn
	send chan []byte
}

func newPeer(conn *websocket.Conn) *Peer {
	return &Peer{key: randID(), conn: conn, send: make(chan []byte, 64)}
}

func randID() string {
	var b [8]byte
	_, _ = crand.Read(b[:])
	return hex.EncodeToString(b[:])
}
