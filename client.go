package main

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one websocket connection, identified by a transient id for its
// lifetime. A client may be a player or a passive spectator of a room.
type client struct {
	id   string
	conn *websocket.Conn
	send chan any

	closeOnce sync.Once
}

// closeSend shuts the outbound channel exactly once; both the broadcast path
// and the disconnect path may race to drop a client.
func (c *client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// serveWS upgrades the connection and runs the read loop. All game events
// arrive as JSON messages tagged with a type field.
func serveWS(cfg *Config, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, 16),
		}

		logf(cfg, "SOCKET: Connected %s from %s", c.id, realIP(r))

		go c.writePump()
		c.readPump(rm)
	}
}

func (c *client) readPump(rm *RoomManager) {
	defer func() {
		rm.handleDisconnect(c)
		_ = c.conn.Close()
	}()

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join-room":
			rm.handleJoinRoom(c, msg)
		case "join-as-spectator":
			rm.handleJoinAsSpectator(c, msg)
		case "get-room-state":
			rm.handleGetRoomState(c, msg)
		case "start-game":
			rm.handleStartGame(c, msg)
		case "submit-topic":
			rm.handleSubmitTopic(c, msg)
		case "vote-topic":
			rm.handleVoteTopic(c, msg)
		case "start-quiz":
			rm.handleStartQuiz(c, msg)
		case "submit-answer":
			rm.handleSubmitAnswer(c, msg)
		default:
			// ignore unknown types
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
