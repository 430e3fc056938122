package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
)

// wsExpect reads frames until one of the wanted type arrives, decoded into a
// generic map so tests can assert on the wire shape clients actually see.
func wsExpect(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}

		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("malformed frame %q: %v", data, err)
		}
		if msg["type"] == want {
			return msg
		}
	}
}

func wsSend(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %q: %v", msg.Type, err)
	}
}

func TestWebsocketQuizRound(t *testing.T) {
	cfg := testConfig()
	cfg.revealDelay = 100 * time.Millisecond
	cfg.returnDelay = 100 * time.Millisecond

	rm := newRoomManager(cfg, clockwork.NewRealClock(), &stubProvider{questions: testQuestions(1)})

	router := httprouter.New()
	router.GET("/ws", serveWS(cfg, rm))

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	dial := func() *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		return conn
	}

	host := dial()
	defer host.Close()
	guest := dial()
	defer guest.Close()

	wsSend(t, host, clientMessage{Type: "join-room", RoomCode: "GAME", Name: "Host"})
	update := wsExpect(t, host, "room-update")
	if update["hostId"] == "" {
		t.Fatal("no hostId in room-update")
	}

	wsSend(t, guest, clientMessage{Type: "join-room", RoomCode: "GAME", Name: "Guest"})
	wsExpect(t, guest, "room-update")

	wsSend(t, host, clientMessage{Type: "start-game", RoomCode: "GAME"})
	started := wsExpect(t, guest, "game-started")
	if started["phase"] != phaseTopicSuggestion {
		t.Fatalf("phase = %v, want %q", started["phase"], phaseTopicSuggestion)
	}

	wsSend(t, host, clientMessage{Type: "submit-topic", RoomCode: "GAME", Topic: "Space"})
	// Wait for the broadcast so the server records "Space" before "Music";
	// the two submissions arrive on different sockets, so without this the
	// processing order (and thus the tie-break) is racy.
	wsExpect(t, guest, "topics-updated")
	wsSend(t, guest, clientMessage{Type: "submit-topic", RoomCode: "GAME", Topic: "Music"})
	wsExpect(t, host, "voting-started")

	wsSend(t, host, clientMessage{Type: "vote-topic", RoomCode: "GAME", Topic: "Music"})
	wsSend(t, guest, clientMessage{Type: "vote-topic", RoomCode: "GAME", Topic: "Space"})
	ended := wsExpect(t, host, "voting-ended")
	if ended["winningTopic"] != "Space" {
		t.Fatalf("winningTopic = %v, want Space", ended["winningTopic"])
	}

	wsSend(t, host, clientMessage{Type: "start-quiz", RoomCode: "GAME", QuestionCount: 1})
	wsExpect(t, guest, "quiz-started")
	wsExpect(t, guest, "timer-started")

	wsSend(t, host, clientMessage{Type: "submit-answer", RoomCode: "GAME", Answer: "A"})
	wsSend(t, guest, clientMessage{Type: "submit-answer", RoomCode: "GAME", Answer: "B"})

	reveal := wsExpect(t, guest, "reveal-answer")
	if reveal["correctAnswer"] != "A" {
		t.Fatalf("correctAnswer = %v, want A", reveal["correctAnswer"])
	}

	final := wsExpect(t, guest, "quiz-ended")
	scores, ok := final["scores"].(map[string]any)
	if !ok || len(scores) != 2 {
		t.Fatalf("scores = %v", final["scores"])
	}

	wsExpect(t, guest, "return-to-lobby")

	r := rm.room("GAME")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != phaseLobby {
		t.Errorf("phase = %q, want %q after the round", r.phase, phaseLobby)
	}
}

func TestWebsocketSpectatorLiveState(t *testing.T) {
	cfg := testConfig()
	rm := newRoomManager(cfg, clockwork.NewRealClock(), &stubProvider{})

	router := httprouter.New()
	router.GET("/ws", serveWS(cfg, rm))

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	player, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer player.Close()

	wsSend(t, player, clientMessage{Type: "join-room", RoomCode: "GAME", Name: "Host"})
	wsExpect(t, player, "room-update")

	watcher, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer watcher.Close()

	wsSend(t, watcher, clientMessage{Type: "join-as-spectator", RoomCode: "GAME"})
	live := wsExpect(t, watcher, "room-live-state")

	if live["roomCode"] != "GAME" || live["phase"] != phaseLobby {
		t.Fatalf("live state = %v", live)
	}
	players, ok := live["players"].([]any)
	if !ok || len(players) != 1 {
		t.Fatalf("players = %v, want 1 entry", live["players"])
	}
	if n, _ := live["spectatorsCount"].(float64); n != 1 {
		t.Errorf("spectatorsCount = %v, want 1", live["spectatorsCount"])
	}
}
