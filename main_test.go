package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// ---------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------

func testConfig() *Config {
	return &Config{
		maxPlayers:   10,
		questionTime: 60 * time.Second,
		revealDelay:  3 * time.Second,
		returnDelay:  8 * time.Second,
		roomTimeout:  time.Hour,
	}
}

// stubProvider satisfies questionProvider without network access.
type stubProvider struct {
	questions []question
	err       error
}

func (s *stubProvider) Generate(_ context.Context, _ string, _ int) ([]question, error) {
	return s.questions, s.err
}

func testQuestions(n int) []question {
	questions := make([]question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, question{
			Question:      fmt.Sprintf("Question %d", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
		})
	}
	return questions
}

func newTestManager(clock clockwork.Clock, provider questionProvider) *RoomManager {
	return newRoomManager(testConfig(), clock, provider)
}

// newTestClient builds a client without a websocket connection; outbound
// messages pile up in the buffered send channel.
func newTestClient(id string) *client {
	return &client{
		id:   id,
		send: make(chan any, 256),
	}
}

func messageType(msg any) string {
	switch m := msg.(type) {
	case simpleMessage:
		return m.Type
	case roomStateMessage:
		return m.Type
	case roomUpdateMessage:
		return m.Type
	case gameStartedMessage:
		return m.Type
	case progressUpdateMessage:
		return m.Type
	case topicsUpdatedMessage:
		return m.Type
	case votingStartedMessage:
		return m.Type
	case votingEndedMessage:
		return m.Type
	case quizStartedMessage:
		return m.Type
	case timerStartedMessage:
		return m.Type
	case answerProgressMessage:
		return m.Type
	case revealAnswerMessage:
		return m.Type
	case nextQuestionMessage:
		return m.Type
	case quizEndedMessage:
		return m.Type
	case returnToLobbyMessage:
		return m.Type
	case quizErrorMessage:
		return m.Type
	case roomLiveStateMessage:
		return m.Type
	default:
		return ""
	}
}

// nextOfType waits for the next queued message of the given type, discarding
// everything else.
func nextOfType(t *testing.T, c *client, want string) any {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.send:
			if messageType(msg) == want {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q message", want)
		}
	}
}

// countQueued drains the currently queued messages and counts those of the
// given type.
func countQueued(c *client, want string) int {
	count := 0
	for {
		select {
		case msg := <-c.send:
			if messageType(msg) == want {
				count++
			}
		default:
			return count
		}
	}
}

func drain(c *client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

// joinPlayers joins the given named clients to a room, in order.
func joinPlayers(t *testing.T, rm *RoomManager, code string, clients ...*client) {
	t.Helper()

	for i, c := range clients {
		rm.handleJoinRoom(c, clientMessage{
			Type:     "join-room",
			RoomCode: code,
			Name:     fmt.Sprintf("player-%d", i+1),
		})
	}

	r := rm.room(code)
	if r == nil {
		t.Fatalf("room %s was not created", code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.players) != len(clients) {
		t.Fatalf("joined %d players, want %d", len(r.players), len(clients))
	}
}

// startQuiz walks a room from the lobby to a running quiz: the host starts
// the game, every player submits a topic and votes for another player's
// topic, and the host starts the quiz.
func startQuiz(t *testing.T, rm *RoomManager, code string, questionCount int, clients ...*client) {
	t.Helper()

	host := clients[0]
	rm.handleStartGame(host, clientMessage{Type: "start-game", RoomCode: code})

	for i, c := range clients {
		rm.handleSubmitTopic(c, clientMessage{
			Type:     "submit-topic",
			RoomCode: code,
			Topic:    fmt.Sprintf("topic-%d", i+1),
		})
	}
	for i, c := range clients {
		// Vote for the next player's topic; never your own.
		target := fmt.Sprintf("topic-%d", (i+1)%len(clients)+1)
		rm.handleVoteTopic(c, clientMessage{
			Type:     "vote-topic",
			RoomCode: code,
			Topic:    target,
		})
	}

	rm.handleStartQuiz(host, clientMessage{
		Type:          "start-quiz",
		RoomCode:      code,
		QuestionCount: questionCount,
	})

	r := rm.room(code)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != phasePlaying {
		t.Fatalf("quiz did not start: phase %q", r.phase)
	}
}
