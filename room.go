package main

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Room phases. Transitions follow a strict forward cycle with a single reset
// edge back to the lobby.
const (
	phaseLobby           = "lobby"
	phaseTopicSuggestion = "topic_suggestion"
	phaseTopicVoting     = "topic_voting"
	phaseQuestionConfig  = "question_config"
	phasePlaying         = "playing"
	phaseRevealing       = "revealing"
	phaseResults         = "results"
)

const gameQuiz = "quiz"

// player is the data we store server-side for each participant.
type player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

type topicEntry struct {
	Votes     int    `json:"votes"`
	CreatedBy string `json:"createdBy"`
}

type playerAnswer struct {
	Answer     string    `json:"answer"`
	AnsweredAt time.Time `json:"answeredAt"`
}

type questionTimer struct {
	Duration time.Duration `json:"-"`
	EndsAt   int64         `json:"endsAt"` // unix milliseconds
}

// room is one isolated game session keyed by a shareable code. All fields are
// guarded by mu; helpers with the Locked suffix assume the caller holds it.
type room struct {
	mu sync.Mutex

	code         string
	phase        string
	selectedGame string

	clients    map[*client]bool
	players    []*player
	spectators map[string]bool
	hostID     string

	topics        map[string]*topicEntry
	topicOrder    []string // insertion order, breaks vote ties
	topicByPlayer map[string]string
	votes         map[string]string
	winningTopic  string

	// activeGameID identifies the current quiz run. Timer callbacks from a
	// superseded run compare against it and become no-ops.
	activeGameID      string
	questions         []question
	currentIndex      int
	answers           map[string]playerAnswer
	scores            map[string]int
	timer             *questionTimer
	questionStartedAt time.Time

	liveQuiz *quizSnapshot

	countdownTimer clockwork.Timer
	advanceTimer   clockwork.Timer
	returnTimer    clockwork.Timer

	createdAt  time.Time
	lastActive time.Time
}

func newRoom(code string, now time.Time) *room {
	return &room{
		code:          code,
		phase:         phaseLobby,
		clients:       make(map[*client]bool),
		spectators:    make(map[string]bool),
		topics:        make(map[string]*topicEntry),
		topicByPlayer: make(map[string]string),
		votes:         make(map[string]string),
		answers:       make(map[string]playerAnswer),
		scores:        make(map[string]int),
		createdAt:     now,
		lastActive:    now,
	}
}

func (r *room) playerLocked(id string) *player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *room) isPlayerLocked(id string) bool {
	return r.playerLocked(id) != nil
}

// stopGameLocked is the single recovery path used both by normal game
// completion and by teardown: it invalidates the active run so every in-flight
// timer callback becomes a no-op, cancels all outstanding timers, and resets
// the room to a clean lobby.
func (r *room) stopGameLocked() {
	r.activeGameID = ""

	if r.countdownTimer != nil {
		r.countdownTimer.Stop()
		r.countdownTimer = nil
	}
	if r.advanceTimer != nil {
		r.advanceTimer.Stop()
		r.advanceTimer = nil
	}
	if r.returnTimer != nil {
		r.returnTimer.Stop()
		r.returnTimer = nil
	}

	r.phase = phaseLobby
	r.selectedGame = ""
	r.liveQuiz = nil

	r.questions = nil
	r.answers = make(map[string]playerAnswer)
	r.timer = nil
	r.questionStartedAt = time.Time{}
	r.currentIndex = 0
	r.scores = make(map[string]int)

	r.topics = make(map[string]*topicEntry)
	r.topicOrder = nil
	r.topicByPlayer = make(map[string]string)
	r.votes = make(map[string]string)
	r.winningTopic = ""
}

// broadcastLocked fans a message out to every connection in the room. Sends
// are non-blocking; a client with a full buffer is dropped, matching the
// write-pump contract.
func (r *room) broadcastLocked(msg any) {
	for c := range r.clients {
		select {
		case c.send <- msg:
		default:
			delete(r.clients, c)
			c.closeSend()
		}
	}
}

// sendLocked delivers a message to a single client only.
func (r *room) sendLocked(c *client, msg any) {
	if !r.clients[c] {
		// Not registered with this room (e.g. rejected join); write directly.
		select {
		case c.send <- msg:
		default:
		}
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(r.clients, c)
		c.closeSend()
	}
}

// playersSnapshotLocked copies the player list so broadcasts never share
// mutable state with the write pumps.
func (r *room) playersSnapshotLocked() []player {
	players := make([]player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, *p)
	}
	return players
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *room) topicsSnapshotLocked() map[string]topicEntry {
	out := make(map[string]topicEntry, len(r.topics))
	for name, entry := range r.topics {
		out[name] = *entry
	}
	return out
}

func (r *room) answersSnapshotLocked() map[string]playerAnswer {
	out := make(map[string]playerAnswer, len(r.answers))
	for id, a := range r.answers {
		out[id] = a
	}
	return out
}

func (r *room) playerViewsLocked() []playerView {
	views := make([]playerView, 0, len(r.players))
	for _, p := range r.players {
		views = append(views, playerView{ID: p.ID, Name: p.Name})
	}
	return views
}

func (r *room) leaderboardLocked() []leaderboardEntry {
	board := make([]leaderboardEntry, 0, len(r.players))
	for _, p := range r.players {
		board = append(board, leaderboardEntry{
			ID:    p.ID,
			Name:  p.Name,
			Score: r.scores[p.ID],
		})
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	return board
}

// emitLiveStateLocked pushes the read-only projection for spectator views.
// Game data is only exposed while a run is active, so spectators never see
// stale data from a finished run.
func (r *room) emitLiveStateLocked() {
	var gameData *quizSnapshot
	if r.selectedGame != "" && r.activeGameID != "" {
		gameData = r.liveQuiz
	}

	r.broadcastLocked(roomLiveStateMessage{
		Type:            "room-live-state",
		RoomCode:        r.code,
		Phase:           r.phase,
		SelectedGame:    r.selectedGame,
		Players:         r.playerViewsLocked(),
		SpectatorsCount: len(r.spectators),
		GameData:        gameData,
	})
}

// broadcastProgressLocked re-broadcasts the full pipeline snapshot; broadcasts
// are idempotent, not deltas.
func (r *room) broadcastProgressLocked() {
	r.broadcastLocked(progressUpdateMessage{
		Type:          "progress-update",
		Players:       r.playersSnapshotLocked(),
		HostID:        r.hostID,
		TopicByPlayer: copyStringMap(r.topicByPlayer),
		Votes:         copyStringMap(r.votes),
		Phase:         r.phase,
	})
}
