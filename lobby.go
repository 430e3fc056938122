package main

import (
	"strings"
)

// =========================
// GET ROOM STATE
// =========================

func (rm *RoomManager) handleGetRoomState(c *client, msg clientMessage) {
	r := rm.room(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var me *player
	if p := r.playerLocked(c.id); p != nil {
		snapshot := *p
		me = &snapshot
	}

	r.sendLocked(c, roomStateMessage{
		Type:         "room-state",
		Players:      r.playersSnapshotLocked(),
		HostID:       r.hostID,
		Phase:        r.phase,
		SelectedGame: r.selectedGame,
		Me:           me,
	})
}

// =========================
// JOIN AS SPECTATOR
// =========================

func (rm *RoomManager) handleJoinAsSpectator(c *client, msg clientMessage) {
	r := rm.room(msg.RoomCode)
	if r == nil {
		return
	}

	rm.track(c.id, msg.RoomCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = rm.clock.Now()
	r.clients[c] = true
	r.spectators[c.id] = true

	r.emitLiveStateLocked()
}

// =========================
// JOIN ROOM (PLAYER)
// =========================

func (rm *RoomManager) handleJoinRoom(c *client, msg clientMessage) {
	if msg.RoomCode == "" {
		return
	}

	// Re-join with the same connection (SPA navigation) is idempotent and
	// needs no name.
	if r := rm.room(msg.RoomCode); r != nil {
		r.mu.Lock()
		if existing := r.playerLocked(c.id); existing != nil {
			r.lastActive = rm.clock.Now()
			snapshot := *existing
			r.sendLocked(c, roomStateMessage{
				Type:         "room-state",
				Players:      r.playersSnapshotLocked(),
				HostID:       r.hostID,
				Phase:        r.phase,
				SelectedGame: r.selectedGame,
				Me:           &snapshot,
			})
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
	}

	// Reject before creating anything so a nameless join cannot strand an
	// empty room.
	if msg.Name == "" {
		select {
		case c.send <- simpleMessage{Type: "name-required"}:
		default:
		}
		return
	}

	r := rm.getOrCreate(msg.RoomCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = rm.clock.Now()

	if r.phase != phaseLobby {
		r.sendLocked(c, simpleMessage{Type: "room-locked"})
		return
	}
	if len(r.players) >= rm.cfg.maxPlayers {
		r.sendLocked(c, simpleMessage{Type: "room-full"})
		return
	}

	p := &player{ID: c.id, Name: msg.Name}
	r.players = append(r.players, p)

	// First joiner becomes host.
	if r.hostID == "" {
		r.hostID = c.id
		p.IsHost = true
	}

	rm.track(c.id, msg.RoomCode)
	r.clients[c] = true

	logf(rm.cfg, "ROOMS: Player %q joined %s", p.Name, r.code)

	r.broadcastLocked(roomUpdateMessage{
		Type:         "room-update",
		Players:      r.playersSnapshotLocked(),
		HostID:       r.hostID,
		Phase:        r.phase,
		SelectedGame: r.selectedGame,
	})
}

// =========================
// START GAME (HOST)
// =========================

func (rm *RoomManager) handleStartGame(c *client, msg clientMessage) {
	r := rm.room(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isPlayerLocked(c.id) {
		return
	}
	if r.hostID != c.id {
		return
	}
	if r.phase != phaseLobby {
		return
	}

	r.lastActive = rm.clock.Now()

	r.phase = phaseTopicSuggestion
	r.selectedGame = gameQuiz
	r.topics = make(map[string]*topicEntry)
	r.topicOrder = nil
	r.topicByPlayer = make(map[string]string)
	r.votes = make(map[string]string)

	r.broadcastLocked(gameStartedMessage{
		Type:  "game-started",
		Game:  gameQuiz,
		Phase: r.phase,
	})

	r.broadcastProgressLocked()
}

// =========================
// SUBMIT TOPIC
// =========================

func (rm *RoomManager) handleSubmitTopic(c *client, msg clientMessage) {
	r := rm.room(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != phaseTopicSuggestion {
		return
	}
	if !r.isPlayerLocked(c.id) {
		return
	}
	// Each player can suggest only once.
	if _, ok := r.topicByPlayer[c.id]; ok {
		return
	}

	clean := strings.TrimSpace(msg.Topic)
	if clean == "" {
		return
	}

	r.lastActive = rm.clock.Now()

	if _, ok := r.topics[clean]; !ok {
		r.topics[clean] = &topicEntry{CreatedBy: c.id}
		r.topicOrder = append(r.topicOrder, clean)
	}
	r.topicByPlayer[c.id] = clean

	r.broadcastLocked(topicsUpdatedMessage{
		Type:   "topics-updated",
		Topics: r.topicsSnapshotLocked(),
		Phase:  r.phase,
	})

	r.broadcastProgressLocked()

	// Move to voting once everyone has suggested.
	if len(r.topicByPlayer) == len(r.players) {
		r.phase = phaseTopicVoting

		r.broadcastLocked(votingStartedMessage{
			Type:   "voting-started",
			Topics: r.topicsSnapshotLocked(),
		})

		r.broadcastProgressLocked()
	}
}

// =========================
// VOTE TOPIC
// =========================

func (rm *RoomManager) handleVoteTopic(c *client, msg clientMessage) {
	r := rm.room(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != phaseTopicVoting {
		return
	}
	if !r.isPlayerLocked(c.id) {
		return
	}

	entry, ok := r.topics[msg.Topic]
	if !ok {
		return
	}

	if _, voted := r.votes[c.id]; voted {
		return
	}
	if entry.CreatedBy == c.id {
		r.sendLocked(c, simpleMessage{Type: "self-vote-not-allowed"})
		return
	}

	r.lastActive = rm.clock.Now()

	r.votes[c.id] = msg.Topic
	entry.Votes++

	r.broadcastLocked(topicsUpdatedMessage{
		Type:   "topics-updated",
		Topics: r.topicsSnapshotLocked(),
		Phase:  r.phase,
	})

	// Close voting once everyone has voted.
	if len(r.votes) == len(r.players) {
		r.winningTopic = r.winningTopicLocked()
		r.phase = phaseQuestionConfig

		r.broadcastLocked(votingEndedMessage{
			Type:         "voting-ended",
			WinningTopic: r.winningTopic,
		})
	}

	r.broadcastProgressLocked()
}

// winningTopicLocked picks the topic with the most votes; ties are broken by
// submission order, not map iteration order.
func (r *room) winningTopicLocked() string {
	winner := ""
	maxVotes := -1

	for _, name := range r.topicOrder {
		if r.topics[name].Votes > maxVotes {
			maxVotes = r.topics[name].Votes
			winner = name
		}
	}

	return winner
}

// =========================
// DISCONNECT
// =========================

func (rm *RoomManager) handleDisconnect(c *client) {
	defer c.closeSend()

	code := rm.dropSession(c.id)
	if code == "" {
		return
	}

	r := rm.room(code)
	if r == nil {
		return
	}

	r.mu.Lock()

	r.lastActive = rm.clock.Now()
	delete(r.clients, c)
	delete(r.spectators, c.id)

	index := -1
	for i, p := range r.players {
		if p.ID == c.id {
			index = i
			break
		}
	}

	// Spectator only.
	if index == -1 {
		r.emitLiveStateLocked()
		r.mu.Unlock()
		return
	}

	left := r.players[index]
	r.players = append(r.players[:index], r.players[index+1:]...)

	logf(rm.cfg, "ROOMS: Player %q left %s", left.Name, code)

	if r.hostID == c.id {
		if len(r.players) > 0 {
			// Promote the next remaining player, in insertion order.
			r.hostID = r.players[0].ID
			r.players[0].IsHost = true
		} else {
			r.stopGameLocked()
			r.mu.Unlock()
			rm.remove(code)
			return
		}
	}

	r.emitLiveStateLocked()
	r.broadcastProgressLocked()
	r.mu.Unlock()
}
