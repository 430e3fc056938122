package main

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	baseScore            = 10
	maxSpeedBonus        = 60
	defaultQuestionCount = 5
	providerTimeout      = 45 * time.Second
)

// =========================
// START QUIZ (HOST)
// =========================

// handleStartQuiz mints a new run, fetches questions from the provider, and
// starts the first countdown. The provider call is the only blocking
// operation and runs without the room lock; a concurrent second start is
// rejected because activeGameID is already set.
func (rm *RoomManager) handleStartQuiz(c *client, msg clientMessage) {
	r := rm.room(msg.RoomCode)
	if r == nil {
		return
	}

	count := msg.QuestionCount
	if count < 1 {
		count = defaultQuestionCount
	}

	r.mu.Lock()

	if !r.isPlayerLocked(c.id) || r.hostID != c.id || r.phase != phaseQuestionConfig || r.activeGameID != "" {
		r.mu.Unlock()
		return
	}

	gameID := uuid.NewString()
	r.activeGameID = gameID
	r.phase = phasePlaying
	r.currentIndex = 0
	r.answers = make(map[string]playerAnswer)
	r.lastActive = rm.clock.Now()
	topic := r.winningTopic

	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
	questions, err := rm.provider.Generate(ctx, topic, count)
	cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	// The room may have been reset (host loss, reaper) during the call.
	if r.activeGameID != gameID {
		return
	}

	if err != nil || len(questions) == 0 {
		logf(rm.cfg, "QUIZ: Question generation failed for room %s: %v", r.code, err)

		r.activeGameID = ""
		r.phase = phaseQuestionConfig

		r.sendLocked(c, quizErrorMessage{
			Type:    "quiz-error",
			Message: "Failed to generate quiz questions. Please try again.",
		})
		return
	}

	r.questions = questions
	r.scores = make(map[string]int, len(r.players))
	for _, p := range r.players {
		r.scores[p.ID] = 0
	}

	logf(rm.cfg, "QUIZ: Started in room %s: topic %q, %d questions", r.code, topic, len(questions))

	r.broadcastLocked(quizStartedMessage{
		Type:  "quiz-started",
		Total: len(questions),
		Question: questionView{
			Text:    questions[0].Question,
			Options: questions[0].Options,
		},
	})

	rm.startQuestionTimerLocked(r, gameID)

	r.broadcastProgressLocked()

	r.liveQuiz = &quizSnapshot{
		GameID: gameID,
		Question: &snapshotQuestion{
			Text:    questions[0].Question,
			Options: questions[0].Options,
		},
		Leaderboard: r.leaderboardLocked(),
		Timer:       r.timer,
	}
	r.emitLiveStateLocked()
}

// =========================
// QUESTION TIMER
// =========================

// startQuestionTimerLocked schedules the single-shot countdown for the
// current question. The callback captures only the room code and run id, and
// re-fetches current state at fire time.
func (rm *RoomManager) startQuestionTimerLocked(r *room, gameID string) {
	if r.activeGameID != gameID {
		return
	}

	if r.countdownTimer != nil {
		r.countdownTimer.Stop()
	}

	duration := rm.cfg.questionTime
	now := rm.clock.Now()

	r.questionStartedAt = now
	r.timer = &questionTimer{
		Duration: duration,
		EndsAt:   now.Add(duration).UnixMilli(),
	}

	code := r.code
	r.countdownTimer = rm.clock.AfterFunc(duration, func() {
		rm.questionTimeout(code, gameID)
	})

	r.broadcastLocked(timerStartedMessage{
		Type:     "timer-started",
		Duration: int(duration / time.Second),
		EndsAt:   r.timer.EndsAt,
	})
}

// questionTimeout fires when a countdown expires. The run id and phase checks
// defend against firing for a superseded or already-advanced question.
func (rm *RoomManager) questionTimeout(code, gameID string) {
	r := rm.room(code)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeGameID != gameID || r.phase != phasePlaying {
		return
	}

	rm.revealLocked(r, gameID)
}

// =========================
// SUBMIT ANSWER
// =========================

func (rm *RoomManager) handleSubmitAnswer(c *client, msg clientMessage) {
	r := rm.room(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isPlayerLocked(c.id) {
		return
	}
	if r.phase != phasePlaying {
		return
	}
	// No answers before the countdown starts; the phase is already playing
	// while the provider call is still in flight.
	if r.timer == nil {
		return
	}
	// One answer per player per question.
	if _, ok := r.answers[c.id]; ok {
		return
	}

	r.lastActive = rm.clock.Now()
	r.answers[c.id] = playerAnswer{
		Answer:     msg.Answer,
		AnsweredAt: rm.clock.Now(),
	}

	r.broadcastLocked(answerProgressMessage{
		Type:          "answer-progress",
		AnsweredCount: len(r.answers),
		TotalPlayers:  len(r.players),
	})

	// Everyone answered early: cancel the countdown and reveal now.
	if len(r.answers) == len(r.players) {
		if r.countdownTimer != nil {
			r.countdownTimer.Stop()
			r.countdownTimer = nil
		}
		rm.revealLocked(r, r.activeGameID)
	}
}

// =========================
// REVEAL & ADVANCE
// =========================

// revealLocked scores the current question and schedules the advance step.
// The guards make the reveal exactly-once even when a countdown expiry and a
// last-answer trigger race.
func (rm *RoomManager) revealLocked(r *room, gameID string) {
	if r.activeGameID != gameID {
		return
	}
	if r.phase != phasePlaying {
		return
	}
	if r.timer == nil {
		return
	}

	r.phase = phaseRevealing

	code := r.code
	r.advanceTimer = rm.clock.AfterFunc(rm.cfg.revealDelay, func() {
		rm.advanceQuestion(code, gameID)
	})

	current := r.questions[r.currentIndex]
	correct := current.CorrectAnswer
	total := r.timer.Duration

	// Correct answers earn the base score plus a speed bonus that decays
	// linearly from maxSpeedBonus (instant) to 0 (last instant).
	for id, a := range r.answers {
		if a.Answer != correct {
			continue
		}

		taken := a.AnsweredAt.Sub(r.questionStartedAt)
		remaining := min(max(total-taken, 0), total)
		bonus := int(float64(remaining) / float64(total) * maxSpeedBonus)

		r.scores[id] += baseScore + bonus
	}

	stats := make(map[string]int, len(current.Options))
	for _, opt := range current.Options {
		stats[opt] = 0
	}
	for _, a := range r.answers {
		stats[a.Answer]++
	}

	r.broadcastLocked(revealAnswerMessage{
		Type:          "reveal-answer",
		CorrectAnswer: correct,
		Scores:        copyIntMap(r.scores),
		Stats:         copyIntMap(stats),
		Answers:       r.answersSnapshotLocked(),
	})

	r.liveQuiz = &quizSnapshot{
		GameID: gameID,
		Question: &snapshotQuestion{
			Text:          current.Question,
			Options:       current.Options,
			CorrectAnswer: correct,
		},
		Leaderboard: r.leaderboardLocked(),
		Stats:       stats,
	}
	r.emitLiveStateLocked()
}

// advanceQuestion moves to the next question, or to the results screen after
// the final one.
func (rm *RoomManager) advanceQuestion(code, gameID string) {
	r := rm.room(code)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeGameID != gameID {
		return
	}

	r.currentIndex++
	r.answers = make(map[string]playerAnswer)
	r.timer = nil
	r.phase = phasePlaying

	if r.currentIndex >= len(r.questions) {
		r.phase = phaseResults

		returnAt := rm.clock.Now().Add(rm.cfg.returnDelay).UnixMilli()

		r.returnTimer = rm.clock.AfterFunc(rm.cfg.returnDelay, func() {
			rm.returnToLobby(code, gameID)
		})

		r.broadcastLocked(quizEndedMessage{
			Type:            "quiz-ended",
			Scores:          copyIntMap(r.scores),
			ReturnToLobbyAt: returnAt,
		})

		r.liveQuiz = &quizSnapshot{
			GameID:      gameID,
			Leaderboard: r.leaderboardLocked(),
			Finished:    true,
		}
		r.emitLiveStateLocked()

		return
	}

	next := r.questions[r.currentIndex]

	r.broadcastLocked(nextQuestionMessage{
		Type:          "next-question",
		QuestionIndex: r.currentIndex,
		Question: questionView{
			Text:    next.Question,
			Options: next.Options,
		},
	})

	rm.startQuestionTimerLocked(r, gameID)

	r.liveQuiz = &quizSnapshot{
		GameID: gameID,
		Question: &snapshotQuestion{
			Text:    next.Question,
			Options: next.Options,
		},
		Leaderboard: r.leaderboardLocked(),
		Timer:       r.timer,
	}
	r.emitLiveStateLocked()
}

// returnToLobby performs the full reset after the results screen.
func (rm *RoomManager) returnToLobby(code, gameID string) {
	r := rm.room(code)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeGameID != gameID {
		return
	}

	r.stopGameLocked()

	r.broadcastLocked(returnToLobbyMessage{
		Type:    "return-to-lobby",
		Players: r.playersSnapshotLocked(),
		HostID:  r.hostID,
	})
	r.emitLiveStateLocked()

	logf(rm.cfg, "QUIZ: Room %s returned to lobby", code)
}
