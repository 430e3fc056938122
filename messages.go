package main

// Messages coming from clients
type clientMessage struct {
	Type          string `json:"type"`                    // "join-room", "join-as-spectator", "get-room-state", "start-game", "submit-topic", "vote-topic", "start-quiz", "submit-answer"
	RoomCode      string `json:"roomCode,omitempty"`      // all
	Name          string `json:"name,omitempty"`          // join-room
	Topic         string `json:"topic,omitempty"`         // submit-topic / vote-topic
	Answer        string `json:"answer,omitempty"`        // submit-answer
	QuestionCount int    `json:"questionCount,omitempty"` // start-quiz
}

// simpleMessage is for bare rejection signals ("name-required", "room-locked",
// "room-full", "self-vote-not-allowed").
type simpleMessage struct {
	Type string `json:"type"`
}

// roomStateMessage answers get-room-state and idempotent re-joins, including
// the caller's own player record.
type roomStateMessage struct {
	Type         string   `json:"type"` // "room-state"
	Players      []player `json:"players"`
	HostID       string   `json:"hostId"`
	Phase        string   `json:"phase"`
	SelectedGame string   `json:"selectedGame,omitempty"`
	Me           *player  `json:"me,omitempty"`
}

// roomUpdateMessage is broadcast after lobby membership changes.
type roomUpdateMessage struct {
	Type         string   `json:"type"` // "room-update"
	Players      []player `json:"players"`
	HostID       string   `json:"hostId"`
	Phase        string   `json:"phase"`
	SelectedGame string   `json:"selectedGame,omitempty"`
}

type gameStartedMessage struct {
	Type  string `json:"type"` // "game-started"
	Game  string `json:"game"`
	Phase string `json:"phase"`
}

// progressUpdateMessage is a full idempotent snapshot of the lobby-to-quiz
// pipeline, re-broadcast after every mutating action so late-attaching views
// stay consistent.
type progressUpdateMessage struct {
	Type          string            `json:"type"` // "progress-update"
	Players       []player          `json:"players"`
	HostID        string            `json:"hostId"`
	TopicByPlayer map[string]string `json:"topicByPlayer"`
	Votes         map[string]string `json:"votes"`
	Phase         string            `json:"phase"`
}

type topicsUpdatedMessage struct {
	Type   string                `json:"type"` // "topics-updated"
	Topics map[string]topicEntry `json:"topics"`
	Phase  string                `json:"phase"`
}

type votingStartedMessage struct {
	Type   string                `json:"type"` // "voting-started"
	Topics map[string]topicEntry `json:"topics"`
}

type votingEndedMessage struct {
	Type         string `json:"type"` // "voting-ended"
	WinningTopic string `json:"winningTopic"`
}

// questionView is what players see: no correct answer until reveal.
type questionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type quizStartedMessage struct {
	Type          string       `json:"type"` // "quiz-started"
	QuestionIndex int          `json:"questionIndex"`
	Total         int          `json:"total"`
	Question      questionView `json:"question"`
}

// timerStartedMessage carries the absolute deadline so clients can self-correct
// for clock drift instead of trusting a relative countdown.
type timerStartedMessage struct {
	Type     string `json:"type"`     // "timer-started"
	Duration int    `json:"duration"` // seconds
	EndsAt   int64  `json:"endsAt"`   // unix milliseconds
}

type answerProgressMessage struct {
	Type          string `json:"type"` // "answer-progress"
	AnsweredCount int    `json:"answeredCount"`
	TotalPlayers  int    `json:"totalPlayers"`
}

type revealAnswerMessage struct {
	Type          string                  `json:"type"` // "reveal-answer"
	CorrectAnswer string                  `json:"correctAnswer"`
	Scores        map[string]int          `json:"scores"`
	Stats         map[string]int          `json:"stats"`
	Answers       map[string]playerAnswer `json:"answers"`
}

type nextQuestionMessage struct {
	Type          string       `json:"type"` // "next-question"
	QuestionIndex int          `json:"questionIndex"`
	Question      questionView `json:"question"`
}

type quizEndedMessage struct {
	Type            string         `json:"type"` // "quiz-ended"
	Scores          map[string]int `json:"scores"`
	ReturnToLobbyAt int64          `json:"returnToLobbyAt"` // unix milliseconds
}

type returnToLobbyMessage struct {
	Type    string   `json:"type"` // "return-to-lobby"
	Players []player `json:"players"`
	HostID  string   `json:"hostId"`
}

type quizErrorMessage struct {
	Type    string `json:"type"` // "quiz-error"
	Message string `json:"message"`
}

// roomLiveStateMessage is the read-only projection pushed to spectators (and
// everyone else in the room) after any state-changing operation.
type roomLiveStateMessage struct {
	Type            string        `json:"type"` // "room-live-state"
	RoomCode        string        `json:"roomCode"`
	Phase           string        `json:"phase"`
	SelectedGame    string        `json:"selectedGame,omitempty"`
	Players         []playerView  `json:"players"`
	SpectatorsCount int           `json:"spectatorsCount"`
	GameData        *quizSnapshot `json:"gameData"`
}

type playerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type leaderboardEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// quizSnapshot is the latest published quiz state for live views. The question
// only includes the correct answer once the reveal has happened.
type quizSnapshot struct {
	GameID      string             `json:"gameId"`
	Question    *snapshotQuestion  `json:"question,omitempty"`
	Leaderboard []leaderboardEntry `json:"leaderboard,omitempty"`
	Stats       map[string]int     `json:"stats,omitempty"`
	Timer       *questionTimer     `json:"timer,omitempty"`
	Finished    bool               `json:"finished,omitempty"`
}

type snapshotQuestion struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}
