package quizdto

import (
	"encoding/json"
	"time"
)

// Event types, inbound.
const (
	TypeRequestMatch = "request_match"
	TypeLeaveQueue   = "leave_queue"
	TypeSubmitMatch  = "submit_match"
	TypeJoinRoom     = "join_room"
	TypeSubmitRoom   = "submit_room"
)

// Event types, outbound.
const (
	TypeMatchWaiting       = "match_waiting"
	TypeMatchFound         = "match_found"
	TypeResult             = "result"
	TypeWaitingForOpponent = "waiting_for_opponent"
	TypeAlreadySubmitted   = "already_submitted"
	TypeBeginQuiz          = "begin_quiz"
	TypeQuizEnded          = "quiz_ended"
	TypeAlreadyAttempted   = "already_attempted"
	TypeRoomFull           = "room_full"
	TypeRoomResult         = "room_result"
	TypeLeaderboardChanged = "leaderboard_changed"
	TypeQueueLeft          = "queue_left"
	TypeError              = "error"
)

// Event is the outbound frame written to a channel.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Envelope is the inbound frame; Payload is decoded per Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Profile mirrors the display attributes shown to an opponent.
type Profile struct {
	UserID    string `json:"userId"`
	Name      string `json:"name,omitempty"`
	Handle    string `json:"handle,omitempty"`
	AvatarURL string `json:"avatar,omitempty"`
}

// Question is the client view of a question; the answer key is not included.
type Question struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type RequestMatch struct {
	UserID  string   `json:"userId"`
	Topic   string   `json:"topic"`
	Profile *Profile `json:"profile,omitempty"`
}

type LeaveQueue struct {
	Topic string `json:"topic"`
}

type SubmitMatch struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
	Answers []int  `json:"answers"`
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type SubmitRoom struct {
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	Answers []int  `json:"answers"`
}

type MatchWaiting struct {
	Topic string `json:"topic"`
}

type MatchFound struct {
	MatchID   string     `json:"matchId"`
	Questions []Question `json:"questions"`
	EndTime   time.Time  `json:"endTime"`
	Opponent  Profile    `json:"opponent"`
}

type Result struct {
	MatchID       string `json:"matchId"`
	Outcome       string `json:"outcome"`
	MyScore       int    `json:"myScore"`
	OpponentScore int    `json:"opponentScore"`
}

type WaitingForOpponent struct {
	MatchID string `json:"matchId,omitempty"`
}

type AlreadySubmitted struct {
	MatchID string `json:"matchId"`
}

type BeginQuiz struct {
	RoomID    string     `json:"roomId"`
	Questions []Question `json:"questions"`
	EndTime   time.Time  `json:"endTime"`
}

// RoomSignal is the payload of quiz_ended, already_attempted, room_full and leaderboard_changed.
type RoomSignal struct {
	RoomID string `json:"roomId"`
}

type RoomResult struct {
	RoomID         string `json:"roomId"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
}

type QueueLeft struct {
	Topic   string `json:"topic"`
	Removed bool   `json:"removed"`
}

type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
