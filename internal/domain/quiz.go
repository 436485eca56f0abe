package domain

import (
	"fmt"
	"strings"
	"time"
)

// OptionsPerQuestion is fixed: every question is four-way multiple choice.
const OptionsPerQuestion = 4

// Profile holds display attributes owned by the external identity system.
type Profile struct {
	UserID    string `json:"userId"`
	Name      string `json:"name,omitempty"`
	Handle    string `json:"handle,omitempty"`
	AvatarURL string `json:"avatar,omitempty"`
}

// Question is immutable once attached to a match or room.
type Question struct {
	Text         string   `json:"text" yaml:"text"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctIndex" yaml:"correct"`
}

func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("question %q: want %d options, got %d", q.Text, OptionsPerQuestion, len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("question %q: correct index %d out of range", q.Text, q.CorrectIndex)
	}
	return nil
}

func ValidateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("no questions")
	}
	for i, q := range qs {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// QueueEntry is a user waiting for a 1-on-1 opponent on a topic.
type QueueEntry struct {
	UserID     string    `json:"user_id"`
	ChannelID  string    `json:"channel_id"`
	Profile    Profile   `json:"profile"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Participant is one side of a match. Score stays nil until the user submits.
type Participant struct {
	UserID    string  `json:"user_id"`
	ChannelID string  `json:"channel_id"`
	Profile   Profile `json:"profile"`
	Score     *int    `json:"score,omitempty"`
}

// MatchSession is the ephemeral state of a 1-on-1 duel.
type MatchSession struct {
	ID           string                  `json:"id"`
	Topic        string                  `json:"topic"`
	Questions    []Question              `json:"questions"`
	Participants map[string]*Participant `json:"participants"`
	EndTime      time.Time               `json:"end_time"`
	CreatedAt    time.Time               `json:"created_at"`
}

// Opponent returns the other participant, or nil when userID is not in the match.
func (m *MatchSession) Opponent(userID string) *Participant {
	if m == nil {
		return nil
	}
	if _, ok := m.Participants[userID]; !ok {
		return nil
	}
	for id, p := range m.Participants {
		if id != userID {
			return p
		}
	}
	return nil
}

// RoomPhase is derived from the wall clock, never stored.
type RoomPhase string

const (
	PhaseScheduled RoomPhase = "SCHEDULED"
	PhaseRunning   RoomPhase = "RUNNING"
	PhaseEnded     RoomPhase = "ENDED"
)

// Room is a scheduled multi-participant quiz. Never mutated after creation.
type Room struct {
	ID              string     `json:"id"`
	Domain          string     `json:"domain"`
	HostID          string     `json:"hostId"`
	MaxMembers      int        `json:"maxMembers"`
	StartTime       time.Time  `json:"startTime"`
	DurationMinutes int        `json:"durationMinutes"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (r *Room) EndTime() time.Time {
	return r.StartTime.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

func (r *Room) Phase(now time.Time) RoomPhase {
	switch {
	case now.After(r.EndTime()):
		return PhaseEnded
	case !now.Before(r.StartTime):
		return PhaseRunning
	default:
		return PhaseScheduled
	}
}

// Validate checks a room request before it is persisted.
func (r *Room) Validate(now time.Time) error {
	if strings.TrimSpace(r.Domain) == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalidArgs)
	}
	if r.MaxMembers < 1 {
		return fmt.Errorf("%w: maxMembers must be positive", ErrInvalidArgs)
	}
	if r.DurationMinutes < 1 {
		return fmt.Errorf("%w: durationMinutes must be positive", ErrInvalidArgs)
	}
	if !r.StartTime.After(now) {
		return fmt.Errorf("%w: startTime must be in the future", ErrInvalidArgs)
	}
	if err := ValidateQuestions(r.Questions); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}

// Submission is the durable record of one participant's answers for a room or match.
type Submission struct {
	ID             int64     `json:"id,omitempty"`
	ScopeID        string    `json:"scopeId"`
	UserID         string    `json:"userId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Answers        []int     `json:"answers"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RankedEntry is one leaderboard row.
type RankedEntry struct {
	Rank           int       `json:"rank"`
	UserID         string    `json:"userId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLose Outcome = "LOSE"
	OutcomeDraw Outcome = "DRAW"
)
