package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/campus-quiz-core/internal/domain"
	"github.com/park285/campus-quiz-core/internal/obslog"
	"github.com/park285/campus-quiz-core/internal/registry"
	"github.com/park285/campus-quiz-core/internal/scoring"
	"github.com/park285/campus-quiz-core/pkg/quizdto"
)

// RoomRequest is a host's request for a scheduled room. When Questions is empty
// QuestionCount questions are generated for Domain.
type RoomRequest struct {
	Domain          string
	HostID          string
	MaxMembers      int
	StartTime       time.Time
	DurationMinutes int
	Questions       []domain.Question
	QuestionCount   int
}

func (m *Manager) CreateRoom(ctx context.Context, req RoomRequest) (*domain.Room, error) {
	now := m.now()
	r := &domain.Room{
		ID:              uuid.NewString(),
		Domain:          strings.TrimSpace(req.Domain),
		HostID:          strings.TrimSpace(req.HostID),
		MaxMembers:      req.MaxMembers,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Questions:       req.Questions,
		CreatedAt:       now,
	}
	if len(r.Questions) == 0 && r.Domain != "" {
		n := req.QuestionCount
		if n <= 0 {
			n = m.cfg.QuestionCount
		}
		qs, err := m.qp.Generate(ctx, r.Domain, n)
		if err != nil {
			return nil, domain.Unavailable(fmt.Errorf("generate room questions: %w", err))
		}
		r.Questions = qs
	}
	if err := r.Validate(now); err != nil {
		return nil, err
	}
	if err := m.rooms.Create(ctx, r); err != nil {
		return nil, domain.Unavailable(err)
	}
	obslog.L().Info("room_created",
		zap.String("room_id", r.ID),
		zap.String("domain", r.Domain),
		zap.Time("start_time", r.StartTime),
		zap.Int("duration_minutes", r.DurationMinutes),
	)
	return r, nil
}

func (m *Manager) loadRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, domain.ErrInvalidArgs
	}
	r, err := m.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	if r == nil {
		return nil, fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
	}
	return r, nil
}

// JoinRoom admits a participant and delivers exactly one begin_quiz, now or at
// the room's start time. Late and repeat joiners get a terminal signal instead.
func (m *Manager) JoinRoom(ctx context.Context, roomID, userID string, ch registry.Channel) error {
	if strings.TrimSpace(userID) == "" || ch == nil {
		return domain.ErrInvalidArgs
	}
	room, err := m.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	signal := quizdto.RoomSignal{RoomID: room.ID}

	prior, err := m.ledger.Get(ctx, room.ID, userID)
	if err != nil {
		return domain.Unavailable(err)
	}
	if prior != nil {
		m.reply(ctx, ch, quizdto.TypeAlreadyAttempted, signal)
		return nil
	}
	now := m.now()
	phase := room.Phase(now)
	if phase == domain.PhaseEnded {
		obslog.L().Debug("room_join_expired", zap.String("room_id", room.ID), zap.String("user_id", userID), zap.Error(domain.ErrExpiredWindow))
		m.reply(ctx, ch, quizdto.TypeQuizEnded, signal)
		return nil
	}
	if m.members != nil {
		ok, err := m.members.Admit(ctx, room.ID, userID, room.MaxMembers, room.EndTime())
		if err != nil {
			return domain.Unavailable(err)
		}
		if !ok {
			obslog.L().Info("room_join_rejected", zap.String("room_id", room.ID), zap.String("user_id", userID), zap.Error(domain.ErrRoomFull))
			m.reply(ctx, ch, quizdto.TypeRoomFull, signal)
			return nil
		}
	}

	if _, ok := m.reg.Lookup(ch.ID()); !ok {
		m.reg.Register(ch)
	}
	m.reg.Join(roomGroup(room.ID), ch.ID())

	begin := quizdto.Event{Type: quizdto.TypeBeginQuiz, Payload: quizdto.BeginQuiz{
		RoomID:    room.ID,
		Questions: quizdto.FromQuestions(room.Questions),
		EndTime:   room.EndTime(),
	}}
	if phase == domain.PhaseRunning {
		m.sched.Cancel(room.ID, userID)
		m.reply(ctx, ch, begin.Type, begin.Payload)
		return nil
	}

	chID := ch.ID()
	err = m.sched.ScheduleBegin(room.ID, userID, chID, room.StartTime, func() {
		if !m.reg.Send(context.Background(), chID, begin) {
			obslog.L().Debug("room_begin_dropped", zap.String("room_id", room.ID), zap.String("channel_id", chID))
		}
	})
	if err != nil {
		return domain.Unavailable(err)
	}
	obslog.L().Info("room_begin_scheduled",
		zap.String("room_id", room.ID),
		zap.String("user_id", userID),
		zap.Time("start_time", room.StartTime),
	)
	return nil
}

// SubmitRoom records a room attempt once and tells everyone in the room the
// leaderboard moved. Submissions after the window or from users who never
// joined do not reach the ledger.
func (m *Manager) SubmitRoom(ctx context.Context, roomID, userID string, answers []int, ch registry.Channel) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrInvalidArgs
	}
	room, err := m.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	signal := quizdto.RoomSignal{RoomID: room.ID}
	if room.Phase(m.now()) == domain.PhaseEnded {
		obslog.L().Info("room_submission_late", zap.String("room_id", room.ID), zap.String("user_id", userID), zap.Error(domain.ErrExpiredWindow))
		m.reply(ctx, ch, quizdto.TypeQuizEnded, signal)
		return nil
	}
	if m.members != nil {
		joined, err := m.members.IsMember(ctx, room.ID, userID)
		if err != nil {
			return domain.Unavailable(err)
		}
		if !joined {
			return fmt.Errorf("room %s user %s not joined: %w", room.ID, userID, domain.ErrNotFound)
		}
	}
	sub := &domain.Submission{
		ScopeID:        room.ID,
		UserID:         userID,
		Score:          scoring.Score(answers, room.Questions),
		TotalQuestions: len(room.Questions),
		Answers:        append([]int(nil), answers...),
		CreatedAt:      m.now(),
	}
	inserted, err := m.ledger.Insert(ctx, sub)
	if err != nil {
		return domain.Unavailable(err)
	}
	if !inserted {
		obslog.L().Info("submission_duplicate", zap.String("room_id", room.ID), zap.String("user_id", userID), zap.Error(domain.ErrAlreadySubmitted))
		m.reply(ctx, ch, quizdto.TypeAlreadyAttempted, signal)
		return nil
	}
	obslog.L().Info("room_submission", zap.String("room_id", room.ID), zap.String("user_id", userID), zap.Int("score", sub.Score))

	m.reply(ctx, ch, quizdto.TypeRoomResult, quizdto.RoomResult{
		RoomID:         room.ID,
		Score:          sub.Score,
		TotalQuestions: sub.TotalQuestions,
	})
	m.reg.Broadcast(ctx, roomGroup(room.ID), quizdto.Event{Type: quizdto.TypeLeaderboardChanged, Payload: signal})
	return nil
}

// Leaderboard returns the room's ranked submissions.
func (m *Manager) Leaderboard(ctx context.Context, roomID string, limit int) ([]domain.RankedEntry, error) {
	room, err := m.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	rows, err := m.ledger.Ranked(ctx, room.ID, limit)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return rows, nil
}
