package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/campus-quiz-core/internal/domain"
	"github.com/park285/campus-quiz-core/internal/identity"
	"github.com/park285/campus-quiz-core/internal/ledger"
	"github.com/park285/campus-quiz-core/internal/matchqueue"
	"github.com/park285/campus-quiz-core/internal/obslog"
	"github.com/park285/campus-quiz-core/internal/questions"
	"github.com/park285/campus-quiz-core/internal/registry"
	"github.com/park285/campus-quiz-core/internal/rooms"
	"github.com/park285/campus-quiz-core/internal/roomsched"
	"github.com/park285/campus-quiz-core/internal/scoring"
	"github.com/park285/campus-quiz-core/internal/session"
	"github.com/park285/campus-quiz-core/pkg/quizdto"
)

const (
	defaultMatchDuration = 5 * time.Minute
	defaultQuestionCount = 10
)

type Config struct {
	MatchDuration time.Duration
	QuestionCount int
}

// Deps are the stores and transports the Manager coordinates. Members and
// Identity are optional.
type Deps struct {
	Queue     *matchqueue.Queue
	Sessions  *session.Store
	Ledger    ledger.Ledger
	Rooms     rooms.Repository
	Members   *rooms.Members
	Registry  *registry.Registry
	Scheduler *roomsched.Scheduler
	Questions questions.Provider
	Identity  identity.Directory
}

// Manager runs 1-on-1 matchmaking, match scoring and room quizzes.
type Manager struct {
	queue    *matchqueue.Queue
	sessions *session.Store
	ledger   ledger.Ledger
	rooms    rooms.Repository
	members  *rooms.Members
	reg      *registry.Registry
	sched    *roomsched.Scheduler
	qp       questions.Provider
	ident    identity.Directory

	cfg Config
	now func() time.Time
}

func NewManager(d Deps, cfg Config) *Manager {
	if cfg.MatchDuration <= 0 {
		cfg.MatchDuration = defaultMatchDuration
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = defaultQuestionCount
	}
	m := &Manager{
		queue:    d.Queue,
		sessions: d.Sessions,
		ledger:   d.Ledger,
		rooms:    d.Rooms,
		members:  d.Members,
		reg:      d.Registry,
		sched:    d.Scheduler,
		qp:       questions.Validated(d.Questions),
		ident:    d.Identity,
		cfg:      cfg,
		now:      time.Now,
	}
	m.reg.OnUnregister(func(ch registry.Channel) {
		if n := m.sched.CancelChannel(ch.ID()); n > 0 {
			obslog.L().Info("room_begin_cancelled", zap.String("channel_id", ch.ID()), zap.Int("jobs", n))
		}
	})
	return m
}

func roomGroup(roomID string) string { return "room:" + roomID }

// Connect makes ch addressable by the Manager.
func (m *Manager) Connect(ch registry.Channel) { m.reg.Register(ch) }

// Disconnect drops ch. Pending room begins for it are cancelled; queue entries
// and sessions referencing it are discarded lazily.
func (m *Manager) Disconnect(ch registry.Channel) { m.reg.Unregister(ch) }

// reply writes directly to the requesting channel.
func (m *Manager) reply(ctx context.Context, ch registry.Channel, typ string, payload any) {
	if err := ch.Send(ctx, quizdto.Event{Type: typ, Payload: payload}); err != nil {
		obslog.L().Warn("reply_error", zap.String("channel_id", ch.ID()), zap.String("type", typ), zap.Error(err))
	}
}

// MatchRequest asks for a 1-on-1 opponent on a topic.
type MatchRequest struct {
	UserID  string
	Topic   string
	Profile domain.Profile
}

// RequestMatch pairs the caller with the oldest live queued user for the topic,
// or queues the caller when no such user exists.
func (m *Manager) RequestMatch(ctx context.Context, req MatchRequest, ch registry.Channel) error {
	userID := strings.TrimSpace(req.UserID)
	topic := strings.ToLower(strings.TrimSpace(req.Topic))
	if userID == "" || topic == "" || ch == nil {
		return domain.ErrInvalidArgs
	}
	if _, ok := m.reg.Lookup(ch.ID()); !ok {
		m.reg.Register(ch)
	}
	req.Profile.UserID = userID
	self := domain.QueueEntry{
		UserID:     userID,
		ChannelID:  ch.ID(),
		Profile:    identity.Resolve(ctx, m.ident, req.Profile),
		EnqueuedAt: m.now(),
	}

	// Each pop shrinks the queue, so the loop ends at the first live candidate
	// or an empty queue.
	for {
		cand, err := m.queue.Pop(ctx, topic)
		if err != nil {
			return domain.Unavailable(fmt.Errorf("pop queue %s: %w", topic, err))
		}
		if cand == nil {
			break
		}
		if cand.UserID == userID {
			obslog.L().Debug("match_skip_self", zap.String("topic", topic), zap.String("user_id", userID))
			continue
		}
		candCh, ok := m.reg.Lookup(cand.ChannelID)
		if !ok || isClosed(candCh) {
			obslog.L().Info("match_skip_stale",
				zap.String("topic", topic),
				zap.String("user_id", cand.UserID),
				zap.String("channel_id", cand.ChannelID),
				zap.Error(domain.ErrStaleParticipant),
			)
			continue
		}
		if err := m.startMatch(ctx, topic, self, *cand); err != nil {
			cand.EnqueuedAt = m.now()
			if perr := m.queue.Push(ctx, topic, *cand); perr != nil {
				obslog.L().Error("match_requeue_error", zap.String("topic", topic), zap.String("user_id", cand.UserID), zap.Error(perr))
			}
			return domain.Unavailable(err)
		}
		return nil
	}

	if err := m.queue.Push(ctx, topic, self); err != nil {
		return domain.Unavailable(fmt.Errorf("push queue %s: %w", topic, err))
	}
	obslog.L().Info("match_waiting", zap.String("topic", topic), zap.String("user_id", userID))
	m.reply(ctx, ch, quizdto.TypeMatchWaiting, quizdto.MatchWaiting{Topic: topic})
	return nil
}

func (m *Manager) startMatch(ctx context.Context, topic string, self, cand domain.QueueEntry) error {
	qs, err := m.qp.Generate(ctx, topic, m.cfg.QuestionCount)
	if err != nil {
		return fmt.Errorf("generate questions: %w", err)
	}
	now := m.now()
	sess := &domain.MatchSession{
		ID:        uuid.NewString(),
		Topic:     topic,
		Questions: qs,
		Participants: map[string]*domain.Participant{
			self.UserID: {UserID: self.UserID, ChannelID: self.ChannelID, Profile: self.Profile},
			cand.UserID: {UserID: cand.UserID, ChannelID: cand.ChannelID, Profile: cand.Profile},
		},
		EndTime:   now.Add(m.cfg.MatchDuration),
		CreatedAt: now,
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	obslog.L().Info("match_found",
		zap.String("match_id", sess.ID),
		zap.String("topic", topic),
		zap.String("user_a", cand.UserID),
		zap.String("user_b", self.UserID),
	)

	view := quizdto.FromQuestions(qs)
	m.reg.Send(ctx, cand.ChannelID, quizdto.Event{Type: quizdto.TypeMatchFound, Payload: quizdto.MatchFound{
		MatchID: sess.ID, Questions: view, EndTime: sess.EndTime, Opponent: quizdto.FromProfile(self.Profile),
	}})
	m.reg.Send(ctx, self.ChannelID, quizdto.Event{Type: quizdto.TypeMatchFound, Payload: quizdto.MatchFound{
		MatchID: sess.ID, Questions: view, EndTime: sess.EndTime, Opponent: quizdto.FromProfile(cand.Profile),
	}})
	return nil
}

// LeaveQueue removes the user's waiting entry for a topic.
func (m *Manager) LeaveQueue(ctx context.Context, topic, userID string, ch registry.Channel) error {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" || strings.TrimSpace(userID) == "" {
		return domain.ErrInvalidArgs
	}
	removed, err := m.queue.Remove(ctx, topic, userID)
	if err != nil {
		return domain.Unavailable(err)
	}
	m.reply(ctx, ch, quizdto.TypeQueueLeft, quizdto.QueueLeft{Topic: topic, Removed: removed})
	return nil
}

// SubmitMatch scores a 1-on-1 submission. The second submitter triggers the
// result for both sides.
func (m *Manager) SubmitMatch(ctx context.Context, matchID, userID string, answers []int, ch registry.Channel) error {
	if strings.TrimSpace(matchID) == "" || strings.TrimSpace(userID) == "" {
		return domain.ErrInvalidArgs
	}
	sess, err := m.sessions.Load(ctx, matchID)
	if err != nil {
		return domain.Unavailable(err)
	}
	if sess == nil {
		return fmt.Errorf("match %s: %w", matchID, domain.ErrNotFound)
	}
	me := sess.Participants[userID]
	opp := sess.Opponent(userID)
	if me == nil || opp == nil {
		return fmt.Errorf("match %s user %s: %w", matchID, userID, domain.ErrNotFound)
	}

	sub := &domain.Submission{
		ScopeID:        matchID,
		UserID:         userID,
		Score:          scoring.Score(answers, sess.Questions),
		TotalQuestions: len(sess.Questions),
		Answers:        append([]int(nil), answers...),
		CreatedAt:      m.now(),
	}
	inserted, err := m.ledger.Insert(ctx, sub)
	if err != nil {
		return domain.Unavailable(err)
	}
	if !inserted {
		// replay the persisted score; RecordScore ignores a second write
		prior, err := m.ledger.Get(ctx, matchID, userID)
		if err != nil {
			return domain.Unavailable(err)
		}
		if prior == nil {
			return domain.Unavailable(fmt.Errorf("match %s user %s: submission vanished", matchID, userID))
		}
		sub = prior
	}

	res, err := m.sessions.RecordScore(ctx, matchID, userID, opp.UserID, sub.Score)
	if err != nil {
		return domain.Unavailable(err)
	}
	switch res.State {
	case session.ScoreMissing:
		if !inserted {
			m.alreadySubmitted(ctx, ch, matchID, userID)
			return nil
		}
		return fmt.Errorf("match %s expired: %w", matchID, domain.ErrNotFound)
	case session.ScoreDuplicate:
		m.alreadySubmitted(ctx, ch, matchID, userID)
	case session.ScorePending:
		m.reply(ctx, ch, quizdto.TypeWaitingForOpponent, quizdto.WaitingForOpponent{MatchID: matchID})
	case session.ScoreComplete:
		obslog.L().Info("match_complete",
			zap.String("match_id", matchID),
			zap.String("user_id", userID), zap.Int("score", sub.Score),
			zap.String("opponent_id", opp.UserID), zap.Int("opponent_score", res.OpponentScore),
		)
		m.reply(ctx, ch, quizdto.TypeResult, quizdto.Result{
			MatchID:       matchID,
			Outcome:       string(scoring.Outcome(sub.Score, res.OpponentScore)),
			MyScore:       sub.Score,
			OpponentScore: res.OpponentScore,
		})
		delivered := m.reg.Send(ctx, opp.ChannelID, quizdto.Event{Type: quizdto.TypeResult, Payload: quizdto.Result{
			MatchID:       matchID,
			Outcome:       string(scoring.Outcome(res.OpponentScore, sub.Score)),
			MyScore:       res.OpponentScore,
			OpponentScore: sub.Score,
		}})
		if !delivered {
			obslog.L().Info("result_peer_skipped",
				zap.String("match_id", matchID),
				zap.String("user_id", opp.UserID),
				zap.Error(domain.ErrStaleParticipant),
			)
		}
	}
	return nil
}

func (m *Manager) alreadySubmitted(ctx context.Context, ch registry.Channel, matchID, userID string) {
	obslog.L().Info("submission_duplicate",
		zap.String("match_id", matchID),
		zap.String("user_id", userID),
		zap.Error(domain.ErrAlreadySubmitted),
	)
	m.reply(ctx, ch, quizdto.TypeAlreadySubmitted, quizdto.AlreadySubmitted{MatchID: matchID})
}

func isClosed(ch registry.Channel) bool {
	select {
	case <-ch.Done():
		return true
	default:
		return false
	}
}
