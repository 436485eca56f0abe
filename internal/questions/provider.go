package questions

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/campus-quiz-core/internal/domain"
	"github.com/park285/campus-quiz-core/internal/obslog"
)

var ErrNoQuestions = errors.New("no questions available for topic")

// Provider produces a question set for a topic.
type Provider interface {
	Generate(ctx context.Context, topic string, n int) ([]domain.Question, error)
}

// Generator is satisfied by upstream.Client.
type Generator interface {
	GenerateQuestions(ctx context.Context, topic string, n int) ([]domain.Question, error)
}

type remote struct{ gen Generator }

func NewRemote(gen Generator) Provider { return remote{gen: gen} }

func (r remote) Generate(ctx context.Context, topic string, n int) ([]domain.Question, error) {
	qs, err := r.gen.GenerateQuestions(ctx, topic, n)
	if err != nil {
		return nil, err
	}
	if len(qs) > n {
		qs = qs[:n]
	}
	return qs, nil
}

type fallback struct {
	primary, secondary Provider
}

// NewFallback uses secondary when primary fails or returns nothing.
func NewFallback(primary, secondary Provider) Provider {
	return fallback{primary: primary, secondary: secondary}
}

func (f fallback) Generate(ctx context.Context, topic string, n int) ([]domain.Question, error) {
	qs, err := f.primary.Generate(ctx, topic, n)
	if err == nil && len(qs) > 0 {
		return qs, nil
	}
	obslog.L().Warn("question_provider_fallback", zap.String("topic", topic), zap.Error(err))
	return f.secondary.Generate(ctx, topic, n)
}

// Static always returns the same questions. Used by tests and room seeding.
type Static []domain.Question

func (s Static) Generate(_ context.Context, _ string, n int) ([]domain.Question, error) {
	if len(s) == 0 {
		return nil, ErrNoQuestions
	}
	out := append([]domain.Question(nil), s...)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Validated wraps p so every result passes domain validation.
func Validated(p Provider) Provider { return validated{p} }

type validated struct{ p Provider }

func (v validated) Generate(ctx context.Context, topic string, n int) ([]domain.Question, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: question count must be positive", domain.ErrInvalidArgs)
	}
	qs, err := v.p.Generate(ctx, topic, n)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateQuestions(qs); err != nil {
		return nil, fmt.Errorf("provider for %q: %w", topic, err)
	}
	return qs, nil
}
