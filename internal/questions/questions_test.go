package questions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/park285/campus-quiz-core/internal/domain"
)

func TestBankEmbeddedTopics(t *testing.T) {
	b, err := NewBank("")
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	for _, topic := range []string{"general", "dsa", "networks", "databases"} {
		qs, err := b.Generate(context.Background(), topic, 10)
		if err != nil {
			t.Fatalf("Generate %s: %v", topic, err)
		}
		if len(qs) != 10 {
			t.Fatalf("%s: expected 10 questions, got %d", topic, len(qs))
		}
		if err := domain.ValidateQuestions(qs); err != nil {
			t.Fatalf("%s: %v", topic, err)
		}
	}
}

func TestBankUnknownTopicFallsBackToGeneral(t *testing.T) {
	b, err := NewBank("")
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	b.shuffle = func([]domain.Question) {}
	qs, err := b.Generate(context.Background(), "  Astrophysics ", 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := b.topics[DefaultTopic][:2]
	if qs[0].Text != want[0].Text || qs[1].Text != want[1].Text {
		t.Fatalf("expected general questions, got %+v", qs)
	}
}

func TestBankOverrideReplacesTopic(t *testing.T) {
	dir := t.TempDir()
	override := []byte(`topics:
  DSA:
    - text: "only one"
      options: ["a", "b", "c", "d"]
      correct: 3
`)
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), override, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := NewBank(dir)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	qs, err := b.Generate(context.Background(), "dsa", 10)
	if err != nil || len(qs) != 1 || qs[0].CorrectIndex != 3 {
		t.Fatalf("override not applied: %+v %v", qs, err)
	}
}

func TestBankOverrideRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := []byte("topics:\n  dsa:\n    - text: x\n      options: [a, b]\n      correct: 0\n")
	if err := os.WriteFile(filepath.Join(dir, "bad.yml"), bad, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewBank(dir); err == nil {
		t.Fatalf("expected validation error")
	}
}

type failing struct{}

func (failing) Generate(context.Context, string, int) ([]domain.Question, error) {
	return nil, errors.New("generator down")
}

func TestFallbackAndValidated(t *testing.T) {
	static := Static{{Text: "q", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1}}
	p := Validated(NewFallback(failing{}, static))
	qs, err := p.Generate(context.Background(), "dsa", 5)
	if err != nil || len(qs) != 1 {
		t.Fatalf("fallback: %+v %v", qs, err)
	}
	if _, err := p.Generate(context.Background(), "dsa", 0); !errors.Is(err, domain.ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
	broken := Validated(Static{{Text: "q", Options: []string{"a"}, CorrectIndex: 0}})
	if _, err := broken.Generate(context.Background(), "dsa", 1); err == nil {
		t.Fatalf("expected validation failure")
	}
}
