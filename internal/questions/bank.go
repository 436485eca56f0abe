package questions

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/campus-quiz-core/internal/domain"
)

//go:embed bank.yaml
var defaultFiles embed.FS

// DefaultTopic is served when a topic has no questions of its own.
const DefaultTopic = "general"

type bankFile struct {
	Topics map[string][]domain.Question `yaml:"topics"`
}

// Bank serves questions from the embedded bank plus optional override files.
// An override file replaces whole topics.
type Bank struct {
	mu      sync.RWMutex
	topics  map[string][]domain.Question
	shuffle func([]domain.Question)
}

func NewBank(overrideDir string) (*Bank, error) {
	b := &Bank{
		topics: make(map[string][]domain.Question),
		shuffle: func(qs []domain.Question) {
			rand.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
		},
	}
	raw, err := fs.ReadFile(defaultFiles, "bank.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded bank: %w", err)
	}
	if err := b.apply(raw, "bank.yaml"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := b.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Bank) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read question dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := b.apply(raw, name); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bank) apply(raw []byte, name string) error {
	var f bankFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	for topic, qs := range f.Topics {
		if err := domain.ValidateQuestions(qs); err != nil {
			return fmt.Errorf("%s topic %q: %w", name, topic, err)
		}
	}
	b.mu.Lock()
	for topic, qs := range f.Topics {
		b.topics[normalize(topic)] = qs
	}
	b.mu.Unlock()
	return nil
}

// Topics lists the topics with at least one question.
func (b *Bank) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.topics))
	for t := range b.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Generate picks up to n questions for topic in random order.
func (b *Bank) Generate(_ context.Context, topic string, n int) ([]domain.Question, error) {
	b.mu.RLock()
	pool, ok := b.topics[normalize(topic)]
	if !ok {
		pool = b.topics[DefaultTopic]
	}
	out := append([]domain.Question(nil), pool...)
	b.mu.RUnlock()

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoQuestions, topic)
	}
	b.shuffle(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func normalize(topic string) string { return strings.ToLower(strings.TrimSpace(topic)) }
