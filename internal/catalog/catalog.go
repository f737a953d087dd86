package catalog

import (
	"errors"
	"fmt"
)

// Kind identifies how a question is answered.
type Kind string

const (
	KindSingleChoice Kind = "single-choice"
)

// ErrOutOfRange is returned when a question index is past the end of the catalog.
var ErrOutOfRange = errors.New("question index out of range")

// Question is one immutable survey prompt with its ordered answer options.
type Question struct {
	ID      int      `json:"id" yaml:"id"`
	Text    string   `json:"text" yaml:"text"`
	Options []string `json:"options" yaml:"options"`
	Kind    Kind     `json:"kind" yaml:"kind"`
}

// HasOption reports whether option is exactly one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Catalog is an ordered, read-only list of questions. Catalog order is
// presentation order.
type Catalog struct {
	questions []Question
}

// New validates questions and builds a catalog from a private copy of them.
func New(questions []Question) (*Catalog, error) {
	normalized, err := normalizeQuestions(questions)
	if err != nil {
		return nil, err
	}
	return &Catalog{questions: normalized}, nil
}

// MustNew is New for static content that is known to be valid.
func MustNew(questions []Question) *Catalog {
	c, err := New(questions)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the question at index.
func (c *Catalog) Get(index int) (Question, error) {
	if index < 0 || index >= len(c.questions) {
		return Question{}, fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, index, len(c.questions))
	}
	return cloneQuestion(c.questions[index]), nil
}

// Len returns the number of questions.
func (c *Catalog) Len() int { return len(c.questions) }

// All returns a copy of every question in order.
func (c *Catalog) All() []Question {
	out := make([]Question, 0, len(c.questions))
	for _, q := range c.questions {
		out = append(out, cloneQuestion(q))
	}
	return out
}

func cloneQuestion(q Question) Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}
