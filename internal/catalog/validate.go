package catalog

import (
	"fmt"
	"strings"
)

// Issue captures a single validation problem in a catalog.
type Issue struct {
	Field   string
	Message string
}

// ValidationError reports every issue found while validating a catalog.
type ValidationError struct {
	Issues []Issue
}

func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return ""
	}
	parts := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return fmt.Sprintf("question catalog validation failed: %s", strings.Join(parts, "; "))
}

type issueCollector struct {
	issues []Issue
}

func (c *issueCollector) add(field, message string) {
	c.issues = append(c.issues, Issue{Field: field, Message: message})
}

func (c *issueCollector) result() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}

func normalizeQuestions(questions []Question) ([]Question, error) {
	collector := &issueCollector{}
	if len(questions) == 0 {
		collector.add("questions", "must include at least one entry")
	}

	out := make([]Question, 0, len(questions))
	seenIDs := map[int]struct{}{}
	for i, q := range questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		if q.ID <= 0 {
			collector.add(prefix+".id", "must be positive")
		} else if _, exists := seenIDs[q.ID]; exists {
			collector.add(prefix+".id", fmt.Sprintf("duplicate id %d", q.ID))
		} else {
			seenIDs[q.ID] = struct{}{}
		}

		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			collector.add(prefix+".text", "is required")
		}

		switch Kind(strings.TrimSpace(string(q.Kind))) {
		case "", KindSingleChoice:
			q.Kind = KindSingleChoice
		default:
			collector.add(prefix+".kind", fmt.Sprintf("unsupported kind %q", q.Kind))
		}

		options := make([]string, 0, len(q.Options))
		seenOptions := map[string]struct{}{}
		for j, option := range q.Options {
			option = strings.TrimSpace(option)
			field := fmt.Sprintf("%s.options[%d]", prefix, j)
			if option == "" {
				collector.add(field, "is required")
				continue
			}
			key := strings.ToLower(option)
			if _, exists := seenOptions[key]; exists {
				collector.add(field, fmt.Sprintf("duplicate option %q", option))
				continue
			}
			seenOptions[key] = struct{}{}
			options = append(options, option)
		}
		if len(q.Options) == 0 {
			collector.add(prefix+".options", "must include at least one entry")
		}
		q.Options = options
		out = append(out, q)
	}

	if err := collector.result(); err != nil {
		return nil, err
	}
	return out, nil
}
