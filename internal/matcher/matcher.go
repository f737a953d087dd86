// Package matcher maps spoken transcripts onto a question's answer options.
package matcher

import "strings"

// ratingKeywords are recognised inside any option that contains them, so a
// transcript like "pretty poor" still selects "Poor Drainage". "very poor"
// needs no entry of its own: every option containing it also contains "poor".
var ratingKeywords = []string{"excellent", "good", "fair", "poor"}

// Match returns the first option, in the given order, that the transcript
// selects. An option is selected when its lowercased text occurs in the
// lowercased transcript, or when both the option and the transcript contain
// the same rating keyword.
func Match(transcript string, options []string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(transcript))
	if t == "" {
		return "", false
	}
	for _, option := range options {
		o := strings.ToLower(strings.TrimSpace(option))
		if o == "" {
			continue
		}
		if strings.Contains(t, o) {
			return option, true
		}
		for _, kw := range ratingKeywords {
			if strings.Contains(o, kw) && strings.Contains(t, kw) {
				return option, true
			}
		}
	}
	return "", false
}
