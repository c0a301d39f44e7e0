package verdict

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// Action is the only action carried in review button tokens.
	Action    = "rate"
	Delimiter = ":"

	// CommandPrefix starts a text-command verdict: "!rate <id> <verdict...>".
	CommandPrefix = "!rate"

	// Platform limits for a single action row of buttons.
	MaxLabels      = 5
	MaxLabelRunes  = 80
	MaxTokenLength = 100

	// Snowflake ids render as at most 19 decimal digits.
	maxIDLength = 19
)

var ErrMalformedToken = errors.New("malformed action token")

// Vocabulary is the configured set of verdict labels offered to reviewers.
type Vocabulary struct {
	Labels      []string
	Destructive string
}

func NewVocabulary(labels []string, destructive string) (Vocabulary, error) {
	v := Vocabulary{Destructive: strings.TrimSpace(destructive)}
	seen := make(map[string]struct{}, len(labels))
	for _, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			return Vocabulary{}, fmt.Errorf("verdict labels must not be empty")
		}
		if strings.Contains(label, Delimiter) {
			return Vocabulary{}, fmt.Errorf("verdict label %q must not contain %q", label, Delimiter)
		}
		if utf8.RuneCountInString(label) > MaxLabelRunes {
			return Vocabulary{}, fmt.Errorf("verdict label %q exceeds %d characters", label, MaxLabelRunes)
		}
		if n := len(FormatToken(strings.Repeat("9", maxIDLength), label)); n > MaxTokenLength {
			return Vocabulary{}, fmt.Errorf("verdict label %q makes a %d byte token, limit is %d", label, n, MaxTokenLength)
		}
		if _, dup := seen[label]; dup {
			return Vocabulary{}, fmt.Errorf("verdict label %q is duplicated", label)
		}
		seen[label] = struct{}{}
		v.Labels = append(v.Labels, label)
	}
	if len(v.Labels) == 0 {
		return Vocabulary{}, fmt.Errorf("at least one verdict label is required")
	}
	if len(v.Labels) > MaxLabels {
		return Vocabulary{}, fmt.Errorf("at most %d verdict labels fit in one row, got %d", MaxLabels, len(v.Labels))
	}
	if v.Destructive != "" {
		if _, ok := seen[v.Destructive]; !ok {
			return Vocabulary{}, fmt.Errorf("destructive label %q is not one of the verdict labels", v.Destructive)
		}
	}
	return v, nil
}

func (v Vocabulary) IsDestructive(label string) bool {
	return v.Destructive != "" && label == v.Destructive
}

// Token is a decoded composite action token.
type Token struct {
	ID      string
	Verdict string
}

// FormatToken encodes id and verdict as "rate:<id>:<verdict>".
func FormatToken(id, verdict string) string {
	return Action + Delimiter + id + Delimiter + verdict
}

// ParseToken decodes "rate:<id>:<verdict>". Anything else, including other
// actions, is ErrMalformedToken.
func ParseToken(s string) (Token, error) {
	parts := strings.Split(s, Delimiter)
	if len(parts) != 3 {
		return Token{}, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformedToken, len(parts))
	}
	if parts[0] != Action {
		return Token{}, fmt.Errorf("%w: unknown action %q", ErrMalformedToken, parts[0])
	}
	if parts[1] == "" || parts[2] == "" {
		return Token{}, fmt.Errorf("%w: empty field", ErrMalformedToken)
	}
	return Token{ID: parts[1], Verdict: parts[2]}, nil
}

// ParseCommand decodes "!rate <id> <verdict...>". Only the first two
// whitespace-separated tokens are split off; the verdict keeps its inner
// spaces.
func ParseCommand(content string) (Token, bool) {
	cmd, rest, ok := cutSpace(strings.TrimSpace(content))
	if !ok || cmd != CommandPrefix {
		return Token{}, false
	}
	id, verdict, ok := cutSpace(rest)
	if !ok {
		return Token{}, false
	}
	verdict = strings.TrimSpace(verdict)
	if id == "" || verdict == "" {
		return Token{}, false
	}
	return Token{ID: id, Verdict: verdict}, true
}

func cutSpace(s string) (string, string, bool) {
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, "", false
	}
	return s[:i], strings.TrimLeft(s[i+1:], " \t\n"), true
}
