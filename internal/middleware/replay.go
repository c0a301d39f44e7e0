package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrReplayed = errors.New("signature already seen")
	ErrStale    = errors.New("timestamp outside allowed window")
)

// ReplayGuard rejects interactions whose signature was already accepted, and
// optionally those whose timestamp is too far from now. It only ever sees
// requests whose signature verified.
type ReplayGuard struct {
	seen    *lru.Cache[string, struct{}]
	maxSkew time.Duration
	now     func() time.Time
}

// NewReplayGuard remembers up to size signatures; size 0 disables the replay
// check and maxSkew 0 disables the timestamp check.
func NewReplayGuard(size int, maxSkew time.Duration) (*ReplayGuard, error) {
	g := &ReplayGuard{maxSkew: maxSkew, now: time.Now}
	if size > 0 {
		cache, err := lru.New[string, struct{}](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create replay cache: %w", err)
		}
		g.seen = cache
	}
	return g, nil
}

// Check records signature and reports whether the request must be rejected.
func (g *ReplayGuard) Check(timestamp, signature string) error {
	if g == nil {
		return nil
	}
	if g.maxSkew > 0 {
		secs, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a unix time", ErrStale, timestamp)
		}
		skew := g.now().Sub(time.Unix(secs, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > g.maxSkew {
			return fmt.Errorf("%w: off by %s", ErrStale, skew.Truncate(time.Second))
		}
	}
	if g.seen != nil {
		if found, _ := g.seen.ContainsOrAdd(strings.ToLower(signature), struct{}{}); found {
			return ErrReplayed
		}
	}
	return nil
}
