// Package displayname resolves a participant id to a human-readable display
// name for session log entries. Resolution is best-effort: failures are
// swallowed and the caller falls back to the raw participant id.
package displayname

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/glyphoxa/internal/observe"
)

const defaultFuzzyThreshold = 0.85

// Directory is the external collaborator that resolves a participant id to
// its current display name within a guild/channel scope. Implementations
// typically call out to the voice platform's API.
type Directory interface {
	Lookup(ctx context.Context, guildID, participantID string) (displayName string, err error)
}

// Resolver maintains a read-mostly per-guild cache of resolved display
// names. Cache writes happen only on successful directory resolution;
// reads are safe from any goroutine.
type Resolver struct {
	dir            Directory
	fuzzyThreshold float64
	group          singleflight.Group
	metrics        *observe.Metrics

	mu    sync.RWMutex
	cache map[string]map[string]string // guildID -> participantID -> name
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFuzzyThreshold overrides the Jaro-Winkler similarity required for the
// fuzzy fallback to accept an already-cached name. Default 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(r *Resolver) { r.fuzzyThreshold = threshold }
}

// WithMetrics records resolution outcomes ("hit", "fuzzy", "miss") to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates a Resolver backed by dir.
func New(dir Directory, opts ...Option) *Resolver {
	r := &Resolver{
		dir:            dir,
		fuzzyThreshold: defaultFuzzyThreshold,
		cache:          make(map[string]map[string]string),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Cached returns the cached display name for (guildID, participantID), if
// one has already been resolved. It never calls the directory and never
// blocks on network I/O — suitable for the synchronous cache-hit path in
// on_transcription.
func (r *Resolver) Cached(guildID, participantID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	guild, ok := r.cache[guildID]
	if !ok {
		return "", false
	}
	name, ok := guild[participantID]
	return name, ok
}

// ResolveAsync fires a background resolution for (guildID, participantID)
// and populates the cache on success. Concurrent calls for the same key are
// deduplicated. Failures are logged and otherwise swallowed; a subsequent
// Cached call for the same key simply keeps missing.
func (r *Resolver) ResolveAsync(ctx context.Context, guildID, participantID string) {
	if r.dir == nil {
		return
	}
	key := guildID + "\x00" + participantID
	go func() {
		_, _, _ = r.group.Do(key, func() (any, error) {
			name, err := r.dir.Lookup(ctx, guildID, participantID)
			if err != nil {
				if fallback, ok := r.fuzzyFallback(guildID, participantID); ok {
					r.store(guildID, participantID, fallback)
					r.recordOutcome("fuzzy")
					return fallback, nil
				}
				slog.Warn("displayname: resolution failed", "guild_id", guildID, "participant_id", participantID, "error", err)
				r.recordOutcome("miss")
				return nil, err
			}
			r.store(guildID, participantID, name)
			r.recordOutcome("hit")
			return name, nil
		})
	}()
}

func (r *Resolver) recordOutcome(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordDisplayNameResolution(context.Background(), outcome)
	}
}

func (r *Resolver) store(guildID, participantID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	guild, ok := r.cache[guildID]
	if !ok {
		guild = make(map[string]string)
		r.cache[guildID] = guild
	}
	guild[participantID] = name
}

// fuzzyFallback tests participantID against every name already cached for
// guildID, accepting the best Jaro-Winkler match above the configured
// threshold. This recovers from a directory lookup failure when the
// participant has already been seen under a slightly different identifier
// representation (e.g. truncated or re-encoded by the platform).
func (r *Resolver) fuzzyFallback(guildID, participantID string) (string, bool) {
	r.mu.RLock()
	guild := r.cache[guildID]
	names := make([]string, 0, len(guild))
	for _, n := range guild {
		names = append(names, n)
	}
	r.mu.RUnlock()

	if len(names) == 0 {
		return "", false
	}

	target := strings.ToLower(participantID)
	var best string
	var bestScore float64
	for _, n := range names {
		score := matchr.JaroWinkler(target, strings.ToLower(n), false)
		if score > bestScore {
			bestScore = score
			best = n
		}
	}
	if bestScore >= r.fuzzyThreshold {
		return best, true
	}
	return "", false
}
