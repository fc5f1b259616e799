// Package wrapup renders a deterministic Markdown digest from a closed
// session's log.jsonl: participant talk-time totals, utterance counts, and
// a chronological transcript. It is a mechanical companion to the session
// log, not the LLM-authored wrap-up narrative — it never calls a model and
// never summarizes content, only aggregates and formats it.
package wrapup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MrWong99/glyphoxa/internal/sessionlog"
)

// participantStats accumulates per-user totals while walking the log.
type participantStats struct {
	userID      string
	displayName string
	totalMs     float64
	utterances  int
}

// Generate renders entries into a Markdown digest. entries need not be
// sorted; the transcript section is rendered in start_ts order regardless
// of log commit order (the log commits in transcription-arrival order per
// spec.md §5, not capture order).
func Generate(sessionName string, entries []sessionlog.Entry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session digest: %s\n\n", sessionName)

	if len(entries) == 0 {
		b.WriteString("No activity recorded.\n")
		return b.String()
	}

	sorted := append([]sessionlog.Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTs < sorted[j].StartTs })

	stats := talkTimeTotals(sorted)

	b.WriteString("## Participants\n\n")
	b.WriteString("| Display name | Talk time | Utterances |\n")
	b.WriteString("|---|---|---|\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "| %s | %s | %d |\n", s.displayName, formatDuration(s.totalMs), s.utterances)
	}

	b.WriteString("\n## Transcript\n\n")
	for _, e := range sorted {
		fmt.Fprintf(&b, "- **%s** [%s]: %s\n", e.DisplayName, formatTimestamp(e.StartTs), e.Text)
	}

	return b.String()
}

// talkTimeTotals aggregates per-user totals across voice-origin entries
// only; text messages count toward utterances but not talk time.
func talkTimeTotals(entries []sessionlog.Entry) []participantStats {
	byUser := make(map[string]*participantStats)
	var order []string

	for _, e := range entries {
		s, ok := byUser[e.UserID]
		if !ok {
			s = &participantStats{userID: e.UserID, displayName: e.DisplayName}
			byUser[e.UserID] = s
			order = append(order, e.UserID)
		}
		if e.DisplayName != "" {
			s.displayName = e.DisplayName
		}
		s.utterances++
		if e.Origin == sessionlog.OriginVoice {
			s.totalMs += (e.EndTs - e.StartTs) * 1000
		}
	}

	out := make([]participantStats, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].totalMs > out[j].totalMs })
	return out
}

func formatDuration(ms float64) string {
	total := int(ms) / 1000
	minutes := total / 60
	seconds := total % 60
	return fmt.Sprintf("%dm%02ds", minutes, seconds)
}

func formatTimestamp(epochSeconds float64) string {
	total := int(epochSeconds)
	hours := (total / 3600) % 24
	minutes := (total / 60) % 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// WriteDigest reads logPath (a session's log.jsonl) and writes the rendered
// digest to outPath. sessionName is used only for the digest's title.
func WriteDigest(sessionName, logPath, outPath string) error {
	entries, err := sessionlog.ReadAll(logPath)
	if err != nil {
		return fmt.Errorf("wrapup: read session log: %w", err)
	}

	digest := Generate(sessionName, entries)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("wrapup: create output dir: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(digest), 0o644); err != nil {
		return fmt.Errorf("wrapup: write digest: %w", err)
	}
	return nil
}
