package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

const (
	DefaultSpeaker = "speaker"

	wordsPerMinute = 150
	msPerWord      = 60_000 / wordsPerMinute
	turnGapMS      = 1_000
)

// Segment splits free text into one turn per non-blank line and assigns a
// synthetic, strictly ordered timeline.
func Segment(text, defaultSpeaker string) []domain.TranscriptTurn {
	speaker := strings.TrimSpace(defaultSpeaker)
	if speaker == "" {
		speaker = DefaultSpeaker
	}

	lines := splitLines(text)
	dialogue := make([]domain.DialogueLine, 0, len(lines))
	for _, line := range lines {
		dialogue = append(dialogue, domain.DialogueLine{Speaker: speaker, Text: line})
	}
	return SegmentDialogue(dialogue)
}

// SegmentDialogue times speaker-attributed lines the same way Segment does.
func SegmentDialogue(lines []domain.DialogueLine) []domain.TranscriptTurn {
	turns := make([]domain.TranscriptTurn, 0, len(lines))
	var cursor int64
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(line.Speaker)
		if speaker == "" {
			speaker = DefaultSpeaker
		}

		if len(turns) > 0 {
			cursor += turnGapMS
		}
		start := cursor
		cursor += speakingDuration(text)
		turns = append(turns, domain.TranscriptTurn{
			Speaker: speaker,
			StartMS: start,
			EndMS:   cursor,
			Text:    text,
		})
	}
	return turns
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	out := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func speakingDuration(text string) int64 {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	return int64(words) * msPerWord
}

// ValidateTurns checks a caller-supplied turn sequence.
func ValidateTurns(turns []domain.TranscriptTurn) error {
	var prevEnd int64
	for i, turn := range turns {
		if strings.TrimSpace(turn.Text) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "validate turns", fmt.Errorf("turn %d has empty text", i))
		}
		if turn.StartMS < 0 || turn.EndMS < turn.StartMS {
			return domain.WrapError(domain.ErrInvalidInput, "validate turns", fmt.Errorf("turn %d has invalid span %d..%d", i, turn.StartMS, turn.EndMS))
		}
		if i > 0 && turn.StartMS < prevEnd {
			return domain.WrapError(domain.ErrInvalidInput, "validate turns", errors.New("turns overlap or are out of order"))
		}
		prevEnd = turn.EndMS
	}
	return nil
}
