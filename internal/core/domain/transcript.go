package domain

// TranscriptTurn is one attributed utterance. Times are synthetic
// milliseconds used only to order evidence.
type TranscriptTurn struct {
	Speaker string `json:"speaker"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Evidence cites the turn an extracted value came from.
type Evidence struct {
	Speaker string `json:"speaker"`
	StartMS *int64 `json:"start_ms"`
	EndMS   *int64 `json:"end_ms"`
	Quote   string `json:"quote"`
}

func EvidenceFromTurn(turn TranscriptTurn) Evidence {
	start, end := turn.StartMS, turn.EndMS
	return Evidence{
		Speaker: turn.Speaker,
		StartMS: &start,
		EndMS:   &end,
		Quote:   turn.Text,
	}
}

// End returns the evidence end time, or -1 when it is unknown.
func (e Evidence) End() int64 {
	if e.EndMS == nil {
		return -1
	}
	return *e.EndMS
}

// DialogueLine is a speaker-attributed line without timing.
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}
