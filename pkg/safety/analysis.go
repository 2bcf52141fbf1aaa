package safety

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

type Urgency string

const (
	UrgencyRed    Urgency = "red"
	UrgencyYellow Urgency = "yellow"
	UrgencyGreen  Urgency = "green"
)

// ParseUrgency accepts the Portuguese values the checker emits as well as the
// English names. Anything else is treated as yellow.
func ParseUrgency(s string) Urgency {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vermelho", "red":
		return UrgencyRed
	case "verde", "green":
		return UrgencyGreen
	default:
		return UrgencyYellow
	}
}

func (u *Urgency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*u = UrgencyYellow
		return nil
	}
	*u = ParseUrgency(s)
	return nil
}

type Alert struct {
	Title                  string   `json:"title"`
	Reasoning              string   `json:"reasoning"`
	EvidenceFromTranscript string   `json:"evidence_from_transcript"`
	UrgencyLevel           Urgency  `json:"urgency_level"`
	RecommendedActions     []string `json:"recommended_actions"`
}

type Analysis struct {
	Alerts              []Alert   `json:"alerts"`
	MissingQuestions    []string  `json:"missing_questions"`
	RecommendedConducts []string  `json:"recommended_conducts"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Red returns the alerts that need immediate attention.
func (a Analysis) Red() []Alert {
	var out []Alert
	for _, alert := range a.Alerts {
		if alert.UrgencyLevel == UrgencyRed {
			out = append(out, alert)
		}
	}
	return out
}

// Request is the snapshot a check runs against.
type Request struct {
	PatientID         string
	ReferenceDocument string
	StagedNote        string
}

type Checker interface {
	Check(ctx context.Context, req Request) (*Analysis, error)
}

// TailChars keeps the last max runes of s.
func TailChars(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-max:])
}
