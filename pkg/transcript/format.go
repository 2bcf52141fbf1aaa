package transcript

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultSpeakerTag is the diarization tag the transcription model assigns to the clinician.
const DefaultSpeakerTag = "SPEAKER_1"

// SpeakerLabels maps raw diarization tags to display names.
type SpeakerLabels struct {
	Labels  map[string]string
	Default string
}

func DefaultSpeakerLabels() SpeakerLabels {
	return SpeakerLabels{
		Labels:  map[string]string{DefaultSpeakerTag: "Médica"},
		Default: "Paciente",
	}
}

func (l SpeakerLabels) Resolve(tag string) string {
	if name, ok := l.Labels[tag]; ok && name != "" {
		return name
	}
	return l.Default
}

// ParseSpeakerLabels reads "TAG=Name,TAG=Name".
func ParseSpeakerLabels(raw string) (map[string]string, error) {
	labels := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tag, name, ok := strings.Cut(pair, "=")
		tag, name = strings.TrimSpace(tag), strings.TrimSpace(name)
		if !ok || tag == "" || name == "" {
			return nil, fmt.Errorf("invalid speaker label %q, want TAG=Name", pair)
		}
		labels[tag] = name
	}
	return labels, nil
}

// FormatTurns renders segments as chronological speaker turns:
//
//	Médica: Bom dia
//
//	Paciente: Bom dia doutora
func FormatTurns(segments []DiarizedSegment, labels SpeakerLabels) string {
	sorted := make([]DiarizedSegment, 0, len(segments))
	for _, s := range segments {
		if strings.TrimSpace(s.Text) != "" {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Start, sorted[j].Start
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})

	var (
		turns   []string
		speaker string
		buffer  []string
	)
	for _, s := range sorted {
		name := labels.Resolve(s.Speaker)
		text := strings.TrimSpace(s.Text)
		if len(buffer) > 0 && name != speaker {
			turns = append(turns, speaker+": "+strings.Join(buffer, " "))
			buffer = buffer[:0]
		}
		speaker = name
		buffer = append(buffer, text)
	}
	if len(buffer) > 0 {
		turns = append(turns, speaker+": "+strings.Join(buffer, " "))
	}
	return strings.Join(turns, "\n\n")
}
