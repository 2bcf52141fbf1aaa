package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SegmentID accepts both string and numeric ids on the wire. Both forms share
// one namespace: "7" and 7 identify the same segment.
type SegmentID string

func (id *SegmentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SegmentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("segment id: %w", err)
	}
	*id = SegmentID(n.String())
	return nil
}

// DiarizedSegment is one speaker-attributed piece of a transcription result.
// Every field is optional on the wire.
type DiarizedSegment struct {
	ID      *SegmentID `json:"id,omitempty"`
	Start   *float64   `json:"start,omitempty"`
	End     *float64   `json:"end,omitempty"`
	Speaker string     `json:"speaker,omitempty"`
	Text    string     `json:"text,omitempty"`
	Type    string     `json:"type,omitempty"`
}

// SegmentList decodes either an array of segments or a single segment object.
type SegmentList []DiarizedSegment

func (l *SegmentList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case data[0] == '{':
		var one DiarizedSegment
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*l = SegmentList{one}
		return nil
	default:
		var many []DiarizedSegment
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
}

// TranscriptionResult is what the transcription endpoint returns per segment.
type TranscriptionResult struct {
	Text     string      `json:"text,omitempty"`
	Segments SegmentList `json:"segments,omitempty"`
}
