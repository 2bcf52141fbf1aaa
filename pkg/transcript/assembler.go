package transcript

import (
	"strings"
	"sync"
)

// Update describes what one Apply changed.
type Update struct {
	Transcript    string
	Note          string
	NoteRevision  int64
	TextAppended  bool
	SegmentsAdded int
}

func (u Update) Changed() bool {
	return u.TextAppended || u.SegmentsAdded > 0
}

// Assembler folds transcription results into the live transcript, the staged
// note and the deduplicated segment set. Results are applied in arrival order.
type Assembler struct {
	mu         sync.Mutex
	transcript string
	note       *Note
	segments   *SegmentSet
}

func NewAssembler(note *Note) *Assembler {
	if note == nil {
		note = NewNote("")
	}
	return &Assembler{note: note, segments: NewSegmentSet()}
}

func (a *Assembler) Apply(result TranscriptionResult) Update {
	a.mu.Lock()
	defer a.mu.Unlock()

	var u Update
	if strings.TrimSpace(result.Text) != "" {
		a.transcript = JoinText(a.transcript, result.Text)
		a.note.Append(result.Text)
		u.TextAppended = true
	}
	if len(result.Segments) > 0 {
		u.SegmentsAdded = a.segments.Merge(result.Segments)
	}
	u.Transcript = a.transcript
	u.Note, u.NoteRevision = a.note.Snapshot()
	return u
}

func (a *Assembler) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcript
}

func (a *Assembler) Segments() []DiarizedSegment {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.segments.Items()
}

func (a *Assembler) Note() *Note {
	return a.note
}

// Turns renders the collected segments as speaker turns.
func (a *Assembler) Turns(labels SpeakerLabels) string {
	return FormatTurns(a.Segments(), labels)
}
