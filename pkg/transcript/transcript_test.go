package transcript

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func id(v string) *SegmentID {
	s := SegmentID(v)
	return &s
}

func TestJoinText(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		addition string
		want     string
	}{
		{"empty existing", "", "nota", "nota"},
		{"adds single space", "nota", "nova", "nota nova"},
		{"trailing space kept", "nota ", "nova", "nota nova"},
		{"trailing newline kept", "nota\n", "nova", "nota\nnova"},
		{"trailing non-breaking space", "nota\u00a0", "nova", "nota\u00a0nova"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinText(tt.existing, tt.addition))
		})
	}
}

func TestSegmentIDUnmarshal(t *testing.T) {
	var segs []DiarizedSegment
	require.NoError(t, json.Unmarshal([]byte(`[{"id":7,"text":"a"},{"id":"7","text":"b"},{"text":"c"}]`), &segs))

	require.Len(t, segs, 3)
	require.NotNil(t, segs[0].ID)
	assert.Equal(t, SegmentID("7"), *segs[0].ID)
	assert.Equal(t, KeyOf(segs[0]), KeyOf(segs[1]))
	assert.Nil(t, segs[2].ID)
}

func TestSegmentListUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"array", `{"segments":[{"text":"a"},{"text":"b"}]}`, 2},
		{"single object", `{"segments":{"text":"a"}}`, 1},
		{"null", `{"segments":null}`, 0},
		{"missing", `{"text":"oi"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res TranscriptionResult
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &res))
			assert.Len(t, res.Segments, tt.want)
		})
	}
}

func TestKeyOf(t *testing.T) {
	long := strings.Repeat("á", 60)

	assert.Equal(t, ByID("1"), KeyOf(DiarizedSegment{ID: id("1"), Text: "x"}))
	assert.Equal(t, KeyOf(DiarizedSegment{ID: id("1"), Text: "x"}), KeyOf(DiarizedSegment{ID: id("1"), Text: "y"}))
	assert.NotEqual(t, ByID("1"), ByPosition(nil, nil, "1"))

	a := KeyOf(DiarizedSegment{Start: f(1), End: f(2), Text: long + "tail one"})
	b := KeyOf(DiarizedSegment{Start: f(1), End: f(2), Text: long + "tail two"})
	assert.Equal(t, a, b, "keys compare only the first 50 runes")

	c := KeyOf(DiarizedSegment{Start: f(1), Text: "oi"})
	d := KeyOf(DiarizedSegment{Start: f(1), End: f(0), Text: "oi"})
	assert.NotEqual(t, c, d, "missing end differs from an end of zero")
}

func TestSegmentSetMerge(t *testing.T) {
	set := NewSegmentSet()
	batch := []DiarizedSegment{
		{ID: id("1"), Speaker: "SPEAKER_1", Text: "Bom dia"},
		{Start: f(2), End: f(3), Speaker: "SPEAKER_2", Text: "Bom dia doutora"},
	}

	assert.Equal(t, 2, set.Merge(batch))
	assert.Equal(t, 0, set.Merge(batch))
	assert.Equal(t, 2, set.Len())

	added := set.Merge([]DiarizedSegment{
		{ID: id("1"), Text: "revised text"},
		{ID: id("2"), Text: "next"},
	})
	assert.Equal(t, 1, added)

	items := set.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "Bom dia", items[0].Text, "first seen wins")
	assert.Equal(t, "next", items[2].Text)
}

func TestFormatTurns(t *testing.T) {
	labels := DefaultSpeakerLabels()

	tests := []struct {
		name     string
		segments []DiarizedSegment
		want     string
	}{
		{
			name: "two speakers",
			segments: []DiarizedSegment{
				{Start: f(0), Speaker: "SPEAKER_1", Text: "Bom dia"},
				{Start: f(1), Speaker: "SPEAKER_2", Text: "Bom dia doutora"},
			},
			want: "Médica: Bom dia\n\nPaciente: Bom dia doutora",
		},
		{
			name: "sorted by start and grouped",
			segments: []DiarizedSegment{
				{Start: f(4), Speaker: "SPEAKER_2", Text: "Desde ontem."},
				{Start: f(0), Speaker: "SPEAKER_1", Text: "Olá."},
				{Start: f(2), Speaker: "SPEAKER_1", Text: " Há quanto tempo? "},
			},
			want: "Médica: Olá. Há quanto tempo?\n\nPaciente: Desde ontem.",
		},
		{
			name: "missing start goes last",
			segments: []DiarizedSegment{
				{Speaker: "SPEAKER_1", Text: "Por fim"},
				{Start: f(1), Speaker: "SPEAKER_2", Text: "Primeiro"},
			},
			want: "Paciente: Primeiro\n\nMédica: Por fim",
		},
		{
			name: "blank text dropped",
			segments: []DiarizedSegment{
				{Start: f(0), Speaker: "SPEAKER_1", Text: "   "},
				{Start: f(1), Speaker: "SPEAKER_2", Text: "Sim"},
			},
			want: "Paciente: Sim",
		},
		{
			name: "no segments",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTurns(tt.segments, labels))
		})
	}
}

func TestParseSpeakerLabels(t *testing.T) {
	labels, err := ParseSpeakerLabels("SPEAKER_1=Médica, SPEAKER_2 = Paciente,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"SPEAKER_1": "Médica", "SPEAKER_2": "Paciente"}, labels)

	_, err = ParseSpeakerLabels("SPEAKER_1")
	assert.Error(t, err)

	sl := SpeakerLabels{Labels: labels, Default: "Outro"}
	assert.Equal(t, "Paciente", sl.Resolve("SPEAKER_2"))
	assert.Equal(t, "Outro", sl.Resolve("SPEAKER_9"))
}

func TestNoteAppendNeverOverwrites(t *testing.T) {
	note := NewNote("Queixa principal:")

	content, rev := note.Append("cefaleia")
	assert.Equal(t, "Queixa principal: cefaleia", content)
	assert.Equal(t, int64(1), rev)

	content, rev = note.Append("   ")
	assert.Equal(t, "Queixa principal: cefaleia", content)
	assert.Equal(t, int64(1), rev)

	content, _ = note.AppendBlock(" Sugestão: solicitar hemograma ")
	assert.Equal(t, "Queixa principal: cefaleia\n\nSugestão: solicitar hemograma", content)
}

func TestNoteEditRebasesAppends(t *testing.T) {
	note := NewNote("")
	note.Append("paciente relata dor")
	_, base := note.Snapshot()

	// Operator starts editing at base while two segments land.
	note.Append("há três dias")
	note.Append("sem febre")

	content, rev := note.Edit("Paciente relata dor torácica.", base)
	assert.Equal(t, "Paciente relata dor torácica. há três dias sem febre", content)
	assert.Equal(t, int64(4), rev)

	content, _ = note.Edit("Reescrito", 0)
	assert.Equal(t, "Reescrito", content)

	_, cur := note.Snapshot()
	content, _ = note.Edit("Atual", cur)
	assert.Equal(t, "Atual", content)
}

func TestNoteResetDropsReplayLog(t *testing.T) {
	note := NewNote("")
	note.Append("a")
	note.Reset("")
	content, _ := note.Edit("b", 1)
	assert.Equal(t, "b", content)
}

func TestNoteRelease(t *testing.T) {
	tests := []struct {
		name         string
		change       func(n *Note, rev int64)
		wantContent  string
		wantReleased bool
	}{
		{
			name:         "nothing changed",
			change:       func(n *Note, rev int64) {},
			wantContent:  "",
			wantReleased: true,
		},
		{
			name:         "later appends survive",
			change:       func(n *Note, rev int64) { n.Append("irradiada") },
			wantContent:  "irradiada",
			wantReleased: true,
		},
		{
			name: "operator extends the committed text",
			change: func(n *Note, rev int64) {
				n.Edit("paciente relata dor torácica há 2 dias", rev)
				n.Append("irradiando para o braço")
			},
			wantContent:  "torácica há 2 dias irradiando para o braço",
			wantReleased: true,
		},
		{
			name:         "operator rewrites the committed text",
			change:       func(n *Note, rev int64) { n.Edit("Dor torácica.", rev) },
			wantContent:  "Dor torácica.",
			wantReleased: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note := NewNote("paciente relata dor")
			committed, rev := note.Snapshot()
			tt.change(note, rev)

			content, _, released := note.Release(committed)
			assert.Equal(t, tt.wantContent, content)
			assert.Equal(t, tt.wantReleased, released)
		})
	}
}

func TestAssemblerApply(t *testing.T) {
	note := NewNote("nota ")
	asm := NewAssembler(note)

	u := asm.Apply(TranscriptionResult{
		Text: "Bom dia",
		Segments: SegmentList{
			{ID: id("1"), Start: f(0), Speaker: "SPEAKER_1", Text: "Bom dia"},
		},
	})
	assert.True(t, u.Changed())
	assert.Equal(t, "Bom dia", u.Transcript)
	assert.Equal(t, "nota Bom dia", u.Note)
	assert.Equal(t, 1, u.SegmentsAdded)

	u = asm.Apply(TranscriptionResult{Text: "doutora"})
	assert.Equal(t, "Bom dia doutora", u.Transcript)
	assert.Equal(t, "nota Bom dia doutora", u.Note)

	u = asm.Apply(TranscriptionResult{Segments: SegmentList{{ID: id("1"), Text: "dup"}}})
	assert.False(t, u.Changed())

	assert.Equal(t, "Médica: Bom dia", asm.Turns(DefaultSpeakerLabels()))
}

func TestAssemblerConcurrentApply(t *testing.T) {
	asm := NewAssembler(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			asm.Apply(TranscriptionResult{Text: "x"})
		}()
	}
	wg.Wait()

	assert.Equal(t, strings.TrimSpace(strings.Repeat("x ", 50)), asm.Transcript())
	content, rev := asm.Note().Snapshot()
	assert.Equal(t, asm.Transcript(), content)
	assert.Equal(t, int64(50), rev)
}
