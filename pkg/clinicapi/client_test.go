package clinicapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-consult-copilot/pkg/safety"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/transcribe-legacy/live", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "chunk_1000.wav", header.Filename)
		assert.Equal(t, "audio/wav", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte("RIFF"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Bom dia","segments":[{"id":0,"start":0.0,"end":1.2,"speaker":"SPEAKER_1","text":"Bom dia","type":"transcript.text.segment"}]}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL + "/", Token: "secret"})
	res, err := c.Transcribe(context.Background(), []byte("RIFF"), "chunk_1000.wav", "audio/wav")
	require.NoError(t, err)

	assert.Equal(t, "Bom dia", res.Text)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, "SPEAKER_1", res.Segments[0].Speaker)
	require.NotNil(t, res.Segments[0].ID)
	assert.Equal(t, "0", string(*res.Segments[0].ID))
}

func TestCheck(t *testing.T) {
	var got clinicalCheckRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/live-clinical-check", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{
			"critical_alerts": [{"title":"Risco de TEP","reasoning":"dispneia súbita","evidence_from_transcript":"falta de ar","urgency_level":"vermelho","recommended_actions":["D-dímero"]}],
			"missing_questions": ["Viagem recente?"],
			"recommended_conducts": []
		}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, MaxChars: 5})
	analysis, err := c.Check(context.Background(), safety.Request{
		PatientID:         "p1",
		ReferenceDocument: "antecedentes: HAS",
		StagedNote:        "paciente com dispneia",
	})
	require.NoError(t, err)

	assert.Equal(t, "p1", got.PatientID)
	assert.Equal(t, ": HAS", got.Prontuario)
	assert.Equal(t, "pneia", got.TranscriptPartial)

	require.Len(t, analysis.Alerts, 1)
	assert.Equal(t, safety.UrgencyRed, analysis.Alerts[0].UrgencyLevel)
	assert.Equal(t, []string{"Viagem recente?"}, analysis.MissingQuestions)
}

func TestChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/copilot/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"Suspender dipirona."}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, MaxChars: 8})
	answer, err := c.Chat(context.Background(), "p1", "Alguma alergia?", "Alergia a dipirona")
	require.NoError(t, err)

	assert.Equal(t, "Suspender dipirona.", answer)
	assert.Equal(t, "p1", got.PatientID)
	assert.Equal(t, "Alguma alergia?", got.Question)
	assert.Equal(t, "dipirona", got.Prontuario)
}

func TestStagingAndRecord(t *testing.T) {
	staging := map[string]string{"p1": "rascunho"}
	var appended string

	mux := http.NewServeMux()
	mux.HandleFunc("/patients/p1/staging", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]string{"content": staging["p1"]})
		case http.MethodPost:
			var body contentBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "p1", body.PatientID)
			staging["p1"] = body.Content
			_, _ = w.Write([]byte(`{"status":"success"}`))
		case http.MethodDelete:
			delete(staging, "p1")
			_, _ = w.Write([]byte(`{"status":"success"}`))
		}
	})
	mux.HandleFunc("/patients/p1/prontuario/append", func(w http.ResponseWriter, r *http.Request) {
		var body contentBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		appended = body.Content
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("/patients/p1/prontuario", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":"# Prontuário"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	ctx := context.Background()

	content, err := c.LoadStaging(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "rascunho", content)

	require.NoError(t, c.SaveStaging(ctx, "p1", "novo rascunho"))
	assert.Equal(t, "novo rascunho", staging["p1"])

	require.NoError(t, c.AppendToRecord(ctx, "p1", "novo rascunho"))
	assert.Equal(t, "novo rascunho", appended)

	require.NoError(t, c.ClearStaging(ctx, "p1"))
	_, ok := staging["p1"]
	assert.False(t, ok)

	record, err := c.LoadRecord(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "# Prontuário", record)
}

func TestTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/patients/missing/prontuario":
			http.Error(w, `{"detail":"Patient not found"}`, http.StatusNotFound)
		case "/patients/slow/staging":
			time.Sleep(200 * time.Millisecond)
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	ctx := context.Background()

	_, err := c.LoadRecord(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Contains(t, te.Error(), "Patient not found")

	_, err = c.LoadStaging(ctx, "slow")
	assert.ErrorIs(t, err, ErrTransport)

	_, err = c.LoadStaging(ctx, "garbled")
	assert.ErrorIs(t, err, ErrTransport)

	closed := New(Options{BaseURL: "http://127.0.0.1:1"})
	_, err = closed.Transcribe(ctx, []byte("x"), "chunk.wav", "audio/wav")
	assert.ErrorIs(t, err, ErrTransport)
}
