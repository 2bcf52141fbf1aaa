package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

// Walks a running server through one consultation: start, listen for a
// few segments, accept a suggestion, analyze, ask the copilot, stop.
//
//	SMOKE_TOKEN=... SMOKE_PATIENT=p1 go run ./scripts

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	baseURL   = getenv("SMOKE_BASE_URL", "http://localhost:3000/api")
	token     = os.Getenv("SMOKE_TOKEN")
	patientID = getenv("SMOKE_PATIENT", "smoke-patient")
	listenFor = 10 * time.Second
)

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, path string, body interface{}) (*http.Response, map[string]interface{}, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}
	_ = json.Unmarshal(raw, &out)
	return resp, out, nil
}

func step(title, method, path string, body interface{}) map[string]interface{} {
	color.Yellow("\n%s", title)
	resp, out, err := sendRequest(method, path, body)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	if resp.StatusCode >= 400 {
		color.Red("Status: %s", resp.Status)
	} else {
		color.Green("Status: %s", resp.Status)
	}
	prettyPrint(out)
	return out
}

func main() {
	color.Cyan("Consultation smoke test for patient %s\n", patientID)

	consultation := "/consultations/" + patientID

	step("1. Health", http.MethodGet, "/health", nil)

	started := step("2. Start consultation", http.MethodPost, consultation+"/start", nil)
	if ok, _ := started["success"].(bool); !ok {
		color.Red("Consultation did not start; check microphone permissions and ffmpeg")
		os.Exit(1)
	}

	color.Yellow("\n3. Speak now, listening for %s", listenFor)
	time.Sleep(listenFor)

	step("4. Status", http.MethodGet, consultation, nil)
	step("5. Accept suggestion", http.MethodPost, consultation+"/suggestions/accept", map[string]string{
		"text": "Smoke test: sugestão aceita.",
	})
	step("6. Analyze now", http.MethodPost, consultation+"/analyze", nil)
	step("7. Ask copilot", http.MethodPost, consultation+"/chat", map[string]string{
		"question": "Há alguma alergia registrada?",
	})
	step("8. Stop consultation", http.MethodPost, consultation+"/stop", nil)
	step("9. Recent warnings", http.MethodGet, "/diagnostics/logs?level=warn&limit=10", nil)

	color.Cyan("\nDone.")
}
