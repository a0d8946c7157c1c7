package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synapsestack/csaw-engine/internal/engine"
	"github.com/synapsestack/csaw-engine/internal/models"
	"github.com/synapsestack/csaw-engine/internal/notify"
	"github.com/synapsestack/csaw-engine/internal/services"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	pipeline, err := engine.NewPipeline(nil, nil, nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	notifier := notify.NewRegistry(nil, notify.Settings{})
	service := services.NewAnalysisService(nil, pipeline, nil, notifier)

	srv := NewServer(":0", service, notifier, nil)
	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestHandleAnalyze(t *testing.T) {
	_, ts := newTestServer(t)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	resp := postJSON(t, ts.URL+"/v1/analyze", map[string]any{
		"project_id": "proj-1",
		"now":        now,
		"messages": []models.Message{
			{ID: "m1", AuthorID: "alice", Content: "I think we should compare both options because the data is mixed", Timestamp: now.Add(-time.Minute)},
			{ID: "m2", AuthorID: "bob", Content: "agree, sounds good", Timestamp: now.Add(-30 * time.Second)},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.AnalysisID == "" || result.ProjectID != "proj-1" {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Windows) == 0 {
		t.Fatal("result has no windows")
	}
}

func TestHandleAnalyzeValidation(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/analyze", map[string]any{"messages": []models.Message{}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing project_id status = %d, want 400", resp.StatusCode)
	}

	resp2, err := http.Post(ts.URL+"/v1/analyze", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", resp2.StatusCode)
	}
}

func TestHandleSessionReset(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/sessions/reset", map[string]any{"project_id": "proj-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleWindows(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/windows")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Windows []models.TimeWindow `json:"windows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Windows) != 5 {
		t.Fatalf("got %d windows, want the 5 default horizons", len(payload.Windows))
	}
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestWebsocketDelivery(t *testing.T) {
	srv, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?project_id=proj-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Attachment is asynchronous; wait for the registry to see the client.
	deadline := time.Now().Add(time.Second)
	for srv.notifier.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.notifier.PublishAlert("proj-1", models.Alert{
		ID:    "a1",
		Type:  models.PingGroupthink,
		Title: "Groupthink check-in",
	})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var event notify.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Kind != "alert" || event.Alert == nil || event.Alert.ID != "a1" {
		t.Fatalf("event = %+v", event)
	}
}
