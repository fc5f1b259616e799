package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		serve(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestServe_RepliesWithTranscriptionForSegment(t *testing.T) {
	url := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	seg := inboundSegment{
		V:         1,
		Type:      "audio.segment",
		ID:        "participant-1",
		Index:     3,
		CaptureTs: 42.5,
	}
	data, err := json.Marshal(seg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, reply, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got transcription
	if err := json.Unmarshal(reply, &got); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if got.Type != "transcription" {
		t.Errorf("type = %q, want transcription", got.Type)
	}
	if got.ID != "participant-1" {
		t.Errorf("id = %q, want participant-1", got.ID)
	}
	if got.CaptureTs != 42.5 || got.EndTs != 42.5 {
		t.Errorf("capture_ts/end_ts = %v/%v, want 42.5/42.5", got.CaptureTs, got.EndTs)
	}
	if !strings.Contains(got.Text, "participant-1") || !strings.Contains(got.Text, "3") {
		t.Errorf("text = %q, want it to reference id and index", got.Text)
	}
}

func TestServe_SkipsUnknownMessageType(t *testing.T) {
	url := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"v":1,"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	seg := inboundSegment{V: 1, Type: "audio.segment", ID: "p2", Index: 0, CaptureTs: 1}
	data, _ := json.Marshal(seg)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, reply, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got transcription
	if err := json.Unmarshal(reply, &got); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if got.ID != "p2" {
		t.Errorf("expected the ping to be skipped and only p2's reply to arrive, got id %q", got.ID)
	}
}
