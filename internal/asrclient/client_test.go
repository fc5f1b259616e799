package asrclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/glyphoxa/internal/asrclient"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("writeJSON: %v (may be expected on close)", err)
	}
}

func TestClient_SendSegment_ReachesWorker(t *testing.T) {
	received := make(chan asrclient.OutboundSegment, 1)
	srv := startServer(t, func(conn *websocket.Conn) {
		var seg asrclient.OutboundSegment
		if err := readJSON(t, conn, &seg); err != nil {
			return
		}
		received <- seg
		<-conn.CloseRead(context.Background()).Done()
	})

	c := asrclient.NewClient(asrclient.Config{URL: wsURL(srv)}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Close()

	seg := asrclient.NewOutboundSegment("alice", 0, 16000, 1.0, 2.0, []byte{1, 2, 3, 4}, "hello")

	deadline := time.Now().Add(2 * time.Second)
	for {
		c.SendSegment(seg)
		select {
		case got := <-received:
			if got.ID != "alice" || got.Index != 0 {
				t.Fatalf("got segment %+v, want id=alice index=0", got)
			}
			return
		case <-time.After(50 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for server to receive segment")
			}
		}
	}
}

func TestClient_ReceivesTranscription(t *testing.T) {
	srv := startServer(t, func(conn *websocket.Conn) {
		writeJSON(t, conn, asrclient.Transcription{V: 1, Type: "transcription", ID: "bob", Text: "hello world", CaptureTs: 1.0, EndTs: 2.0})
		<-conn.CloseRead(context.Background()).Done()
	})

	var mu sync.Mutex
	var got *asrclient.Transcription
	done := make(chan struct{})

	c := asrclient.NewClient(asrclient.Config{URL: wsURL(srv)}, func(tr asrclient.Transcription) {
		mu.Lock()
		got = &tr
		mu.Unlock()
		close(done)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcription")
	}

	mu.Lock()
	defer mu.Unlock()
	if got == nil || got.Text != "hello world" || got.ID != "bob" {
		t.Fatalf("got %+v", got)
	}
}

func TestClient_ReceivesWorkerError_ConnectionStaysOpen(t *testing.T) {
	secondMsgSent := make(chan struct{})
	srv := startServer(t, func(conn *websocket.Conn) {
		writeJSON(t, conn, asrclient.WorkerError{V: 1, Type: "error", Code: "decode_failed", Message: "bad audio"})
		writeJSON(t, conn, asrclient.Transcription{V: 1, Type: "transcription", ID: "carol", Text: "ok", CaptureTs: 0, EndTs: 0})
		close(secondMsgSent)
		<-conn.CloseRead(context.Background()).Done()
	})

	var mu sync.Mutex
	var gotErr *asrclient.WorkerError
	var gotTr *asrclient.Transcription
	errDone := make(chan struct{})
	trDone := make(chan struct{})

	c := asrclient.NewClient(asrclient.Config{URL: wsURL(srv)},
		func(tr asrclient.Transcription) {
			mu.Lock()
			gotTr = &tr
			mu.Unlock()
			close(trDone)
		},
		func(e asrclient.WorkerError) {
			mu.Lock()
			gotErr = &e
			mu.Unlock()
			close(errDone)
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Close()

	select {
	case <-errDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker error")
	}
	select {
	case <-trDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcription after worker error")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotErr == nil || gotErr.Code != "decode_failed" {
		t.Fatalf("gotErr = %+v", gotErr)
	}
	if gotTr == nil || gotTr.Text != "ok" {
		t.Fatalf("gotTr = %+v", gotTr)
	}
}

func TestClient_SendSegment_DroppedWhenDisconnected(t *testing.T) {
	c := asrclient.NewClient(asrclient.Config{URL: "ws://127.0.0.1:1/does-not-matter"}, nil, nil)
	// Never started: connected is always false.
	c.SendSegment(asrclient.NewOutboundSegment("x", 0, 16000, 0, 0, nil, ""))
	// No assertion beyond "does not panic or block" — drop path has no
	// observable side effect from outside the package.
}

func TestClient_ReconnectsAfterTransportLoss(t *testing.T) {
	var mu sync.Mutex
	accepts := 0
	firstConnDone := make(chan struct{})

	srv := startServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		accepts++
		n := accepts
		mu.Unlock()

		if n == 1 {
			var seg asrclient.OutboundSegment
			_ = readJSON(t, conn, &seg)
			conn.Close(websocket.StatusNormalClosure, "simulated worker restart")
			close(firstConnDone)
			return
		}

		var seg asrclient.OutboundSegment
		if err := readJSON(t, conn, &seg); err == nil {
			writeJSON(t, conn, asrclient.Transcription{V: 1, Type: "transcription", ID: seg.ID, Text: "recovered", CaptureTs: 0, EndTs: 0})
		}
		<-conn.CloseRead(context.Background()).Done()
	})

	done := make(chan struct{})
	var gotText string
	c := asrclient.NewClient(asrclient.Config{URL: wsURL(srv), ReconnectDelay: 30 * time.Millisecond}, func(tr asrclient.Transcription) {
		gotText = tr.Text
		close(done)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Close()

	select {
	case <-firstConnDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first connection")
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.SendSegment(asrclient.NewOutboundSegment("dave", 5, 16000, 0, 0, []byte{0, 0}, ""))
		select {
		case <-done:
			if gotText != "recovered" {
				t.Fatalf("gotText = %q, want recovered", gotText)
			}
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	t.Fatal("client never reconnected and delivered a transcription")
}

func TestClient_Close_IsIdempotent(t *testing.T) {
	c := asrclient.NewClient(asrclient.Config{URL: "ws://127.0.0.1:1/does-not-matter"}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
