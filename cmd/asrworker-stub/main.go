// Command asrworker-stub is a reference implementation of C7, the inference
// worker contract spec.md §4.7 leaves external to this module. It exists
// for local testing of internal/asrclient against a real WebSocket peer
// instead of a mock transport: it accepts audio.segment messages of the
// shape internal/asrclient/wire.go encodes, and for each one replies with a
// canned transcription, honoring the contract's three obligations —
// per-id FIFO response ordering, one reply per submitted id, and tolerance
// for segments up to 30s at 16kHz mono 16-bit.
//
// It does no actual speech recognition; the transcription text is a fixed
// placeholder naming the segment's id and index.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/coder/websocket"
)

// inboundSegment mirrors internal/asrclient's OutboundSegment on the wire;
// it is redeclared here rather than imported so this stub exercises only
// the public wire shape, the same way a real out-of-process worker would.
type inboundSegment struct {
	V         int     `json:"v"`
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	Index     uint32  `json:"index"`
	StartedTs float64 `json:"started_ts"`
	CaptureTs float64 `json:"capture_ts"`
	DataB64   string  `json:"data_b64"`
	Prompt    string  `json:"prompt,omitempty"`
}

// maxSegmentMessageBytes bounds one inbound message. A 30s segment at 16kHz
// mono 16-bit is 960,000 bytes of PCM, about 1.28 MB once base64-encoded,
// well above the websocket library's default read limit of 32 KiB.
const maxSegmentMessageBytes = 2 << 20

type transcription struct {
	V         int     `json:"v"`
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	CaptureTs float64 `json:"capture_ts"`
	EndTs     float64 `json:"end_ts"`
}

func main() {
	addr := flag.String("addr", ":8765", "listen address")
	flag.Parse()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			slog.Error("asrworker-stub: accept failed", "error", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		serve(r.Context(), conn)
	})

	slog.Info("asrworker-stub: listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("asrworker-stub: server error", "error", err)
		os.Exit(1)
	}
}

// serve reads audio.segment messages from conn and writes one transcription
// per message, in the order received — the FIFO-per-id guarantee C4 depends
// on falls out of handling one connection on a single goroutine.
func serve(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxSegmentMessageBytes)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var seg inboundSegment
		if err := json.Unmarshal(data, &seg); err != nil {
			slog.Warn("asrworker-stub: malformed segment", "error", err)
			continue
		}
		if seg.Type != "audio.segment" {
			slog.Warn("asrworker-stub: unexpected message type", "type", seg.Type)
			continue
		}

		reply := transcription{
			V:         1,
			Type:      "transcription",
			ID:        seg.ID,
			Text:      "[stub transcription " + seg.ID + "#" + strconv.FormatUint(uint64(seg.Index), 10) + "]",
			CaptureTs: seg.CaptureTs,
			EndTs:     seg.CaptureTs,
		}
		out, err := json.Marshal(reply)
		if err != nil {
			slog.Error("asrworker-stub: marshal reply failed", "error", err)
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			return
		}
	}
}
