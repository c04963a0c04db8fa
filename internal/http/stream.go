package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/input"
	"autobattler/arbiter/internal/logging"
)

// Frame types written on the event stream.
const (
	FrameEvent  = "event"
	FrameResult = "result"
	FrameError  = "error"
)

const (
	writeWait    = 5 * time.Second
	streamBuffer = 64
)

// StreamFrame is one JSON message written to a stream client. The result frame
// carries an empty event list because every event was already streamed.
type StreamFrame struct {
	Type   string         `json:"type"`
	Event  *combat.Event  `json:"event,omitempty"`
	Result *combat.Result `json:"result,omitempty"`
	Error  *Problem       `json:"error,omitempty"`
}

// StreamHandler upgrades to a WebSocket, reads one combat input, then writes
// every event in step order followed by the result.
func (h *HandlerSet) StreamHandler() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.LoggerFromContext(r.Context()).With(logging.String("remote_addr", r.RemoteAddr))
		if h.backend == nil {
			writeProblem(w, http.StatusServiceUnavailable, "unavailable", "arbiter not configured", nil)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", logging.Error(err))
			return
		}
		defer conn.Close()

		//1.- Bound the request frame and keep the read deadline alive with pongs.
		conn.SetReadLimit(h.maxPayload)
		_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		})

		_, payload, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("stream closed before input", logging.Error(err))
			return
		}
		var in input.Combat
		decoder := json.NewDecoder(bytes.NewReader(payload))
		decoder.UseNumber()
		if err := decoder.Decode(&in); err != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(StreamFrame{Type: FrameError, Error: &Problem{Code: "malformed_json", Message: err.Error()}})
			closeStream(conn, websocket.CloseUnsupportedData, "malformed input")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		frames := make(chan StreamFrame, streamBuffer)
		writerDone := make(chan error, 1)
		go h.writeLoop(conn, frames, cancel, writerDone)

		//2.- Keep reading so control frames are processed; a disconnect cancels the run.
		go func() {
			for {
				if _, _, err := conn.NextReader(); err != nil {
					cancel()
					return
				}
			}
		}()

		send := func(frame StreamFrame) error {
			select {
			case frames <- frame:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		result, err := h.backend.Stream(ctx, in, func(event combat.Event) error {
			return send(StreamFrame{Type: FrameEvent, Event: &event})
		})
		if err != nil {
			status, problem := classify(err)
			if status == http.StatusInternalServerError {
				logger.Error("stream simulation failed", logging.Error(err))
			}
			_ = send(StreamFrame{Type: FrameError, Error: &problem})
		} else {
			summary := result
			summary.Events = []combat.Event{}
			_ = send(StreamFrame{Type: FrameResult, Result: &summary})
		}
		close(frames)
		if err := <-writerDone; err != nil {
			logger.Debug("stream write ended early", logging.Error(err))
		}
	}
}

// writeLoop is the only writer of data frames and pings the client every pingInterval.
func (h *HandlerSet) writeLoop(conn *websocket.Conn, frames <-chan StreamFrame, cancel context.CancelFunc, done chan<- error) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	var failed error
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				if failed == nil {
					failed = closeStream(conn, websocket.CloseNormalClosure, "done")
				}
				done <- failed
				return
			}
			if failed != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				failed = err
				cancel()
			}
		case <-ticker.C:
			if failed != nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				failed = err
				cancel()
			}
		}
	}
}

func closeStream(conn *websocket.Conn, code int, reason string) error {
	return conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

func (h *HandlerSet) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := strings.ToLower(strings.TrimSpace(r.Header.Get("Origin")))
	if origin == "" {
		return true
	}
	_, ok := h.origins[origin]
	return ok
}
