package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenhq/asklumen/internal/conversation"
	"github.com/lumenhq/asklumen/internal/protocol"
	"github.com/lumenhq/asklumen/internal/session"
	"github.com/lumenhq/asklumen/internal/transcribe"
)

const (
	wsWriteTimeout  = 10 * time.Second
	wsReadTimeout   = 120 * time.Second
	wsPingInterval  = 30 * time.Second
	wsMaxMessageLen = 2 << 20
)

func (s *Server) handleCaptureWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session_id query parameter")
		return
	}
	sess, err := s.sessions.Active(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed for session %s: %v", sessionID, err)
		return
	}
	s.runConnection(r.Context(), conn, sess)
}

// runConnection owns one capture socket: a writer goroutine drains the
// outbound channel while the read loop parses client frames in order.
func (s *Server) runConnection(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageLen)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	outbound := make(chan any, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					s.metrics.CountWSWriteError("write")
					return
				}
				s.metrics.CountWS("outbound", messageTypeOf(msg))
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.metrics.CountWSWriteError("ping")
					return
				}
			}
		}
	}()

	// send never blocks on a dead writer.
	send := func(msg any) bool {
		select {
		case outbound <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("httpapi: websocket read failed for session %s: %v", sess.ID, err)
			}
			break
		}
		_ = s.sessions.Touch(sess.ID)

		msg, err := protocol.ParseClientMessage(raw)
		if err != nil {
			s.metrics.CountWS("inbound", "invalid")
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sess.ID,
				Code:      "invalid_message",
				Source:    "client",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}
		s.metrics.CountWS("inbound", messageTypeOf(msg))
		s.dispatch(ctx, sess, msg, send)
	}

	close(outbound)
	<-writerDone
}

func (s *Server) dispatch(ctx context.Context, sess *session.Session, msg any, send func(any) bool) {
	rt := sess.Runtime()
	switch m := msg.(type) {
	case protocol.ClientAudioChunk:
		if err := rt.Recorder.Append(m.Seq, m.PCM16Base64, m.SampleRate); err != nil {
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sess.ID,
				Code:      "bad_audio_chunk",
				Source:    "client",
				Retryable: false,
				Detail:    err.Error(),
			})
		}
	case protocol.ClientControl:
		switch m.Action {
		case protocol.ActionCancel:
			rt.Recorder.Reset()
			send(protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: sess.ID,
				Code:      "recording_cancelled",
			})
		case protocol.ActionCommit:
			s.commitRecording(ctx, sess, send)
		}
	}
}

// commitRecording turns the buffered audio into a transcript and, when
// speech was found, runs a full conversation turn over the socket.
func (s *Server) commitRecording(ctx context.Context, sess *session.Session, send func(any) bool) {
	rt := sess.Runtime()

	wav, err := rt.Recorder.Commit()
	if err != nil {
		send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      "no_audio",
			Source:    "capture",
			Retryable: true,
			Detail:    err.Error(),
		})
		return
	}

	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, wav)
	s.metrics.ObserveStage("transcription", time.Since(start))
	if err != nil {
		code := "transcription_failed"
		retryable := false
		switch {
		case errors.Is(err, transcribe.ErrNoSpeech):
			code = "no_speech"
			retryable = true
		case errors.Is(err, transcribe.ErrTimeout):
			code = "transcription_timeout"
			retryable = true
		}
		send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      code,
			Source:    "transcription",
			Retryable: retryable,
			Detail:    err.Error(),
		})
		return
	}

	send(protocol.Transcript{
		Type:      protocol.TypeTranscript,
		SessionID: sess.ID,
		Text:      text,
	})

	answer, err := rt.Controller.SendQuestion(ctx, text, nil)
	if err != nil {
		retryable := errors.Is(err, conversation.ErrTurnInFlight)
		send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      "turn_failed",
			Source:    "conversation",
			Retryable: retryable,
			Detail:    err.Error(),
		})
		return
	}

	send(protocol.AssistantMessage{
		Type:      protocol.TypeAssistantMessage,
		SessionID: sess.ID,
		MessageID: answer.ID,
		Role:      answer.Role,
		Content:   answer.Content,
	})

	state := rt.Narrator.State()
	send(protocol.NarrationState{
		Type:      protocol.TypeNarrationState,
		SessionID: sess.ID,
		MessageID: state.MessageID,
		Position:  state.Position,
		Paused:    state.Paused,
		Loading:   state.Loading,
	})
}

func messageTypeOf(msg any) string {
	switch m := msg.(type) {
	case protocol.ClientAudioChunk:
		return string(m.Type)
	case protocol.ClientControl:
		return string(m.Type)
	case protocol.Transcript:
		return string(m.Type)
	case protocol.AssistantMessage:
		return string(m.Type)
	case protocol.NarrationState:
		return string(m.Type)
	case protocol.SystemEvent:
		return string(m.Type)
	case protocol.ErrorEvent:
		return string(m.Type)
	default:
		return "unknown"
	}
}
