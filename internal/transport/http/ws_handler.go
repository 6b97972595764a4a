package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"learnpath-quiz/internal/app"
	"learnpath-quiz/internal/attempt"
	"learnpath-quiz/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSHandler hosts one live attempt session per websocket connection.
type WSHandler struct {
	service     *app.AttemptService
	upgrader    websocket.Upgrader
	sessionOpts []attempt.Option
}

func NewWSHandler(service *app.AttemptService, opts ...attempt.Option) *WSHandler {
	return &WSHandler{
		service:     service,
		sessionOpts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option *int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Code: domain.ErrorCode(err)}}
}

// ServeWS upgrades the request, bootstraps an attempt for ?quizId= and relays
// session snapshots until the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = r.Header.Get(userHeader)
	}
	if !domain.ValidIdentifier(quizID) {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	session, err := attempt.Bootstrap(r.Context(), serviceBackend{service: h.service, userID: userID}, quizID, h.sessionOpts...)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer session.Close()

	updates, cancel := session.Subscribe()
	defer cancel()
	session.Start()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	// single writer: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		finishedSent := false
		for {
			select {
			case state, ok := <-updates:
				if !ok {
					return
				}
				if !push(outboundMessage[any]{Type: "state", Payload: state}) {
					return
				}
				if state.Result != nil && !finishedSent {
					finishedSent = true
					if !push(outboundMessage[any]{Type: "finished", Payload: *state.Result}) {
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var opErr error
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Option == nil {
				opErr = errors.New("invalid select payload")
				break
			}
			opErr = session.Select(*payload.Option)
		case "submit":
			_, opErr = session.Submit(r.Context())
		case "finish":
			_, opErr = session.Finish(r.Context())
		default:
			opErr = errors.New("unsupported message type")
		}
		if opErr != nil && !push(errorMessage(opErr)) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
