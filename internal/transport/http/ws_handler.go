package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"zone-competition-service/internal/app"
	"zone-competition-service/internal/domain"
)

type WSHandler struct {
	service      *app.CompetitionService
	hostKey      string
	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewWSHandler wires websocket connections into the competition use cases.
// hostKey guards the round lifecycle operations; pollInterval drives the
// per-connection presence heartbeat and viewer count push.
func NewWSHandler(service *app.CompetitionService, hostKey string, pollInterval time.Duration) *WSHandler {
	return &WSHandler{
		service:      service,
		hostKey:      hostKey,
		pollInterval: pollInterval,
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

type answerPayload struct {
	QuestionID     string `json:"questionId"`
	OptionIndex    int    `json:"optionIndex"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
}

type roundPayload struct {
	RoundID string `json:"roundId"`
}

type openQuestionPayload struct {
	RoundID    string `json:"roundId"`
	QuestionID string `json:"questionId"`
}

type closeQuestionPayload struct {
	QuestionID string `json:"questionId"`
}

type questionOpened struct {
	Question         domain.Question `json:"question"`
	RemainingSeconds int             `json:"remainingSeconds"`
}

type answerResult struct {
	QuestionID   string               `json:"questionId"`
	Verdict      domain.SubmitVerdict `json:"verdict"`
	Correct      bool                 `json:"correct"`
	PointsEarned int                  `json:"pointsEarned"`
	NewStreak    int                  `json:"newStreak"`
	TotalScore   int                  `json:"totalScore"`
}

type viewersPayload struct {
	Count int `json:"count"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// competition use cases. Required query params: eventId, userId, name.
// Optional: avatar, host (host key for lifecycle operations).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	avatarURL := r.URL.Query().Get("avatar")
	if eventID == "" || userID == "" || displayName == "" {
		http.Error(w, "missing eventId, userId, or name", http.StatusBadRequest)
		return
	}
	isHost := h.hostKey != "" && r.URL.Query().Get("host") == h.hostKey

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	joined, err := h.service.Join(r.Context(), eventID, userID, displayName, avatarURL)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), eventID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.Leave(r.Context(), eventID, userID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	pollerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg, ok := translateUpdate(update, userID)
				if !ok {
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	go func() {
		defer close(pollerDone)
		if h.pollInterval <= 0 {
			return
		}
		ticker := time.NewTicker(h.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = h.service.Heartbeat(r.Context(), eventID, userID)
				count, err := h.service.ViewerCount(r.Context(), eventID)
				if err != nil {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "viewers", Payload: viewersPayload{Count: count}}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		queueReply(send, writerDone, msg)
	}

	reply(outboundMessage[any]{Type: "joined", Payload: joined})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), eventID, userID, payload.QuestionID, payload.OptionIndex, payload.ResponseTimeMs)
			if err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			out := answerResult{QuestionID: payload.QuestionID, Verdict: result.Verdict}
			if result.Accepted() && result.Outcome != nil {
				out.Correct = result.Outcome.Correct
				out.PointsEarned = result.Outcome.PointsEarned
				out.NewStreak = result.Outcome.NewStreak
				out.TotalScore = result.Outcome.TotalScore
			}
			reply(outboundMessage[any]{Type: "answerResult", Payload: out})
		case "state":
			state, err := h.service.Snapshot(eventID, userID)
			if err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			reply(outboundMessage[any]{Type: "state", Payload: state})
		case "activateRound", "openQuestion", "closeQuestion", "completeRound", "resync":
			if !isHost {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "host key required"}})
				continue
			}
			if err := h.hostOperation(r.Context(), eventID, inbound); err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			}
		default:
			reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	<-pollerDone
	close(send)
	<-writerDone
}

// queueReply hands msg to the writer goroutine, dropping it once the writer
// has exited. The read loop must never block on a dead consumer.
func queueReply(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) {
	select {
	case send <- msg:
	case <-writerDone:
	}
}

// hostOperation runs a lifecycle command. Results reach every participant
// (the host included) through the session's update stream, so only failures
// are reported back directly.
func (h *WSHandler) hostOperation(ctx context.Context, eventID string, inbound inboundMessage) error {
	switch inbound.Type {
	case "activateRound":
		var payload roundPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return err
		}
		_, err := h.service.ActivateRound(eventID, payload.RoundID)
		return err
	case "openQuestion":
		var payload openQuestionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return err
		}
		_, _, err := h.service.OpenQuestion(eventID, payload.RoundID, payload.QuestionID)
		return err
	case "closeQuestion":
		var payload closeQuestionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return err
		}
		_, err := h.service.CloseQuestion(eventID, payload.QuestionID)
		return err
	case "completeRound":
		var payload roundPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return err
		}
		_, err := h.service.CompleteRound(eventID, payload.RoundID)
		return err
	case "resync":
		return h.service.Resync(ctx, eventID)
	}
	return nil
}

// translateUpdate maps a session update onto its wire message. Leaderboards
// are personalized per connection so each client sees its own row flagged.
func translateUpdate(update domain.Update, userID string) (outboundMessage[any], bool) {
	switch update.Kind {
	case domain.UpdateRound:
		if update.Round == nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "round", Payload: *update.Round}, true
	case domain.UpdateQuestionOpened:
		if update.Question == nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "question", Payload: questionOpened{
			Question:         *update.Question,
			RemainingSeconds: update.RemainingSeconds,
		}}, true
	case domain.UpdateQuestionClosed:
		if update.Question == nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "questionClosed", Payload: *update.Question}, true
	case domain.UpdateTimeExpired:
		if update.Question == nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "timeExpired", Payload: *update.Question}, true
	case domain.UpdateLeaderboard:
		if update.Leaderboard == nil {
			return outboundMessage[any]{}, false
		}
		lb := *update.Leaderboard
		lb.Entries = app.MarkCurrentUser(lb.Entries, userID)
		return outboundMessage[any]{Type: "leaderboard", Payload: lb}, true
	case domain.UpdateViewers:
		return outboundMessage[any]{Type: "viewers", Payload: viewersPayload{Count: update.Viewers}}, true
	case domain.UpdateBadge:
		if update.Badge == nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "badge", Payload: *update.Badge}, true
	}
	return outboundMessage[any]{}, false
}
