package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/room4-2/SalesCaller/conversation"
	"github.com/room4-2/SalesCaller/messages"
	"github.com/room4-2/SalesCaller/metrics"
)

const homeMessage = "Hello, AI Sales Caller is Running!"

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(homeMessage))
}

// handleCall places an outbound call to ?to= or the configured default number
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if to == "" {
		to = s.config.DefaultDestination
	}
	if err := s.validate.Var(to, "required,e164"); err != nil {
		writeJSON(w, http.StatusBadRequest,
			messages.NewErrorResponse(messages.ErrCodeInvalidDestination, "destination must be an E.164 phone number"))
		return
	}

	doc, err := s.docs.OutboundCall()
	if err != nil {
		s.logger.Error("failed to render outbound call", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError,
			messages.NewErrorResponse(messages.ErrCodeInternal, "internal server error"))
		return
	}

	callSid, err := s.caller.PlaceCall(r.Context(), to, doc)
	s.metrics.CallsPlaced.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Error("failed to place call", zap.String("to", to), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError,
			messages.NewErrorResponse(messages.ErrCodeCallFailed, "could not place call"))
		return
	}

	s.sessions.SetDestination(r.Context(), callSid, to)
	s.logger.Info("call placed", zap.String("call_sid", callSid), zap.String("to", to))

	event := messages.NewEvent(messages.EventCallPlaced, callSid)
	event.Stage = conversation.StageGreeting.String()
	s.hub.Publish(event)

	writeJSON(w, http.StatusOK, messages.NewCallPlacedResponse(callSid))
}

// handleProcess answers the intent stage
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	callSid := s.callSid(r)
	utterance := conversation.NormalizeUtterance(r.PostFormValue("SpeechResult"))

	intent, _ := conversation.Classify(utterance)
	s.metrics.Intents.WithLabelValues(string(intent)).Inc()

	reply := conversation.Dispatch(utterance, conversation.StageAwaitingIntent)
	stage := nextStage(reply, conversation.StageAwaitingIntent)
	s.sessions.Touch(r.Context(), callSid, stage)

	s.logger.Info("caller utterance",
		zap.String("call_sid", callSid),
		zap.String("utterance", utterance),
		zap.String("intent", string(intent)),
		zap.Stringer("next_stage", stage),
	)

	event := messages.NewEvent(messages.EventIntent, callSid)
	event.Intent = string(intent)
	event.Stage = stage.String()
	s.hub.Publish(event)

	s.writeReply(w, reply)
}

// handleProcessDate answers the date stage
func (s *Server) handleProcessDate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	callSid := s.callSid(r)
	result := s.booker.HandleDate(r.Context(), conversation.BookingRequest{
		CallSid:   callSid,
		To:        s.recipient(r, callSid),
		Utterance: r.PostFormValue("SpeechResult"),
	})

	s.metrics.Bookings.WithLabelValues(string(result.Status)).Inc()
	if result.Status == conversation.StatusBooked {
		s.metrics.Confirmations.WithLabelValues(metrics.Result(result.NotifyErr)).Inc()
	}

	stage := nextStage(result.Reply, conversation.StageAwaitingDateTime)
	s.sessions.Touch(r.Context(), callSid, stage)

	var event *messages.Event
	switch result.Status {
	case conversation.StatusBooked, conversation.StatusAlreadyBooked:
		event = messages.NewEvent(messages.EventMeetingBooked, callSid)
		event.Link = result.Meeting.JoinLink
	case conversation.StatusDateRejected:
		event = messages.NewEvent(messages.EventDateRejected, callSid)
	default:
		event = messages.NewEvent(messages.EventBookingFailed, callSid)
	}
	event.Stage = stage.String()
	s.hub.Publish(event)

	s.writeReply(w, result.Reply)
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.VoiceCheck()
	if err != nil {
		s.logger.Error("failed to render voice check", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeTwiML(w, doc)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &messages.HealthResponse{
		Status:   "ok",
		Sessions: s.sessions.Count(),
		Redis:    s.sessions.RedisEnabled(),
	})
}

// callSid identifies the call a callback belongs to. Requests without one
// (manual testing) get a throwaway local id.
func (s *Server) callSid(r *http.Request) string {
	if sid := strings.TrimSpace(r.PostFormValue("CallSid")); sid != "" {
		return sid
	}
	return s.sessions.NewCallSid()
}

// recipient picks the number that receives the confirmation text: the number
// /call dialed, then the callee Twilio reports, then the configured default.
func (s *Server) recipient(r *http.Request, callSid string) string {
	if to, ok := s.sessions.Destination(r.Context(), callSid); ok {
		return to
	}

	// On inbound calls To is our own number and the caller is From.
	field := "To"
	if strings.EqualFold(r.PostFormValue("Direction"), "inbound") {
		field = "From"
	}
	if to := strings.TrimSpace(r.PostFormValue(field)); to != "" && s.validate.Var(to, "e164") == nil {
		return to
	}

	return s.config.DefaultDestination
}

func (s *Server) writeReply(w http.ResponseWriter, reply conversation.Reply) {
	doc, err := s.docs.Render(reply)
	if err != nil {
		s.logger.Error("failed to render reply", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeTwiML(w, doc)
}

// nextStage is the stage the caller will be in once this reply has played
func nextStage(reply conversation.Reply, current conversation.Stage) conversation.Stage {
	switch reply.Next.Kind {
	case conversation.ActionGather, conversation.ActionRedirect:
		return reply.Next.Stage
	}
	return current
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
