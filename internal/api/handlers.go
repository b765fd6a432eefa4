package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/susu3304/sessionbook/internal/booking"
)

type sessionResponse struct {
	ID              booking.SessionID `json:"id"`
	Counselor       booking.Identity  `json:"counselor"`
	StartTime       time.Time         `json:"start_time"`
	DurationSeconds int64             `json:"duration_seconds"`
	Fee             booking.Amount    `json:"fee"`
	Status          booking.Status    `json:"status"`
}

type sessionDetailsResponse struct {
	sessionResponse
	User    booking.Identity `json:"user"`
	Escrow  booking.Amount   `json:"escrow"`
	EndTime time.Time        `json:"end_time"`
}

type eventResponse struct {
	Seq       int64             `json:"seq"`
	ID        string            `json:"id"`
	SessionID booking.SessionID `json:"session_id"`
	Kind      booking.EventKind `json:"kind"`
	Actor     booking.Identity  `json:"actor"`
	Escrowed  booking.Amount    `json:"escrowed"`
	Refunded  booking.Amount    `json:"refunded"`
	Paid      booking.Amount    `json:"paid"`
	At        time.Time         `json:"at"`
}

func toSessionResponse(v booking.SessionView) sessionResponse {
	return sessionResponse{
		ID:              v.ID,
		Counselor:       v.Counselor,
		StartTime:       v.StartTime,
		DurationSeconds: int64(v.Duration / time.Second),
		Fee:             v.Fee,
		Status:          v.Status,
	}
}

func toEventResponse(ev booking.Event) eventResponse {
	return eventResponse{
		Seq:       ev.Seq,
		ID:        ev.ID,
		SessionID: ev.SessionID,
		Kind:      ev.Kind,
		Actor:     ev.Actor,
		Escrowed:  ev.Escrowed,
		Refunded:  ev.Refunded,
		Paid:      ev.Paid,
		At:        ev.At,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := a.directory.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			log.Printf("api: health check failed: %v", err)
			writeErrorCode(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Public handlers
func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_SESSION_ID", "invalid session id")
		return
	}
	v, err := a.engine.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(v))
}

func (a *API) handleCounselorSessions(w http.ResponseWriter, r *http.Request) {
	counselor := booking.Identity(mux.Vars(r)["counselor"])
	ids, err := a.engine.CounselorBookedSessions(r.Context(), counselor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": ids})
}

// Protected handlers
type registerRequest struct {
	Role booking.Role `json:"role"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	caller := callerFrom(r)
	var err error
	switch req.Role {
	case booking.RoleUser:
		err = a.directory.RegisterUser(r.Context(), caller)
	case booking.RoleCounselor:
		err = a.directory.RegisterCounselor(r.Context(), caller)
	default:
		writeErrorCode(w, http.StatusBadRequest, "INVALID_ROLE", `role must be "user" or "counselor"`)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"identity": string(caller), "role": string(req.Role)})
}

type offerRequest struct {
	StartTime       time.Time      `json:"start_time"`
	DurationSeconds int64          `json:"duration_seconds"`
	Fee             booking.Amount `json:"fee"`
}

func (a *API) handleOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	duration, err := booking.DurationOf(req.DurationSeconds, time.Second)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := a.engine.Offer(r.Context(), callerFrom(r), req.StartTime, duration, req.Fee)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    ev.SessionID,
		"event": toEventResponse(ev),
	})
}

type bookRequest struct {
	Payment booking.Amount `json:"payment"`
}

func (a *API) handleBook(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_SESSION_ID", "invalid session id")
		return
	}
	var req bookRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	ev, err := a.engine.Book(r.Context(), callerFrom(r), id, req.Payment)
	a.writeEvent(w, r, ev, err)
}

func (a *API) handleCancelByUser(w http.ResponseWriter, r *http.Request) {
	a.sessionAction(w, r, a.engine.CancelByUser)
}

func (a *API) handleCancelByCounselor(w http.ResponseWriter, r *http.Request) {
	a.sessionAction(w, r, a.engine.CancelByCounselor)
}

func (a *API) handleComplete(w http.ResponseWriter, r *http.Request) {
	a.sessionAction(w, r, a.engine.Complete)
}

type noShowRequest struct {
	CounselorWasNoShow bool `json:"counselor_was_no_show"`
}

func (a *API) handleNoShow(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_SESSION_ID", "invalid session id")
		return
	}
	var req noShowRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	ev, err := a.engine.MarkNoShow(r.Context(), callerFrom(r), id, req.CounselorWasNoShow)
	a.writeEvent(w, r, ev, err)
}

func (a *API) handleSessionDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_SESSION_ID", "invalid session id")
		return
	}
	d, err := a.engine.GetSessionDetails(r.Context(), callerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionDetailsResponse{
		sessionResponse: toSessionResponse(d.SessionView),
		User:            d.User,
		Escrow:          d.Escrow,
		EndTime:         d.EndTime,
	})
}

func (a *API) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_SESSION_ID", "invalid session id")
		return
	}
	events, err := a.engine.SessionHistory(r.Context(), callerFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResponse(ev))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

func (a *API) handleMySessions(w http.ResponseWriter, r *http.Request) {
	ids, err := a.engine.MyBookedSessions(r.Context(), callerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": ids})
}

func (a *API) handleMyBalance(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	balance, err := a.engine.Balance(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"identity": caller,
		"balance":  balance,
	})
}

type sessionActionFunc func(ctx context.Context, caller booking.Identity, id booking.SessionID) (booking.Event, error)

// sessionAction runs a body-less state change on the session in the path.
func (a *API) sessionAction(w http.ResponseWriter, r *http.Request, action sessionActionFunc) {
	id, ok := sessionIDVar(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_SESSION_ID", "invalid session id")
		return
	}
	ev, err := action(r.Context(), callerFrom(r), id)
	a.writeEvent(w, r, ev, err)
}

func (a *API) writeEvent(w http.ResponseWriter, r *http.Request, ev booking.Event, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(ev))
}
