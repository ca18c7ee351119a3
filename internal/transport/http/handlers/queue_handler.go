package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
	authsvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/auth"
	queuesvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/queue"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/transport/http/dto"
	httperrors "github.com/Baltyara/boltaiznakomsya-sub000/internal/transport/http/errors"
)

// JoinLimiter reports the wait before the next queue join is accepted,
// without consuming a slot.
type JoinLimiter interface {
	RetryAfterJoin(ctx context.Context, userID int64) (int64, error)
}

type QueueHandler struct {
	service *queuesvc.Service
	limiter JoinLimiter
}

func NewQueueHandler(service *queuesvc.Service, limiter JoinLimiter) *QueueHandler {
	return &QueueHandler{service: service, limiter: limiter}
}

func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "QUEUE_SERVICE_UNAVAILABLE", "queue service is unavailable")
		return
	}

	var req dto.JoinQueueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	pair, err := h.service.Enqueue(r.Context(), model.QueueEntry{
		UserID:      identity.UserID,
		DisplayName: req.DisplayName,
		Gender:      enums.Gender(req.Gender),
		Age:         req.Age,
		LookingFor:  enums.LookingFor(req.LookingFor),
		AgeRange:    model.AgeRange{Min: req.AgeRange.Min, Max: req.AgeRange.Max},
		Interests:   req.Interests,
	})
	if err != nil {
		switch {
		case errors.Is(err, queuesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid queue preferences")
		case errors.Is(err, queuesvc.ErrAlreadyInCall):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "ALREADY_IN_CALL",
				Message: "finish the current call before joining the queue",
			})
		default:
			if tooMany, ok := queuesvc.IsTooManyJoins(err); ok {
				httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
					Code:          "RATE_LIMITED",
					Message:       "too many join attempts, slow down",
					RetryAfterSec: tooMany.RetryAfter(),
				})
				return
			}
			writeInternal(w, "INTERNAL_ERROR", "failed to join queue")
		}
		return
	}

	resp := dto.JoinQueueResponse{OK: true}
	if pair != nil {
		resp.Match = &dto.MatchPayload{
			SessionID: pair.SessionID,
			PartnerID: partnerOf(*pair, identity.UserID),
			Score:     pair.Score,
		}
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *QueueHandler) Leave(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "QUEUE_SERVICE_UNAVAILABLE", "queue service is unavailable")
		return
	}

	h.service.Dequeue(identity.UserID)
	httperrors.Write(w, http.StatusOK, dto.LeaveQueueResponse{OK: true})
}

func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "QUEUE_SERVICE_UNAVAILABLE", "queue service is unavailable")
		return
	}

	status := h.service.Status(identity.UserID)

	// The retry-after figure is advisory; a limiter read failure must not
	// take the status endpoint down with it.
	var joinRetryAfter int64
	if h.limiter != nil {
		if retryAfter, err := h.limiter.RetryAfterJoin(r.Context(), identity.UserID); err == nil {
			joinRetryAfter = retryAfter
		}
	}

	httperrors.Write(w, http.StatusOK, dto.QueueStatusResponse{
		InQueue:           status.InQueue,
		QueueSize:         status.QueueSize,
		WaitTimeMS:        status.WaitTime.Milliseconds(),
		JoinRetryAfterSec: joinRetryAfter,
	})
}

func partnerOf(pair model.MatchPair, userID int64) int64 {
	if pair.UserA == userID {
		return pair.UserB
	}
	return pair.UserA
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
