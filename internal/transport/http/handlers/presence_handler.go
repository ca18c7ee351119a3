package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
	authsvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/auth"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/transport/http/dto"
	httperrors "github.com/Baltyara/boltaiznakomsya-sub000/internal/transport/http/errors"
)

// PresenceReader resolves the freshest known presence for a user, falling
// back to the redis mirror for users not connected to this node.
type PresenceReader interface {
	LastKnown(ctx context.Context, userID int64) (model.PresenceRecord, error)
}

type PresenceHandler struct {
	presence PresenceReader
}

func NewPresenceHandler(presence PresenceReader) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.presence == nil {
		writeInternal(w, "PRESENCE_SERVICE_UNAVAILABLE", "presence service is unavailable")
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	record, err := h.presence.LastKnown(r.Context(), userID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to read presence")
		return
	}

	resp := dto.PresenceResponse{UserID: userID, Status: string(record.Status)}
	if !record.LastSeen.IsZero() {
		resp.LastSeenUnix = record.LastSeen.Unix()
	}
	httperrors.Write(w, http.StatusOK, resp)
}
