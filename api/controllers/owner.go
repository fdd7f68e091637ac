package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/giftlane/giftlane-backend/api/middleware"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
)

const sessionIDHeader = "X-Session-Id"

// ownerKeyFromRequest resolves who the cart and checkout rows belong to.
// Authenticated requests key on the user id; guests key on the session id
// they present, so a guest cart survives until login merges it.
func ownerKeyFromRequest(r *http.Request) (string, *uuid.UUID, error) {
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return "", nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		return "user:" + userID.String(), &userID, nil
	}

	session := strings.TrimSpace(r.Header.Get(sessionIDHeader))
	if session == "" {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required for guest requests")
	}
	return "guest:" + session, nil, nil
}

func parsePathUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}
