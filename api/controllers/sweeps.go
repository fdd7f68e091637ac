package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/giftlane/giftlane-backend/api/responses"
	cronsvc "github.com/giftlane/giftlane-backend/internal/cron"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
)

// SweepRun triggers one registered sweep by name. The same distributed lock
// the scheduler takes guards manual runs, so a trigger racing the schedule
// reports a conflict instead of double-processing.
func SweepRun(svc *cronsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sweep service unavailable"))
			return
		}

		name := strings.TrimSpace(chi.URLParam(r, "name"))
		if name == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sweep name required"))
			return
		}

		processed, err := svc.RunJob(r.Context(), name)
		if err != nil {
			if errors.Is(err, cronsvc.ErrLocked) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sweep already running"))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteRaw(w, http.StatusOK, map[string]any{"processed": processed})
	}
}
