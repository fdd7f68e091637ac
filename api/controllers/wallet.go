package controllers

import (
	"net/http"

	"github.com/giftlane/giftlane-backend/api/responses"
	"github.com/giftlane/giftlane-backend/api/validators"
	walletsvc "github.com/giftlane/giftlane-backend/internal/wallet"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
)

// WalletBalance returns the authenticated user's wallet balance.
func WalletBalance(svc *walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		_, userID, err := ownerKeyFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if userID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet requires an account"))
			return
		}

		balance, err := svc.Balance(r.Context(), *userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"balance": balance.String()})
	}
}

// WalletHistory returns the user's wallet ledger, newest first.
func WalletHistory(svc *walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		_, userID, err := ownerKeyFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if userID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet requires an account"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.History(r.Context(), *userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]map[string]any, 0, len(entries))
		for i := range entries {
			entry := &entries[i]
			row := map[string]any{
				"id":         entry.ID,
				"type":       entry.Type,
				"amount":     entry.Amount.String(),
				"created_at": entry.CreatedAt,
			}
			if entry.OrderID != nil {
				row["order_id"] = *entry.OrderID
			}
			out = append(out, row)
		}
		responses.WriteSuccess(w, map[string]any{"transactions": out})
	}
}
