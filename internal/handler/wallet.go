package handler

import (
	"log/slog"
	"net/http"

	"github.com/karavan-app/karavan/internal/auth"
	"github.com/karavan-app/karavan/internal/store"
)

type WalletHandler struct {
	wallets *store.WalletStore
	streaks *store.StreakStore
	logger  *slog.Logger
}

func NewWalletHandler(wallets *store.WalletStore, streaks *store.StreakStore, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, streaks: streaks, logger: logger}
}

// Get handles GET /api/wallet — the requester's kilometer balance and streak.
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	balance, err := h.wallets.Balance(userID)
	if err != nil {
		h.logger.Error("get balance", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load wallet")
		return
	}
	streak, err := h.streaks.Current(userID)
	if err != nil {
		h.logger.Error("get streak", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load wallet")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"balance": balance, "streak": streak})
}
