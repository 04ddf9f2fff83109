package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/karavan-app/karavan/internal/auth"
	"github.com/karavan-app/karavan/internal/clock"
	"github.com/karavan-app/karavan/internal/model"
	"github.com/karavan-app/karavan/internal/store"
	"github.com/karavan-app/karavan/internal/websocket"
)

type CaravanHandler struct {
	caravans *store.CaravanStore
	goals    *store.GoalStore
	hub      *websocket.Hub
	clock    clock.Clock
	logger   *slog.Logger
}

func NewCaravanHandler(caravans *store.CaravanStore, goals *store.GoalStore, hub *websocket.Hub, clk clock.Clock, logger *slog.Logger) *CaravanHandler {
	return &CaravanHandler{
		caravans: caravans,
		goals:    goals,
		hub:      hub,
		clock:    clk,
		logger:   logger,
	}
}

type createCaravanRequest struct {
	Title string            `json:"title"`
	Goal  createGoalRequest `json:"goal"`
}

type caravanResponse struct {
	Caravan *model.Caravan        `json:"caravan"`
	Goal    *model.Goal           `json:"goal,omitempty"`
	Members []model.CaravanMember `json:"members,omitempty"`
}

// Create handles POST /api/caravans: one shared goal plus the caravan that
// tracks who rides along. The creator becomes the first member.
func (h *CaravanHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createCaravanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	g, msg := buildGoal(req.Goal, userID, h.clock.Now())
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	caravanID := uuid.NewString()
	g.IsCaravan = true
	g.CaravanID = caravanID

	if err := h.goals.Create(g); err != nil {
		h.logger.Error("create shared goal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create caravan")
		return
	}

	c := &model.Caravan{ID: caravanID, GoalID: g.ID, Title: req.Title, CreatedBy: userID}
	if err := h.caravans.Create(c); err != nil {
		h.logger.Error("create caravan", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create caravan")
		return
	}

	writeJSON(w, http.StatusCreated, caravanResponse{Caravan: c, Goal: g})
}

// List handles GET /api/caravans — caravans the requester is a member of.
func (h *CaravanHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	caravans, err := h.caravans.ListByUser(userID)
	if err != nil {
		h.logger.Error("list caravans", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list caravans")
		return
	}
	if caravans == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, caravans)
}

// Get handles GET /api/caravans/{id}
func (h *CaravanHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.authorize(w, r)
	if !ok {
		return
	}

	g, err := h.goals.GetByID(c.GoalID)
	if err != nil {
		h.logger.Error("get shared goal", "caravan_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load caravan")
		return
	}
	members, err := h.caravans.ListMembers(c.ID)
	if err != nil {
		h.logger.Error("list caravan members", "caravan_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load caravan")
		return
	}

	writeJSON(w, http.StatusOK, caravanResponse{Caravan: c, Goal: g, Members: members})
}

// Join handles POST /api/caravans/{id}/join. Any authenticated user with the
// caravan's id (shared as an invite link) may join; joining twice is a no-op.
func (h *CaravanHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	c, err := h.caravans.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get caravan", "caravan_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load caravan")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "caravan not found")
		return
	}

	if err := h.caravans.AddMember(c.ID, userID); err != nil {
		h.logger.Error("join caravan", "caravan_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join caravan")
		return
	}

	members, err := h.caravans.ListMembers(c.ID)
	if err == nil {
		ids := make([]int64, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
		h.hub.BroadcastToUsers(ids, websocket.NewMessage("caravan", "member_joined", c.ID, map[string]any{"user_id": userID}))
	}

	writeJSON(w, http.StatusOK, caravanResponse{Caravan: c, Members: members})
}

func (h *CaravanHandler) authorize(w http.ResponseWriter, r *http.Request) (*model.Caravan, bool) {
	c, err := h.caravans.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get caravan", "caravan_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load caravan")
		return nil, false
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "caravan not found")
		return nil, false
	}

	member, err := h.caravans.IsMember(c.ID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("check caravan membership", "caravan_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load caravan")
		return nil, false
	}
	if !member {
		writeError(w, http.StatusNotFound, "caravan not found")
		return nil, false
	}
	return c, true
}
