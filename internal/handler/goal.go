package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/karavan-app/karavan/internal/auth"
	"github.com/karavan-app/karavan/internal/clock"
	"github.com/karavan-app/karavan/internal/goal"
	"github.com/karavan-app/karavan/internal/model"
	"github.com/karavan-app/karavan/internal/store"
	"github.com/karavan-app/karavan/internal/websocket"
)

type GoalHandler struct {
	goals    *store.GoalStore
	history  *store.HistoryStore
	caravans *store.CaravanStore
	engine   *goal.Engine
	hub      *websocket.Hub
	clock    clock.Clock
	logger   *slog.Logger
}

func NewGoalHandler(goals *store.GoalStore, history *store.HistoryStore, caravans *store.CaravanStore, engine *goal.Engine, hub *websocket.Hub, clk clock.Clock, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{
		goals:    goals,
		history:  history,
		caravans: caravans,
		engine:   engine,
		hub:      hub,
		clock:    clk,
		logger:   logger,
	}
}

type checkpointSpec struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

type createGoalRequest struct {
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	DeadlineType string           `json:"deadline_type"`
	Period       string           `json:"period"`
	DeadlineDate *time.Time       `json:"deadline_date"`
	Checkpoints  []checkpointSpec `json:"checkpoints"`
	IsChallenge  bool             `json:"is_challenge"`
	DailyTask    string           `json:"daily_task"`
}

// buildGoal constructs and validates a goal record from a create request.
// The checkpoint count must match what the deadline produces, otherwise
// every later evaluation would fail the integrity check.
func buildGoal(req createGoalRequest, userID int64, now time.Time) (*model.Goal, string) {
	if req.Title == "" {
		return nil, "title is required"
	}

	g := &model.Goal{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        req.Title,
		Description:  req.Description,
		StartDate:    now,
		DeadlineType: model.DeadlineType(req.DeadlineType),
		Period:       req.Period,
		DeadlineDate: req.DeadlineDate,
		IsChallenge:  req.IsChallenge,
	}
	for _, cp := range req.Checkpoints {
		g.Checkpoints = append(g.Checkpoints, model.Checkpoint{Label: cp.Label, Description: cp.Description})
		g.CheckpointStates = append(g.CheckpointStates, model.CheckpointUnset)
	}

	if len(g.Checkpoints) > 0 {
		if _, err := goal.Thresholds(g); err != nil {
			return nil, "checkpoints don't match the deadline"
		}
	}

	if req.IsChallenge {
		if req.DailyTask == "" {
			return nil, "a challenge needs its fixed daily task"
		}
		if len(g.Checkpoints) > 0 {
			return nil, "a challenge has no checkpoints"
		}
	}
	if req.DailyTask != "" {
		if goal.SubstitutesDailyTask(g) {
			return nil, "daily checkpoints stand in for the task"
		}
		g.DailyTask = &model.DailyTask{Text: req.DailyTask, StartedAt: now, Number: 1}
	}

	return g, ""
}

// Create handles POST /api/goals
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	g, msg := buildGoal(req, userID, h.clock.Now())
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.goals.Create(g); err != nil {
		h.logger.Error("create goal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create goal")
		return
	}

	h.broadcast(g, "created")
	writeJSON(w, http.StatusCreated, g)
}

// List handles GET /api/goals
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	goals, err := h.goals.ListByUser(userID)
	if err != nil {
		h.logger.Error("list goals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list goals")
		return
	}
	if goals == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

// Get handles GET /api/goals/{id}
func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, ok := h.authorize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type updateGoalRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Update handles PUT /api/goals/{id}. Only the descriptive fields can
// change; the route itself (deadline, checkpoints) is fixed at creation.
func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	g, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req updateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title != nil {
		if *req.Title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		g.Title = *req.Title
	}
	if req.Description != nil {
		g.Description = *req.Description
	}

	if err := h.goals.Save(g); err != nil {
		h.logger.Error("update goal", "goal_id", g.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update goal")
		return
	}

	h.broadcast(g, "updated")
	writeJSON(w, http.StatusOK, g)
}

// Delete handles DELETE /api/goals/{id}. Only the owner can delete; caravan
// members leave, they don't tear the goal down.
func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	g, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if g.UserID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "only the owner can delete a goal")
		return
	}

	if err := h.goals.Delete(g.ID); err != nil {
		h.logger.Error("delete goal", "goal_id", g.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete goal")
		return
	}

	h.broadcast(g, "deleted")
	w.WriteHeader(http.StatusNoContent)
}

type evaluateResponse struct {
	Goal  *model.Goal `json:"goal"`
	Event goal.Event  `json:"event"`
}

// Evaluate handles POST /api/goals/{id}/evaluate. The client calls this on
// open and after every action to learn the single pending decision.
func (h *GoalHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}

	g, ev, err := h.engine.Evaluate(r.PathValue("id"))
	if err != nil {
		h.logger.Error("evaluate goal", "goal_id", r.PathValue("id"), "error", err)
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Goal: g, Event: ev})
}

// ConfirmCheckpoint handles POST /api/goals/{id}/checkpoints/{index}/confirm
func (h *GoalHandler) ConfirmCheckpoint(w http.ResponseWriter, r *http.Request) {
	h.resolveCheckpoint(w, r, h.engine.ConfirmCheckpoint)
}

// SkipCheckpoint handles POST /api/goals/{id}/checkpoints/{index}/skip
func (h *GoalHandler) SkipCheckpoint(w http.ResponseWriter, r *http.Request) {
	h.resolveCheckpoint(w, r, h.engine.SkipCheckpoint)
}

func (h *GoalHandler) resolveCheckpoint(w http.ResponseWriter, r *http.Request, act func(string, int) (*model.Goal, goal.Event, error)) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid checkpoint index")
		return
	}

	g, ev, err := act(r.PathValue("id"), index)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.broadcast(g, "updated")
	writeJSON(w, http.StatusOK, evaluateResponse{Goal: g, Event: ev})
}

// ConfirmFinal handles POST /api/goals/{id}/finish
func (h *GoalHandler) ConfirmFinal(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}

	g, err := h.engine.ConfirmFinal(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.broadcast(g, "completed")
	writeJSON(w, http.StatusOK, g)
}

// DeclineFinal handles POST /api/goals/{id}/decline-finish. The goal stays
// open; the offer returns on the next evaluation.
func (h *GoalHandler) DeclineFinal(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}

	g, err := h.engine.DeclineFinal(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// CompleteDailyTask handles POST /api/goals/{id}/task/complete
func (h *GoalHandler) CompleteDailyTask(w http.ResponseWriter, r *http.Request) {
	h.resolveTask(w, r, h.engine.CompleteDailyTask)
}

// SkipDailyTask handles POST /api/goals/{id}/task/skip
func (h *GoalHandler) SkipDailyTask(w http.ResponseWriter, r *http.Request) {
	h.resolveTask(w, r, h.engine.SkipDailyTask)
}

func (h *GoalHandler) resolveTask(w http.ResponseWriter, r *http.Request, act func(string) (*model.Goal, goal.Event, error)) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}

	g, ev, err := act(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.broadcast(g, "updated")
	writeJSON(w, http.StatusOK, evaluateResponse{Goal: g, Event: ev})
}

type issueTaskRequest struct {
	Text string `json:"text"`
}

// IssueDailyTask handles POST /api/goals/{id}/task
func (h *GoalHandler) IssueDailyTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}

	var req issueTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	g, err := h.engine.IssueDailyTask(r.PathValue("id"), req.Text)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.broadcast(g, "updated")
	writeJSON(w, http.StatusCreated, g)
}

// History handles GET /api/goals/{id}/history
func (h *GoalHandler) History(w http.ResponseWriter, r *http.Request) {
	g, ok := h.authorize(w, r)
	if !ok {
		return
	}

	entries, err := h.history.ListByGoal(g.ID)
	if err != nil {
		h.logger.Error("list task history", "goal_id", g.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// authorize loads the goal and checks the requester may act on it: the
// owner always, caravan members for shared goals. Writes the response on
// failure.
func (h *GoalHandler) authorize(w http.ResponseWriter, r *http.Request) (*model.Goal, bool) {
	g, err := h.goals.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get goal", "goal_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load goal")
		return nil, false
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "goal not found")
		return nil, false
	}

	userID := auth.UserID(r.Context())
	if g.UserID == userID {
		return g, true
	}
	if g.IsCaravan && g.CaravanID != "" {
		member, err := h.caravans.IsMember(g.CaravanID, userID)
		if err != nil {
			h.logger.Error("check caravan membership", "caravan_id", g.CaravanID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load goal")
			return nil, false
		}
		if member {
			return g, true
		}
	}
	writeError(w, http.StatusNotFound, "goal not found")
	return nil, false
}

// broadcast pushes a sync message to everyone who can see the goal: caravan
// members for shared goals, just the owner otherwise.
func (h *GoalHandler) broadcast(g *model.Goal, action string) {
	msg := websocket.NewMessage("goal", action, g.ID, map[string]any{"progress": g.Progress})

	if g.IsCaravan && g.CaravanID != "" {
		members, err := h.caravans.ListMembers(g.CaravanID)
		if err != nil {
			h.logger.Error("list caravan members", "caravan_id", g.CaravanID, "error", err)
			return
		}
		ids := make([]int64, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
		h.hub.BroadcastToUsers(ids, msg)
		return
	}
	h.hub.BroadcastToUsers([]int64{g.UserID}, msg)
}
