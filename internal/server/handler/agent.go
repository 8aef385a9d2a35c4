package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// AgentReactivator is the slice of the reputation store the agent handler
// needs for manual overrides.
type AgentReactivator interface {
	Reactivate(ctx context.Context, agentID string) error
}

// AgentHandler serves agent roster and reputation endpoints.
type AgentHandler struct {
	agents     domain.AgentStore
	events     domain.ReputationEventStore
	reputation AgentReactivator
	logger     *slog.Logger
}

// NewAgentHandler creates an AgentHandler.
func NewAgentHandler(agents domain.AgentStore, events domain.ReputationEventStore, reputation AgentReactivator, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		agents:     agents,
		events:     events,
		reputation: reputation,
		logger:     logger,
	}
}

type agentView struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Reputation        int       `json:"reputation"`
	Accuracy          float64   `json:"accuracy"`
	TradeCount        int       `json:"trade_count"`
	Status            string    `json:"status"`
	VerificationBonus float64   `json:"verification_bonus"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newAgentView(a domain.Agent) agentView {
	return agentView{
		ID:                a.ID,
		Type:              string(a.Type),
		Reputation:        a.Reputation,
		Accuracy:          a.Accuracy,
		TradeCount:        a.TradeCount,
		Status:            string(a.Status),
		VerificationBonus: a.VerificationBonus,
		UpdatedAt:         a.UpdatedAt,
	}
}

type listAgentsResponse struct {
	Agents []agentView `json:"agents"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ListAgents returns the agent roster.
// GET /api/agents?limit=50&offset=0
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	agents, err := h.agents.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list agents failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list agents")
		return
	}

	views := make([]agentView, len(agents))
	for i, a := range agents {
		views[i] = newAgentView(a)
	}

	writeJSON(w, http.StatusOK, listAgentsResponse{
		Agents: views,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetAgent returns a single agent by ID.
// GET /api/agents/{id}
func (h *AgentHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing agent id")
		return
	}

	agent, err := h.agents.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get agent failed",
			slog.String("agent_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get agent")
		return
	}

	writeJSON(w, http.StatusOK, newAgentView(agent))
}

type reputationEventView struct {
	AgentID   string    `json:"agent_id"`
	MarketID  string    `json:"market_id"`
	Predicted float64   `json:"predicted"`
	Outcome   float64   `json:"outcome"`
	Delta     int       `json:"delta"`
	CreatedAt time.Time `json:"created_at"`
}

type listReputationResponse struct {
	Events []reputationEventView `json:"events"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// ListReputationEvents returns an agent's reputation audit trail, newest
// first.
// GET /api/agents/{id}/reputation
func (h *AgentHandler) ListReputationEvents(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing agent id")
		return
	}
	opts := parseListOpts(r)

	events, err := h.events.ListByAgent(r.Context(), id, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list reputation events failed",
			slog.String("agent_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list reputation events")
		return
	}

	views := make([]reputationEventView, len(events))
	for i, ev := range events {
		views[i] = reputationEventView{
			AgentID:   ev.AgentID,
			MarketID:  ev.MarketID,
			Predicted: ev.Predicted,
			Outcome:   ev.Outcome,
			Delta:     ev.Delta,
			CreatedAt: ev.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, listReputationResponse{
		Events: views,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// ReactivateAgent is the manual operator override that clears a suspension
// regardless of rolling accuracy.
// POST /api/agents/{id}/reactivate
func (h *AgentHandler) ReactivateAgent(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing agent id")
		return
	}

	if err := h.reputation.Reactivate(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: reactivate agent failed",
			slog.String("agent_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to reactivate agent")
		return
	}

	h.logger.InfoContext(r.Context(), "agent reactivated by operator",
		slog.String("agent_id", id),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}
