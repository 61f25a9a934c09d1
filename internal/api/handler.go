// Package api exposes the engine's capability contracts as internal HTTP
// RPCs: task routing, outcome feedback, and a few operational hooks.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/synapse/internal/engine"
	"github.com/nidhogg/synapse/internal/hebbian"
	"github.com/nidhogg/synapse/internal/knowledge"
	"github.com/nidhogg/synapse/internal/neurogenesis"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	coordinator *engine.Coordinator
	graph       knowledge.Graph
	adapter     *hebbian.Adapter
	logger      *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(coordinator *engine.Coordinator, graph knowledge.Graph, adapter *hebbian.Adapter, logger *zap.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		graph:       graph,
		adapter:     adapter,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/tasks", h.routeTask)
		r.Post("/outcomes", h.reportOutcome)

		r.Get("/agents/{name}", h.getAgent)
		r.Get("/agents/{name}/concepts", h.agentConcepts)

		// Operational hooks
		r.Post("/decay", h.triggerDecay)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok", "service": "synapse"}
	if n, err := h.graph.CountAgents(r.Context()); err == nil {
		resp["agents"] = n
	} else {
		resp["status"] = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) routeTask(w http.ResponseWriter, r *http.Request) {
	var task engine.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if task.ConceptName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "concept_name is required"})
		return
	}

	routing, err := h.coordinator.HandleTask(r.Context(), task)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, neurogenesis.ErrResearchInsufficient) {
			// No agent could be created; the concept stays unroutable.
			status = http.StatusUnprocessableEntity
		}
		h.logger.Warn("task routing failed",
			zap.String("request", task.RequestID),
			zap.Error(err))
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, routing)
}

func (h *Handler) reportOutcome(w http.ResponseWriter, r *http.Request) {
	var o engine.Outcome
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if o.AgentName == "" || o.ConceptName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "agent_name and concept_name are required"})
		return
	}

	h.coordinator.ReportOutcome(o)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	agent, err := h.graph.GetAgent(r.Context(), name)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (h *Handler) agentConcepts(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	edges, err := h.graph.AgentEdges(r.Context(), name)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

func (h *Handler) triggerDecay(w http.ResponseWriter, r *http.Request) {
	n, err := h.adapter.DecayAll(r.Context(), 0, 0)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"decayed": n})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
