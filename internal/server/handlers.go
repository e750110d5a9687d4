package server

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/supplystack/chaincommand/internal/agent"
	"github.com/supplystack/chaincommand/internal/backend"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ── KPI ──────────────────────────────────────────────────────

func (s *Server) handleKPICurrent(w http.ResponseWriter, _ *http.Request) {
	snapshot, ok := s.orch.KPI().Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no KPI data available yet"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleKPIHistory(w http.ResponseWriter, r *http.Request) {
	periods := queryInt(r, "periods", 30, 1, 365)
	history := s.orch.KPI().History()
	if len(history) > periods {
		history = history[len(history)-periods:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": history,
		"count":     len(history),
	})
}

// ── Inventory ────────────────────────────────────────────────

func (s *Server) handleInventoryStatus(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")

	items := make([]map[string]any, 0)
	for _, p := range s.orch.State().Products() {
		if productID != "" && p.ProductID != productID {
			continue
		}
		dsi := 999.0
		if p.DailyDemandAvg > 0 {
			dsi = p.CurrentStock / p.DailyDemandAvg
		}
		status := "healthy"
		switch {
		case p.CurrentStock < p.SafetyStock:
			status = "critical"
		case p.CurrentStock < p.ReorderPoint:
			status = "low"
		}
		items = append(items, map[string]any{
			"product_id":       p.ProductID,
			"name":             p.Name,
			"category":         string(p.Category),
			"current_stock":    p.CurrentStock,
			"reorder_point":    p.ReorderPoint,
			"safety_stock":     p.SafetyStock,
			"daily_demand_avg": p.DailyDemandAvg,
			"days_of_supply":   math.Round(dsi*10) / 10,
			"unit_cost":        p.UnitCost,
			"status":           status,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": items, "count": len(items)})
}

// ── Agents ───────────────────────────────────────────────────

func (s *Server) handleAgentsStatus(w http.ResponseWriter, _ *http.Request) {
	statuses := s.orch.Agents().Statuses()
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": statuses,
		"count":  len(statuses),
	})
}

func (s *Server) handleTriggerAgent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("agent_name")
	a, ok := s.orch.Agents().Get(name)
	if !ok {
		available := make([]string, 0)
		for _, registered := range s.orch.Agents().All() {
			available = append(available, registered.Name())
		}
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":     "agent '" + name + "' not found",
			"available": available,
		})
		return
	}

	result := a.RunCycle(r.Context(), agent.Context{
		Products: s.orch.State().Products(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"agent": name, "result": result})
}

// ── Events ───────────────────────────────────────────────────

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 200)
	events := s.orch.Bus().Recent(limit)

	// Newest first for the dashboard.
	reversed := make([]event.Event, len(events))
	for i, ev := range events {
		reversed[len(events)-1-i] = ev
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": reversed, "count": len(reversed)})
}

// ── Forecast ─────────────────────────────────────────────────

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("product_id")
	horizon := queryInt(r, "horizon", 30, 1, 90)

	f := s.orch.Forecaster()
	if !f.Fitted(productID) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "no forecast model for product " + productID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": productID,
		"horizon":    horizon,
		"forecasts":  f.Predict(productID, horizon),
		"accuracy":   f.GetAccuracy(productID),
	})
}

// ── Human approval ───────────────────────────────────────────

func (s *Server) handlePendingApprovals(w http.ResponseWriter, _ *http.Request) {
	pending := s.orch.State().PendingApprovals()
	writeJSON(w, http.StatusOK, map[string]any{"approvals": pending, "count": len(pending)})
}

type decideRequest struct {
	Approved  bool   `json:"approved"`
	DecidedBy string `json:"decided_by"`
	Reason    string `json:"reason"`
}

// handleDecideApproval records a human decision. Decisions overwrite:
// a later call replaces an earlier one rather than failing, so a
// mistaken click can be corrected.
func (s *Server) handleDecideApproval(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")

	var body decideRequest
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if body.DecidedBy == "" {
		body.DecidedBy = "human"
	}

	req, ok := s.orch.State().DecideApproval(requestID, body.Approved, body.DecidedBy, body.Reason)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "approval request " + requestID + " not found",
		})
		return
	}

	// An approved purchase order moves to the order book proper.
	if body.Approved && req.RequestType == "purchase_order" {
		if poID, ok := req.Data["po_id"].(string); ok {
			s.orch.State().AdvanceOrder(poID, domain.OrderApproved)
		}
	}

	s.orch.Bus().Publish(event.New(
		event.TypeApprovalDecided, domain.SeverityLow, "api",
		"Approval "+requestID+" decided by "+body.DecidedBy,
		map[string]any{
			"request_id": requestID,
			"approved":   body.Approved,
			"decided_by": body.DecidedBy,
		},
	))

	s.log.Info("approval_decided", "request_id", requestID, "approved", body.Approved)
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID,
		"status":     string(req.Status),
		"reason":     body.Reason,
	})
}

// ── Simulation control ───────────────────────────────────────

func (s *Server) handleSimulationStart(w http.ResponseWriter, _ *http.Request) {
	if s.orch.Running() {
		writeJSON(w, http.StatusOK, map[string]any{"status": "already_running"})
		return
	}
	// The loop must outlive this request, so it gets its own context.
	s.orch.StartLoop(context.Background())
	writeJSON(w, http.StatusOK, map[string]any{"status": "started", "speed": s.orch.Speed()})
}

func (s *Server) handleSimulationStop(w http.ResponseWriter, _ *http.Request) {
	s.orch.StopLoop()
	writeJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
}

type speedRequest struct {
	Speed float64 `json:"speed"`
}

func (s *Server) handleSimulationSpeed(w http.ResponseWriter, r *http.Request) {
	var body speedRequest
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if body.Speed < 0.1 || body.Speed > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "speed must be between 0.1 and 100"})
		return
	}
	s.orch.SetSpeed(body.Speed)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "speed": body.Speed})
}

func (s *Server) handleSimulationStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.orch.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":           s.orch.Running(),
		"cycle_count":       s.orch.CycleCount(),
		"speed":             s.orch.Speed(),
		"products":          len(st.Products()),
		"suppliers":         len(st.Suppliers()),
		"purchase_orders":   len(st.PurchaseOrders()),
		"pending_approvals": len(st.PendingApprovals()),
		"events":            s.orch.Bus().Count(),
	})
}

// ── Persistence backend ──────────────────────────────────────

func (s *Server) handleBackendKPITrend(w http.ResponseWriter, r *http.Request) {
	metric := r.PathValue("metric")
	limit := queryInt(r, "limit", 100, 1, 1000)

	points, err := s.orch.Store().QueryKPITrend(r.Context(), metric, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if points == nil {
		points = []backend.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"metric": metric, "data": points})
}

func (s *Server) handleBackendEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 500)
	eventType := r.URL.Query().Get("type")

	events, err := s.orch.Store().QueryEvents(r.Context(), eventType, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func queryInt(r *http.Request, key string, def, lo, hi int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
