// Package agent implements the decision-making agents of the platform.
// Agents share one interface and are grouped into layers: operational
// agents watch the data, tactical agents act on it, strategic agents
// plan ahead, and orchestration agents coordinate the rest. Every
// capability an agent exercises goes through the tools registry.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/llm"
	"github.com/supplystack/chaincommand/internal/logging"
	"github.com/supplystack/chaincommand/internal/state"
	"github.com/supplystack/chaincommand/internal/tools"
)

// Layer classifies an agent's place in the decision hierarchy.
type Layer string

const (
	LayerStrategic     Layer = "strategic"
	LayerTactical      Layer = "tactical"
	LayerOperational   Layer = "operational"
	LayerOrchestration Layer = "orchestration"
)

// Context is the per-cycle input handed to every agent.
type Context struct {
	Cycle    int
	Products []*domain.Product

	// AgentResults carries the outputs of agents that already ran this
	// cycle, keyed by agent name. Populated for orchestration agents.
	AgentResults map[string]map[string]any

	// CoordinatorSummary is the coordinator's executive summary, set
	// before the reporter runs.
	CoordinatorSummary string
}

// Agent is one decision-making participant.
type Agent interface {
	Name() string
	Role() string
	Layer() Layer

	// HandleEvent reacts to a published supply chain event.
	HandleEvent(ctx context.Context, ev event.Event)

	// RunCycle executes one full decision cycle and returns the
	// agent's structured results.
	RunCycle(ctx context.Context, c Context) map[string]any

	// Status summarizes the agent for the API surface.
	Status() map[string]any
}

// Config carries the shared services injected into every agent.
type Config struct {
	LLM      llm.Client
	Tools    *tools.Registry
	State    *state.State
	Approval config.ApprovalConfig
	Log      *logging.Logger
}

const maxActionLog = 1000

// Base holds the machinery common to all agents: the tool invoker, the
// LLM reasoning step, and the bounded action log.
type Base struct {
	name  string
	role  string
	layer Layer

	llm   llm.Client
	tools *tools.Registry
	log   *logging.Logger

	mu         sync.Mutex
	actionLog  []domain.AgentAction
	active     bool
	lastRun    time.Time
	cycleCount int
}

func newBase(name, role string, layer Layer, cfg Config) Base {
	log := cfg.Log
	if log == nil {
		log = logging.NopLogger()
	}
	return Base{
		name:   name,
		role:   role,
		layer:  layer,
		llm:    cfg.LLM,
		tools:  cfg.Tools,
		log:    log.WithComponent(name),
		active: true,
	}
}

func (b *Base) Name() string { return b.name }
func (b *Base) Role() string { return b.role }
func (b *Base) Layer() Layer { return b.layer }

// beginCycle advances the cycle counter and timestamps the run.
func (b *Base) beginCycle() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycleCount++
	b.lastRun = time.Now().UTC()
	return b.cycleCount
}

// act invokes a tool and records the outcome in the action log. Tool
// failures are recorded, never propagated.
func (b *Base) act(ctx context.Context, kind tools.ActionKind, description string, args tools.Args) tools.Result {
	result := b.tools.Execute(ctx, kind, args)

	action := domain.AgentAction{
		ActionID:    domain.NewID("ACT"),
		Timestamp:   time.Now().UTC(),
		AgentName:   b.name,
		ActionType:  string(kind),
		Description: description,
		Input:       args,
		Success:     !result.Failed(),
	}
	if result.Failed() {
		action.Error, _ = result["error"].(string)
		b.log.Error("agent_act_error", "action", string(kind), "error", action.Error)
	}

	b.mu.Lock()
	b.actionLog = append(b.actionLog, action)
	if len(b.actionLog) > maxActionLog {
		b.actionLog = b.actionLog[len(b.actionLog)-maxActionLog:]
	}
	b.mu.Unlock()

	return result
}

// think asks the LLM to reason about the given context. A generation
// failure yields an empty analysis, not an error; reasoning is
// advisory and must never stall a cycle.
func (b *Base) think(ctx context.Context, thinkCtx map[string]any) string {
	var tb strings.Builder
	for _, kind := range b.tools.Kinds() {
		if t, ok := b.tools.Get(kind); ok {
			fmt.Fprintf(&tb, "- %s: %s\n", kind, t.Description())
		}
	}
	system := fmt.Sprintf(
		"You are %s, a supply chain AI agent.\nRole: %s\nAvailable tools: %s\nAnalyze the context and recommend actions.",
		b.name, b.role, tb.String(),
	)

	keys := make([]string, 0, len(thinkCtx))
	for k := range thinkCtx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var pb strings.Builder
	pb.WriteString("Current context:\n")
	for _, k := range keys {
		fmt.Fprintf(&pb, "%s: %v\n", k, thinkCtx[k])
	}
	pb.WriteString("\nWhat should we do?")

	response, err := b.llm.Generate(ctx, pb.String(), system)
	if err != nil {
		b.log.Error("agent_think_error", "error", err)
		return ""
	}
	b.log.Debug("agent_think", "response_len", len(response))
	return response
}

// Status reports the agent's current state.
func (b *Base) Status() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	var lastRun any
	if !b.lastRun.IsZero() {
		lastRun = b.lastRun.Format(time.RFC3339)
	}
	return map[string]any{
		"name":          b.name,
		"role":          b.role,
		"layer":         string(b.layer),
		"active":        b.active,
		"last_run":      lastRun,
		"cycle_count":   b.cycleCount,
		"actions_taken": len(b.actionLog),
	}
}

// RecentActions returns up to the last n recorded actions.
func (b *Base) RecentActions(n int) []domain.AgentAction {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.actionLog) {
		n = len(b.actionLog)
	}
	out := make([]domain.AgentAction, n)
	copy(out, b.actionLog[len(b.actionLog)-n:])
	return out
}

// Registry holds the full agent roster in cycle execution order.
type Registry struct {
	mu     sync.RWMutex
	order  []Agent
	byName map[string]Agent
}

// NewRegistry creates an empty roster.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Agent)}
}

// Register appends an agent to the roster. Registering a duplicate name
// replaces the earlier entry in the lookup but keeps execution order.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, a)
	r.byName[a.Name()] = a
}

// Get returns the agent with the given name.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// All returns the roster in registration order.
func (r *Registry) All() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, len(r.order))
	copy(out, r.order)
	return out
}

// Statuses returns every agent's status keyed by name.
func (r *Registry) Statuses() map[string]map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]any, len(r.order))
	for _, a := range r.order {
		out[a.Name()] = a.Status()
	}
	return out
}

// firstN bounds a product slice without copying.
func firstN(products []*domain.Product, n int) []*domain.Product {
	if len(products) > n {
		return products[:n]
	}
	return products
}
