// Package orchestrator wires the whole system together and drives the
// decision cycle. One Orchestrator owns the shared state, the event
// bus, the analytical engines, the agent roster, the monitor, and the
// persistence backend; nothing here is global.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/supplystack/chaincommand/internal/agent"
	"github.com/supplystack/chaincommand/internal/anomaly"
	"github.com/supplystack/chaincommand/internal/backend"
	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/datagen"
	"github.com/supplystack/chaincommand/internal/domain"
	"github.com/supplystack/chaincommand/internal/event"
	"github.com/supplystack/chaincommand/internal/forecast"
	"github.com/supplystack/chaincommand/internal/kpi"
	"github.com/supplystack/chaincommand/internal/llm"
	"github.com/supplystack/chaincommand/internal/logging"
	"github.com/supplystack/chaincommand/internal/monitor"
	"github.com/supplystack/chaincommand/internal/optimize"
	"github.com/supplystack/chaincommand/internal/state"
	"github.com/supplystack/chaincommand/internal/tools"
)

// trainProductLimit bounds model fitting to the first products for
// startup speed.
const trainProductLimit = 20

// cycleErrorBackoff is the pause after a failed cycle in the loop.
const cycleErrorBackoff = 5 * time.Second

// Orchestrator owns every component and runs decision cycles.
type Orchestrator struct {
	cfg *config.Config
	log *logging.Logger

	st         *state.State
	bus        *event.Bus
	kpiEngine  *kpi.Engine
	detector   *anomaly.Detector
	forecaster *forecast.Forecaster
	optimizer  *optimize.Optimizer
	llmClient  llm.Client
	tools      *tools.Registry
	agents     *agent.Registry
	monitor    *monitor.Monitor
	store      backend.Backend

	reporter    *agent.Reporter
	coordinator *agent.Coordinator

	rng *rand.Rand

	mu         sync.Mutex
	cycleCount int
	speed      float64
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates an unstarted orchestrator. Call Initialize before
// running cycles.
func New(cfg *config.Config, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Orchestrator{
		cfg:   cfg,
		log:   log.WithComponent("orchestrator"),
		speed: cfg.Simulation.Speed,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Initialize bootstraps the system: generates the dataset, fits the
// models, builds engines, agents, and subscriptions, and prepares the
// persistence backend.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.log.Info("initializing", "llm_mode", o.cfg.LLM.Mode)

	// 1. Synthetic dataset.
	o.log.Info("generating_data")
	gen := datagen.New(o.cfg.Simulation, time.Now().UnixNano())
	products, suppliers, demand := gen.GenerateAll()

	o.st = state.New()
	o.st.SetDataset(products, suppliers, demand)
	o.log.Info("data_generated", "products", len(products), "suppliers", len(suppliers))

	// 2. Fit analytical models. Forecasting is fitted on the first
	// products only to keep startup fast.
	o.log.Info("training_models")
	o.forecaster = forecast.NewForecaster(o.log, time.Now().UnixNano())
	ids := make([]string, 0, trainProductLimit)
	for _, p := range products {
		ids = append(ids, p.ProductID)
		if len(ids) == trainProductLimit {
			break
		}
	}
	o.forecaster.Fit(demand, ids)

	o.detector = anomaly.NewDetector(o.cfg.KPI, o.log)
	o.detector.Fit(demand)

	o.optimizer = optimize.NewOptimizer(o.log)
	o.log.Info("models_trained")

	// 3. Engines.
	o.kpiEngine = kpi.NewEngine(o.cfg.KPI, o.log)
	o.bus = event.NewBus(o.log)
	o.monitor = monitor.New(o.cfg.Simulation, o.st, o.bus, o.kpiEngine, o.detector, o.log)

	// 4. Tools and agents.
	o.llmClient = llm.New(o.cfg.LLM, o.log)
	o.log.Info("llm_created", "mode", o.llmClient.Name())

	o.tools = tools.NewRegistry(tools.Deps{
		State:      o.st,
		Bus:        o.bus,
		KPI:        o.kpiEngine,
		Forecaster: o.forecaster,
		Detector:   o.detector,
		Optimizer:  o.optimizer,
		Approval:   o.cfg.Approval,
		Log:        o.log,
	})

	agentCfg := agent.Config{
		LLM:      o.llmClient,
		Tools:    o.tools,
		State:    o.st,
		Approval: o.cfg.Approval,
		Log:      o.log,
	}

	o.coordinator = agent.NewCoordinator(agentCfg)
	o.reporter = agent.NewReporter(agentCfg)

	o.agents = agent.NewRegistry()
	o.agents.Register(agent.NewMarketIntelligence(agentCfg))
	o.agents.Register(agent.NewAnomalyDetector(agentCfg))
	o.agents.Register(agent.NewDemandForecaster(agentCfg))
	o.agents.Register(agent.NewInventoryOptimizer(agentCfg))
	o.agents.Register(agent.NewRiskAssessor(agentCfg))
	o.agents.Register(agent.NewSupplierManager(agentCfg))
	o.agents.Register(agent.NewLogisticsCoordinator(agentCfg))
	o.agents.Register(agent.NewStrategicPlanner(agentCfg))
	o.agents.Register(o.coordinator)
	o.agents.Register(o.reporter)

	// 5. Event subscriptions.
	o.wireSubscriptions(ctx)
	o.log.Info("agents_initialized", "count", len(o.agents.All()))

	// 6. Initial KPI snapshot seeds the engine history.
	o.kpiEngine.CalculateSnapshot(products, nil, suppliers)

	// 7. Persistence backend.
	store, err := backend.New(o.cfg.Backend, o.log)
	if err != nil {
		return err
	}
	o.store = store
	if err := o.store.Setup(ctx); err != nil {
		return err
	}
	if err := o.store.PersistDemandHistory(ctx, demand); err != nil {
		o.log.Error("demand_persist_failed", "error", err)
	}

	o.log.Info("system_ready")
	return nil
}

// wireSubscriptions connects agents to the event types they react to.
func (o *Orchestrator) wireSubscriptions(ctx context.Context) {
	handler := func(name string) event.Handler {
		return func(ev event.Event) {
			if a, ok := o.agents.Get(name); ok {
				a.HandleEvent(ctx, ev)
			}
		}
	}

	subscriptions := map[string][]string{
		"demand_forecaster":     {event.TypeKPIThresholdViolated, event.TypeNewMarketIntel},
		"strategic_planner":     {event.TypeForecastUpdated, event.TypeKPITrendAlert},
		"inventory_optimizer":   {event.TypeLowStockAlert, event.TypeOverstockAlert, event.TypeStockoutAlert, event.TypeForecastUpdated},
		"supplier_manager":      {event.TypeReorderTriggered, event.TypeSupplierIssue, event.TypeQualityAlert},
		"logistics_coordinator": {event.TypePOCreated, event.TypeDeliveryDelayed},
		"risk_assessor":         {event.TypeAnomalyDetected, event.TypeSupplyRiskAlert},
		"reporter":              {event.TypeCycleComplete, event.TypeKPISnapshotCreated},
	}
	for name, types := range subscriptions {
		for _, t := range types {
			o.bus.Subscribe(t, handler(name))
		}
	}

	// The coordinator observes everything.
	o.bus.SubscribeAll(handler("coordinator"))
}

// CycleResult summarizes one completed decision cycle.
type CycleResult struct {
	Cycle        int               `json:"cycle"`
	AgentResults map[string]string `json:"agent_results"`
	KPI          map[string]any    `json:"kpi"`
	Violations   int               `json:"violations"`
	ReportID     string            `json:"report"`
}

// RunCycle executes one full decision cycle across all agent layers.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleResult, error) {
	if o.agents == nil {
		return CycleResult{}, fmt.Errorf("orchestrator: not initialized")
	}

	o.mu.Lock()
	o.cycleCount++
	cycle := o.cycleCount
	o.mu.Unlock()

	log := o.log.WithCycle(cycle)
	log.Info("cycle_start")
	eventsBefore := o.bus.Count()

	products := o.st.Products()
	c := agent.Context{Cycle: cycle, Products: products}
	agentResults := make(map[string]map[string]any)

	run := func(step int, description string, names ...string) {
		log.Info("cycle_step", "step", step, "description", description)
		for _, name := range names {
			a, ok := o.agents.Get(name)
			if !ok {
				continue
			}
			agentResults[name] = a.RunCycle(ctx, c)
		}
	}

	run(1, "Operational layer scan", "market_intelligence", "anomaly_detector")
	run(2, "Strategic forecasting", "demand_forecaster")
	// The forecaster's holdout accuracy replaces the carried-forward
	// MAPE before the end-of-cycle snapshot is taken.
	if mape, ok := o.forecaster.MeanMAPE(); ok {
		o.kpiEngine.SetMAPE(mape)
	}
	run(3, "Inventory check + Risk assessment", "inventory_optimizer", "risk_assessor")
	run(4, "Supplier management", "supplier_manager")
	run(5, "Logistics coordination", "logistics_coordinator")
	run(6, "Strategic planning", "strategic_planner")

	log.Info("cycle_step", "step", 7, "description", "Coordinator arbitration")
	coordCtx := c
	coordCtx.AgentResults = agentResults
	coordResult := o.coordinator.RunCycle(ctx, coordCtx)
	agentResults["coordinator"] = coordResult

	log.Info("cycle_step", "step", 8, "description", "Report generation")
	reportCtx := coordCtx
	reportCtx.CoordinatorSummary, _ = coordResult["executive_summary"].(string)
	reportResult := o.reporter.RunCycle(ctx, reportCtx)
	agentResults["reporter"] = reportResult

	// Step 9: KPI update and bookkeeping.
	snapshot := o.kpiEngine.CalculateSnapshot(o.st.Products(), o.st.PurchaseOrders(), o.st.Suppliers())
	violations := o.kpiEngine.CheckThresholds(snapshot)
	for _, v := range violations {
		o.bus.Publish(v)
	}

	o.consumeDemand(products)

	if o.store != nil {
		published := o.bus.Count() - eventsBefore
		if err := o.store.PersistCycle(ctx, cycle, snapshot, o.bus.Recent(published), o.st.PurchaseOrders(), o.st.Products(), o.st.Suppliers()); err != nil {
			log.Error("cycle_persist_failed", "error", err)
		}
	}

	log.Info("cycle_complete", "agents_run", len(agentResults), "kpi_violations", len(violations))

	summaries := make(map[string]string, len(agentResults))
	for name, result := range agentResults {
		summaries[name], _ = result["analysis"].(string)
	}
	reportID := ""
	if report, ok := reportResult["report"].(map[string]any); ok {
		reportID, _ = report["report_id"].(string)
	}

	return CycleResult{
		Cycle:        cycle,
		AgentResults: summaries,
		KPI:          snapshot.Map(),
		Violations:   len(violations),
		ReportID:     reportID,
	}, nil
}

// consumeDemand draws stochastic demand against every product.
func (o *Orchestrator) consumeDemand(products []*domain.Product) {
	consumed := make(map[string]float64, len(products))
	o.mu.Lock()
	for _, p := range products {
		qty := o.rng.NormFloat64()*p.DailyDemandStd + p.DailyDemandAvg
		if qty < 0 {
			qty = 0
		}
		consumed[p.ProductID] = qty
	}
	o.mu.Unlock()
	o.st.ConsumeDemand(consumed)
}

// LoopInterval is the pause between cycles, scaled by speed.
func (o *Orchestrator) LoopInterval() time.Duration {
	o.mu.Lock()
	speed := o.speed
	o.mu.Unlock()
	if speed < 0.1 {
		speed = 0.1
	}
	return time.Duration(o.cfg.Simulation.TickSeconds * 2 / speed * float64(time.Second))
}

// StartLoop launches continuous cycles plus the proactive monitor.
// No-op when the loop already runs.
func (o *Orchestrator) StartLoop(ctx context.Context) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.cancel = cancel
	o.done = done
	o.mu.Unlock()

	o.monitor.Start(loopCtx)
	go o.loop(loopCtx, done)
	o.log.Info("simulation_loop_started")
}

// loop owns its done channel directly: StopLoop nils the struct fields,
// so the goroutine must not read them.
func (o *Orchestrator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if _, err := o.runCycleSafe(ctx); err != nil {
			o.log.Error("cycle_error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(cycleErrorBackoff):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.LoopInterval()):
		}
	}
}

// runCycleSafe contains panics from agent or tool code so a single bad
// cycle cannot kill the loop.
func (o *Orchestrator) runCycleSafe(ctx context.Context) (result CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return o.RunCycle(ctx)
}

// StopLoop halts continuous cycles and the monitor. Safe to call when
// not running.
func (o *Orchestrator) StopLoop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.mu.Unlock()

	cancel()
	<-done
	o.monitor.Stop()
	o.log.Info("simulation_loop_stopped")
}

// Shutdown stops everything and releases resources.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.StopLoop()
	if o.monitor != nil {
		o.monitor.Stop()
	}
	if o.bus != nil {
		o.bus.Stop()
	}
	if o.store != nil {
		if err := o.store.Teardown(ctx); err != nil {
			o.log.Error("backend_teardown_failed", "error", err)
		}
	}
	o.log.Info("system_shutdown")
}

// Running reports whether the continuous loop is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// CycleCount returns the number of completed cycles.
func (o *Orchestrator) CycleCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycleCount
}

// Speed returns the current simulation speed multiplier.
func (o *Orchestrator) Speed() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speed
}

// SetSpeed adjusts the loop speed. Values below 0.1 are clamped when
// the interval is computed, not here, so the setting round-trips.
func (o *Orchestrator) SetSpeed(speed float64) {
	o.mu.Lock()
	o.speed = speed
	o.mu.Unlock()
	o.log.Info("simulation_speed_changed", "speed", speed)
}

// Accessors for the HTTP layer.

func (o *Orchestrator) State() *state.State              { return o.st }
func (o *Orchestrator) Forecaster() *forecast.Forecaster { return o.forecaster }
func (o *Orchestrator) Bus() *event.Bus                  { return o.bus }
func (o *Orchestrator) KPI() *kpi.Engine                 { return o.kpiEngine }
func (o *Orchestrator) Agents() *agent.Registry          { return o.agents }
func (o *Orchestrator) Store() backend.Backend           { return o.store }
func (o *Orchestrator) Reporter() *agent.Reporter        { return o.reporter }
