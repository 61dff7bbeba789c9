package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/app/dto"
	"github.com/stepflow/stepflow/internal/app/state"
	"github.com/stepflow/stepflow/internal/core/contextstore"
	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/plugin"
	"github.com/stepflow/stepflow/internal/core/session"
	"github.com/stepflow/stepflow/pkg/validation"
)

// PlayerConfig wires a Player. Cache and Logger are optional.
type PlayerConfig struct {
	State    *state.State
	Registry *plugin.Registry
	Session  *session.Machine
	Context  *contextstore.Store
	Cache    SessionCache
	Logger   *zap.Logger
}

// Player dispatches the steps of the playing scenario to their plugins and
// feeds results back into the flow session
type Player struct {
	mu      sync.Mutex
	state   *state.State
	reg     *plugin.Registry
	machine *session.Machine
	store   *contextstore.Store
	cache   SessionCache
	logger  *zap.Logger

	scenarioID string
	// version is the state version p.nodes was loaded at
	version int64
	nodes   []*graph.Node
	cur     *activation
}

// activation is one dispatch of one step
type activation struct {
	index  int
	node   *graph.Node
	plug   *plugin.Plugin
	found  bool
	env    *plugin.Envelope
	notice error

	mu      sync.Mutex
	refused error
	retired bool
}

func (a *activation) refuse(err error) {
	a.mu.Lock()
	a.refused = err
	a.mu.Unlock()
}

func (a *activation) refusal() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refused
}

func (a *activation) retire() {
	a.mu.Lock()
	a.retired = true
	a.mu.Unlock()
}

func (a *activation) live() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.retired
}

// StepView describes the session as the caller should present it
type StepView struct {
	ScenarioID string
	Status     session.Status
	Index      int
	Total      int
	Step       *graph.Node
	PluginType plugin.Type
	PluginName string
	// Found is false when the step's type is not registered
	Found bool
	// Interactive reports whether the step waits for Submit
	Interactive bool
	Fields      []plugin.Field
	// Notice is a configuration problem to render in place of the step
	Notice error
}

// StepResult is one recorded step rendered for display
type StepResult struct {
	Index  int
	NodeID string
	Label  string
	Text   string
	Result interface{}
}

// NewPlayer creates a player over the given components
func NewPlayer(cfg PlayerConfig) *Player {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = plugin.NewRegistry(logger)
	}
	machine := cfg.Session
	if machine == nil {
		machine = session.NewMachine(logger)
	}
	store := cfg.Context
	if store == nil {
		store = contextstore.NewStore(nil)
	}
	st := cfg.State
	if st == nil {
		st = state.New(reg, logger)
	}
	return &Player{
		state:   st,
		reg:     reg,
		machine: machine,
		store:   store,
		cache:   cfg.Cache,
		logger:  logger.Named("player"),
	}
}

// Play starts or resumes the session for scenarioID. An empty id plays the
// selected scenario. Steps that complete on activation are chained until one
// waits for an answer, cannot run, or the scenario completes.
func (p *Player) Play(ctx context.Context, scenarioID string) (*StepView, error) {
	const op = "play"
	p.mu.Lock()
	defer p.mu.Unlock()

	if scenarioID == "" {
		scenarioID = p.state.Selection().Scenario
		if scenarioID == "" {
			return nil, dto.Errorf(dto.KindConfiguration, op, state.ErrNoSelection, "select a scenario to play")
		}
	}
	p.refreshLocked(ctx)
	version := p.state.Version()
	data, err := p.state.ScenarioData(scenarioID)
	if err != nil {
		return nil, dto.NewError(dto.KindConfiguration, op, err)
	}
	if len(data.Nodes) == 0 {
		return nil, dto.Errorf(dto.KindConfiguration, op, session.ErrEmptyScenario, "add a step to scenario %q", scenarioID)
	}

	if p.machine.IsPlaying() && p.machine.ScenarioID() == scenarioID {
		p.syncLocked(ctx)
		return p.viewLocked(), nil
	}

	previous := p.machine.ScenarioID()
	p.restoreCached(ctx, scenarioID)

	resumed, err := p.machine.Start(scenarioID, len(data.Nodes))
	if err != nil {
		return nil, dto.NewError(dto.KindConfiguration, op, err)
	}
	if previous != "" && previous != scenarioID {
		// Start discarded the other scenario's steps
		p.dropCached(ctx, previous)
	}
	p.retireLocked()
	p.scenarioID = scenarioID
	p.version = version
	p.nodes = data.Nodes
	p.seed(data)
	if resumed {
		p.replay()
	}
	p.logger.Info("playing scenario",
		zap.String("scenarioID", scenarioID),
		zap.Int("steps", len(data.Nodes)),
		zap.Bool("resumed", resumed))

	p.runLocked(ctx)
	return p.viewLocked(), nil
}

// Current returns the view of the running step
func (p *Player) Current(ctx context.Context) *StepView {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncLocked(ctx)
	return p.viewLocked()
}

// Submit hands an answer to the current step. A rejected answer leaves the
// step current.
func (p *Player) Submit(ctx context.Context, answer interface{}) (*StepView, error) {
	const op = "submit"
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshLocked(ctx)
	if !p.machine.IsPlaying() || p.cur == nil {
		return nil, dto.NewError(dto.KindConfiguration, op, session.ErrNotPlaying)
	}
	a := p.cur
	if a.notice != nil {
		return p.viewLocked(), a.notice
	}
	responder, ok := a.plug.Viewer().(plugin.Responder)
	if !ok {
		return p.viewLocked(), dto.NewError(dto.KindConfiguration, op, plugin.ErrNotInteractive)
	}
	err := responder.Respond(ctx, a.env, answer)
	if refused := a.refusal(); refused != nil {
		// the envelope is spent; give the step a fresh one
		p.retireLocked()
		p.cur = p.activate(ctx, a.index)
		return p.viewLocked(), dto.Errorf(dto.KindIntegrity, op, refused, "result of step %q rejected", a.node.ID)
	}
	if err != nil {
		return p.viewLocked(), dto.NewError(dto.KindConfiguration, op, err)
	}

	p.runLocked(ctx)
	return p.viewLocked(), nil
}

// Skip moves past the current step without recording a result. It is the
// explicit way forward for a step that cannot run.
func (p *Player) Skip(ctx context.Context) (*StepView, error) {
	const op = "skip"
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshLocked(ctx)
	if !p.machine.IsPlaying() || p.cur == nil {
		return nil, dto.NewError(dto.KindConfiguration, op, session.ErrNotPlaying)
	}
	skipped := p.cur.node.ID
	if _, err := p.machine.Advance(); err != nil {
		return nil, dto.NewError(dto.KindConfiguration, op, err)
	}
	p.logger.Info("step skipped", zap.String("scenarioID", p.scenarioID), zap.String("nodeID", skipped))
	p.retireLocked()
	p.runLocked(ctx)
	return p.viewLocked(), nil
}

// Stop ends the session. With persist the recorded steps and index are kept
// for the next Play of the same scenario; otherwise everything is discarded.
func (p *Player) Stop(ctx context.Context, persist bool) error {
	const op = "stop"
	p.mu.Lock()
	defer p.mu.Unlock()

	scenarioID := p.machine.ScenarioID()
	if err := p.machine.Stop(persist); err != nil {
		return dto.NewError(dto.KindConfiguration, op, err)
	}
	p.retireLocked()
	if persist {
		p.persist(ctx)
		return nil
	}
	p.clearLocked(ctx, scenarioID)
	return nil
}

// clearLocked forgets the scenario of a discarded session and its cache entry
func (p *Player) clearLocked(ctx context.Context, scenarioID string) {
	p.store.Reset()
	p.nodes = nil
	p.scenarioID = ""
	p.version = 0
	p.dropCached(ctx, scenarioID)
}

// discardLocked throws away the playing session
func (p *Player) discardLocked(ctx context.Context, reason string) {
	scenarioID := p.machine.ScenarioID()
	p.logger.Warn("discarding session", zap.String("scenarioID", scenarioID), zap.String("reason", reason))
	_ = p.machine.Stop(false)
	p.retireLocked()
	p.clearLocked(ctx, scenarioID)
}

// refreshLocked reloads the playing scenario once the graph changed. The
// steps are re-activated against the new nodes. A session whose recorded or
// current steps no longer sit at their index is discarded.
func (p *Player) refreshLocked(ctx context.Context) {
	if !p.machine.IsPlaying() || p.scenarioID == "" {
		return
	}
	version := p.state.Version()
	if version == p.version {
		return
	}
	p.version = version

	data, err := p.state.ScenarioData(p.scenarioID)
	if err != nil || len(data.Nodes) == 0 {
		p.discardLocked(ctx, "scenario removed or emptied")
		return
	}
	if !p.matches(data.Nodes) {
		p.discardLocked(ctx, "played steps were removed or reordered")
		return
	}
	p.nodes = data.Nodes
	p.machine.SetStepCount(len(data.Nodes))
	p.retireLocked()
	p.runLocked(ctx)
}

// matches reports whether nodes still hold the recorded and current steps
// at their indexes
func (p *Player) matches(nodes []*graph.Node) bool {
	idx := p.machine.CurrentStepIndex()
	if idx >= len(nodes) {
		return false
	}
	if p.cur != nil && nodes[idx].ID != p.cur.node.ID {
		return false
	}
	for i, rec := range p.machine.Steps() {
		if rec.NodeID == "" {
			continue
		}
		if i >= len(nodes) || nodes[i].ID != rec.NodeID {
			return false
		}
	}
	return true
}

func (p *Player) retireLocked() {
	if p.cur != nil {
		p.cur.retire()
		p.cur = nil
	}
}

func (p *Player) dropCached(ctx context.Context, scenarioID string) {
	if p.cache == nil || scenarioID == "" {
		return
	}
	if err := p.cache.DeleteSession(ctx, scenarioID); err != nil {
		p.logger.Warn("failed to drop cached session", zap.String("scenarioID", scenarioID), zap.Error(err))
	}
}

// Results renders every recorded step of the session
func (p *Player) Results() []StepResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	steps := p.machine.Steps()
	out := make([]StepResult, 0, len(steps))
	for i, rec := range steps {
		if rec.NodeID == "" {
			continue
		}
		node := p.nodeByID(rec.NodeID)
		if node == nil {
			node = &graph.Node{ID: rec.NodeID}
		}
		plug, _ := p.reg.Resolve(plugin.Type(node.PluginKey))
		out = append(out, StepResult{
			Index:  i,
			NodeID: rec.NodeID,
			Label:  node.Label,
			Text:   plug.ResultRenderer().RenderResult(node, rec.Result, rec.Conversation),
			Result: rec.Result,
		})
	}
	return out
}

// Context exposes the store the steps read from
func (p *Player) Context() *contextstore.Store {
	return p.store
}

// restoreCached loads a cached snapshot for scenarioID when the machine
// holds no live session. A playing or paused session, for this or another
// scenario, is left to Start.
func (p *Player) restoreCached(ctx context.Context, scenarioID string) {
	if p.cache == nil {
		return
	}
	if st := p.machine.Status(); st != session.StatusIdle && st != session.StatusCompleted {
		return
	}
	snap, err := p.cache.LoadSession(ctx, scenarioID)
	if err != nil {
		if !errors.Is(err, session.ErrNoSnapshot) {
			p.logger.Warn("failed to load cached session", zap.String("scenarioID", scenarioID), zap.Error(err))
		}
		return
	}
	if snap.ScenarioID != scenarioID {
		return
	}
	if err := p.machine.Restore(snap); err != nil {
		p.logger.Warn("ignoring cached session", zap.String("scenarioID", scenarioID), zap.Error(err))
	}
}

// seed resets the context store to the scenario context plus the visible
// named context items under "items"
func (p *Player) seed(data *state.ScenarioData) {
	root := graph.CopyMap(data.Context)
	if root == nil {
		root = map[string]interface{}{}
	}
	items, err := p.state.ContextItemsFor(data.ScenarioID)
	if err == nil {
		named := make(map[string]interface{}, len(items))
		for _, c := range items {
			if name := c.Name(); name != "" {
				named[name] = graph.CopyMap(c.Payload)
			}
		}
		if len(named) > 0 {
			root["items"] = named
		}
	}
	p.store.Reset()
	p.store.Replace(root)
}

// replay re-applies the write-backs of already recorded steps
func (p *Player) replay() {
	for i, rec := range p.machine.Steps() {
		if i >= len(p.nodes) {
			break
		}
		n := p.nodes[i]
		if n.ID == rec.NodeID && n.ContextDataPath != "" {
			p.store.Set(n.ContextDataPath, rec.Result)
		}
	}
}

// runLocked activates steps until one stays current
func (p *Player) runLocked(ctx context.Context) {
	for p.machine.IsPlaying() {
		idx := p.machine.CurrentStepIndex()
		if idx >= len(p.nodes) {
			break
		}
		p.retireLocked()
		p.cur = p.activate(ctx, idx)
		if p.machine.IsPlaying() && p.machine.CurrentStepIndex() == idx {
			break
		}
	}
	if !p.machine.IsPlaying() {
		p.retireLocked()
	}
	p.persist(ctx)
}

// syncLocked picks up completions delivered outside Play and Submit
func (p *Player) syncLocked(ctx context.Context) {
	p.refreshLocked(ctx)
	if !p.machine.IsPlaying() {
		p.retireLocked()
		return
	}
	if p.cur == nil || p.cur.index != p.machine.CurrentStepIndex() {
		p.runLocked(ctx)
	}
}

func (p *Player) activate(ctx context.Context, idx int) *activation {
	node := p.nodes[idx].Clone()
	plug, found := p.reg.Resolve(plugin.Type(node.PluginKey))
	a := &activation{index: idx, node: node, plug: plug, found: found}
	a.env = plugin.NewEnvelope(node, idx, p.store, p.completion(a))
	p.store.SetStepIndex(idx)

	if err := plug.Viewer().Activate(ctx, a.env); err != nil {
		kind := dto.KindIO
		if errors.Is(err, plugin.ErrPluginNotFound) || errors.Is(err, plugin.ErrUnconfiguredStep) {
			kind = dto.KindConfiguration
		}
		a.notice = dto.NewError(kind, "activate", err)
		p.logger.Warn("step cannot run",
			zap.String("nodeID", node.ID),
			zap.String("type", node.PluginKey),
			zap.Error(err))
	}
	if refused := a.refusal(); refused != nil {
		a.notice = dto.Errorf(dto.KindIntegrity, "activate", refused, "result of step %q rejected", node.ID)
	}
	return a
}

// completion builds the callback a step uses to deliver its result. The
// write-back follows a successful record and precedes the next activation.
func (p *Player) completion(a *activation) plugin.CompleteFunc {
	return func(result interface{}, conversation []plugin.Message) bool {
		if !a.live() || !p.machine.IsPlaying() || p.machine.CurrentStepIndex() != a.index {
			p.logger.Debug("dropping result of stale step", zap.String("nodeID", a.node.ID))
			return false
		}
		if err := p.checkSchema(a.node, result); err != nil {
			a.refuse(err)
			p.logger.Warn("step result does not satisfy schema",
				zap.String("nodeID", a.node.ID), zap.Error(err))
			return false
		}
		_, err := p.machine.RecordStepResult(a.index, session.StepRecord{
			NodeID:       a.node.ID,
			Result:       result,
			Conversation: conversation,
			CompletedAt:  time.Now().UTC(),
		})
		if err != nil {
			p.logger.Debug("result not recorded", zap.String("nodeID", a.node.ID), zap.Error(err))
			return false
		}
		if a.node.ContextDataPath != "" {
			p.store.Set(a.node.ContextDataPath, result)
		}
		return true
	}
}

// checkSchema validates map results against the rules stored at the node's
// contextSchemaPath
func (p *Player) checkSchema(node *graph.Node, result interface{}) error {
	if node.ContextSchemaPath == "" {
		return nil
	}
	fields, ok := result.(map[string]interface{})
	if !ok {
		return nil
	}
	rules, ok := p.store.Get(node.ContextSchemaPath).(map[string]interface{})
	if !ok {
		return nil
	}
	return validation.Map(fields, rules)
}

func (p *Player) persist(ctx context.Context) {
	if p.cache == nil {
		return
	}
	snap := p.machine.Snapshot()
	if snap.ScenarioID == "" {
		return
	}
	if err := p.cache.SaveSession(ctx, snap.ScenarioID, snap); err != nil {
		p.logger.Warn("failed to cache session", zap.String("scenarioID", snap.ScenarioID), zap.Error(err))
	}
}

func (p *Player) nodeByID(id string) *graph.Node {
	for _, n := range p.nodes {
		if n.ID == id {
			return n
		}
	}
	if p.scenarioID == "" {
		return nil
	}
	sc, _, err := p.state.Scenario(p.scenarioID)
	if err != nil {
		return nil
	}
	return sc.Node(id)
}

func (p *Player) viewLocked() *StepView {
	v := &StepView{
		ScenarioID: p.machine.ScenarioID(),
		Status:     p.machine.Status(),
		Index:      p.machine.CurrentStepIndex(),
		Total:      len(p.nodes),
	}
	a := p.cur
	if a == nil {
		return v
	}
	_, interactive := a.plug.Viewer().(plugin.Responder)
	v.Step = a.node.Clone()
	v.PluginType = a.plug.Type
	v.PluginName = a.plug.Name
	v.Found = a.found
	v.Interactive = interactive && a.notice == nil
	v.Fields = a.plug.Editor().Fields(a.node)
	v.Notice = a.notice
	return v
}
