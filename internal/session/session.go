// Package session runs one simulation session: it gates requests on the GIS
// context, executes them against the engine, plays the result back and keeps
// the risk report current. All state changes happen on one inbox goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emberwatch/firecommand/internal/cache"
	"github.com/emberwatch/firecommand/internal/command"
	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/internal/dispatcher"
	"github.com/emberwatch/firecommand/internal/engine"
	"github.com/emberwatch/firecommand/internal/geo"
	"github.com/emberwatch/firecommand/internal/gis"
	"github.com/emberwatch/firecommand/internal/impact"
	"github.com/emberwatch/firecommand/internal/logging"
	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/google/uuid"
)

// Inbox commands.
const (
	cmdDispatch    = "dispatch"
	cmdNotifyReady = "notify_ready"
	cmdRelocate    = "relocate"
	cmdTick        = "tick"
	cmdScrub       = "scrub"
	cmdRestart     = "restart"
	cmdToggle      = "toggle"
	cmdCommand     = "command"
	cmdParameters  = "parameters"
	cmdGISDone     = "gis.done"
	cmdSettled     = "gate.settled"
	cmdEngineDone  = "engine.done"
	cmdDetectDone  = "detect.done"
	cmdShutdown    = "shutdown"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrNoParser is returned by ApplyCommand without a configured parser.
	ErrNoParser = errors.New("no command parser configured")
)

// Options wires a session to its collaborators.
type Options struct {
	Session  config.SessionConfig
	Playback config.PlaybackConfig

	// Origin is the initial ambient origin; zero means core.DefaultOrigin.
	Origin core.Origin
	// Parameters are the initial parameters; zero means core.DefaultParameters.
	Parameters core.SimulationParameters

	Engine engine.Engine
	GIS    gis.Provider
	Parser command.Parser

	Logger         *slog.Logger
	DispatchLogger dispatcher.Logger
	Observers      []Observer
}

type dispatchCmd struct {
	override   *core.ParameterOverride
	forceDefer bool
}

type gisResult struct {
	epoch     uint64
	origin    core.Origin
	landmarks []core.Landmark
	err       error
}

type engineResult struct {
	req     core.SimulationRequest
	history core.History
	err     error
}

type detectResult struct {
	seq   uint64
	epoch uint64
	risks []core.RiskRecord
}

type view struct {
	snap      Snapshot
	history   core.History
	landmarks []core.Landmark
}

// Session is the owned controller object for one dashboard session.
type Session struct {
	id     uuid.UUID
	d      *dispatcher.Dispatcher
	log    *slog.Logger
	cfg    config.SessionConfig
	tick   time.Duration
	engine engine.Engine
	gis    gis.Provider
	parser command.Parser

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	metrics *metrics
	current atomic.Pointer[view]

	// owned by the inbox goroutine
	origin       core.Origin
	gate         *Gate
	ctrl         *Controller
	play         Playback
	landmarks    *cache.LandmarkCache
	risks        []core.RiskRecord
	risksPending bool
	detecting    core.SimulationRequest
	detectStart  time.Time
	gisErr       error
	settle       *time.Timer
	tickStop     chan struct{}
	started      map[uint64]time.Time
	cancels      map[uint64]context.CancelFunc
	closed       bool
	observers    []Observer
}

// New creates a session. Call Start to begin loading the GIS context.
func New(opts Options) (*Session, error) {
	if opts.Engine == nil || opts.GIS == nil {
		return nil, errors.New("session needs an engine and a GIS provider")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DispatchLogger == nil {
		opts.DispatchLogger = opts.Logger
	}
	if opts.Origin == (core.Origin{}) {
		opts.Origin = core.DefaultOrigin
	}
	if opts.Parameters == (core.SimulationParameters{}) {
		opts.Parameters = core.DefaultParameters()
	}
	opts.Parameters.OriginLat = opts.Origin.Lat
	opts.Parameters.OriginLon = opts.Origin.Lon
	if opts.Playback.TickInterval <= 0 {
		opts.Playback.TickInterval = 100 * time.Millisecond
	}
	if opts.Session.ResponsePolicy == "" {
		opts.Session.ResponsePolicy = config.PolicyHighestSequence
	}

	d, err := dispatcher.New(opts.DispatchLogger, opts.Session.InboxSize)
	if err != nil {
		return nil, fmt.Errorf("creating inbox: %w", err)
	}
	m, err := newMetrics()
	if err != nil {
		d.Close()
		return nil, err
	}

	id := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		d:         d,
		log:       opts.Logger.With("session", id.String()),
		cfg:       opts.Session,
		tick:      opts.Playback.TickInterval,
		engine:    opts.Engine,
		gis:       opts.GIS,
		parser:    opts.Parser,
		ctx:       ctx,
		cancel:    cancel,
		metrics:   m,
		origin:    opts.Origin,
		gate:      NewGate(opts.Origin),
		ctrl:      NewController(opts.Parameters, opts.Session.SerializeEngine, opts.Session.ResponsePolicy),
		landmarks: cache.NewLandmarkCache(),
		risks:     []core.RiskRecord{},
		started:   make(map[uint64]time.Time),
		cancels:   make(map[uint64]context.CancelFunc),
		observers: opts.Observers,
	}
	s.register()
	s.current.Store(s.buildView())
	return s, nil
}

func (s *Session) register() {
	logged := []dispatcher.Option{dispatcher.Serial(), dispatcher.Logged()}
	quiet := []dispatcher.Option{dispatcher.Serial()}

	s.d.Register(cmdDispatch, s.handleDispatch, logged...)
	s.d.Register(cmdNotifyReady, s.handleNotifyReady, logged...)
	s.d.Register(cmdRelocate, s.handleRelocate, logged...)
	s.d.Register(cmdTick, s.handleTick, quiet...)
	s.d.Register(cmdScrub, s.handleScrub, logged...)
	s.d.Register(cmdRestart, s.handleRestart, logged...)
	s.d.Register(cmdToggle, s.handleToggle, logged...)
	s.d.Register(cmdCommand, s.handleCommand, logged...)
	s.d.Register(cmdParameters, s.handleParameters, logged...)
	s.d.Register(cmdGISDone, s.handleGISDone, logged...)
	s.d.Register(cmdSettled, s.handleSettled, logged...)
	s.d.Register(cmdEngineDone, s.handleEngineDone, logged...)
	s.d.Register(cmdDetectDone, s.handleDetectDone, logged...)
	s.d.Register(cmdShutdown, s.handleShutdown, quiet...)
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Start begins loading the GIS context for the initial origin.
func (s *Session) Start(ctx context.Context) error {
	_, err := s.call(ctx, cmdRelocate, s.Snapshot().Origin)
	return err
}

// Close stops timers, waits for outstanding collaborator calls to return and
// stops the inbox. Outstanding calls are canceled.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.d.Call(ctx, dispatcher.Event{Command: cmdShutdown}); err != nil {
			s.log.Warn("shutdown step failed", "error", err)
		}
		s.cancel()
		s.wg.Wait()
		s.d.Close()
	})
}

// Dispatch requests a run with an optional override. forceDefer queues the
// request even when the gate is ready.
func (s *Session) Dispatch(ctx context.Context, override *core.ParameterOverride, forceDefer bool) (DispatchResult, error) {
	v, err := s.call(ctx, cmdDispatch, dispatchCmd{override: override, forceDefer: forceDefer})
	if err != nil {
		return DispatchResult{}, err
	}
	return v.(DispatchResult), nil
}

// NotifyReady fires the queued request if the gate is ready. It reports
// whether a request was handed to the engine.
func (s *Session) NotifyReady(ctx context.Context) (bool, error) {
	v, err := s.call(ctx, cmdNotifyReady, nil)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Relocate moves the ambient origin: the gate reloads, history and risks are
// cleared and outstanding engine replies are discarded.
func (s *Session) Relocate(ctx context.Context, origin core.Origin) error {
	_, err := s.call(ctx, cmdRelocate, origin)
	return err
}

// SetParameters applies an override to the current parameters without
// dispatching a run.
func (s *Session) SetParameters(ctx context.Context, override core.ParameterOverride) (core.SimulationParameters, error) {
	v, err := s.call(ctx, cmdParameters, override)
	if err != nil {
		return core.SimulationParameters{}, err
	}
	return v.(core.SimulationParameters), nil
}

// Tick advances playback by one frame, as the clock does.
func (s *Session) Tick(ctx context.Context) (core.PlaybackState, error) {
	return s.playback(ctx, cmdTick, nil)
}

// Scrub jumps to a frame and pauses.
func (s *Session) Scrub(ctx context.Context, index int) (core.PlaybackState, error) {
	return s.playback(ctx, cmdScrub, index)
}

// Restart rewinds to frame 0 and pauses.
func (s *Session) Restart(ctx context.Context) (core.PlaybackState, error) {
	return s.playback(ctx, cmdRestart, nil)
}

// Toggle pauses or resumes playback.
func (s *Session) Toggle(ctx context.Context) (core.PlaybackState, error) {
	return s.playback(ctx, cmdToggle, nil)
}

func (s *Session) playback(ctx context.Context, cmd string, payload any) (core.PlaybackState, error) {
	v, err := s.call(ctx, cmd, payload)
	if err != nil {
		return core.PlaybackState{}, err
	}
	return v.(core.PlaybackState), nil
}

// ApplyCommand sends prompt to the command parser with the current risk
// report and applies the reply.
func (s *Session) ApplyCommand(ctx context.Context, prompt string) (CommandResult, error) {
	if s.parser == nil {
		return CommandResult{}, ErrNoParser
	}
	cmd, err := s.parser.Parse(ctx, prompt, s.Snapshot().Risks)
	if err != nil {
		return CommandResult{}, err
	}
	return s.Apply(ctx, cmd)
}

// Apply executes an already parsed command.
func (s *Session) Apply(ctx context.Context, cmd command.Command) (CommandResult, error) {
	v, err := s.call(ctx, cmdCommand, cmd)
	if err != nil {
		return CommandResult{}, err
	}
	return v.(CommandResult), nil
}

// Snapshot returns the state published by the last inbox step.
func (s *Session) Snapshot() Snapshot {
	return s.current.Load().snap
}

// LogContext reports the published state for log records.
func (s *Session) LogContext() (logging.SessionContext, bool) {
	snap := s.Snapshot()
	return logging.SessionContext{
		ID:       snap.SessionID,
		Gate:     string(snap.Gate),
		Epoch:    snap.Epoch,
		Request:  string(snap.Request.State),
		Sequence: snap.Request.Sequence,
		Lat:      snap.Origin.Lat,
		Lon:      snap.Origin.Lon,
	}, true
}

// VisibleFrame returns the frame under the playback cursor.
func (s *Session) VisibleFrame() core.Frame {
	v := s.current.Load()
	return VisibleFrame(v.history, v.snap.Playback.FrameIndex)
}

// History returns the installed history.
func (s *Session) History() core.History {
	return s.current.Load().history
}

// Landmarks returns the landmark inventory for the current origin.
func (s *Session) Landmarks() []core.Landmark {
	return s.current.Load().landmarks
}

// Risks returns the current risk report narrowed by f.
func (s *Session) Risks(f impact.Filter) []core.RiskRecord {
	return f.Apply(s.Snapshot().Risks)
}

// InboxLen returns the number of events waiting on the inbox.
func (s *Session) InboxLen() int {
	return s.d.InboxLen()
}

func (s *Session) call(ctx context.Context, cmd string, payload any) (any, error) {
	v, err := s.d.Call(ctx, dispatcher.Event{Command: cmd, Payload: payload})
	if errors.Is(err, dispatcher.ErrClosed) {
		return nil, ErrClosed
	}
	return v, err
}

// post enqueues an internal event from a worker goroutine.
func (s *Session) post(cmd string, payload any) {
	if _, err := s.d.Dispatch(dispatcher.Event{Command: cmd, Payload: payload}); err != nil {
		s.log.Debug("event dropped", "command", cmd, "error", err)
	}
}

// Handlers below run on the inbox goroutine only.

func (s *Session) handleDispatch(e dispatcher.Event) (any, error) {
	if s.closed {
		return nil, ErrClosed
	}
	p := e.Payload.(dispatchCmd)
	res := s.dispatch(p.override, p.forceDefer)
	s.publish()
	return res, nil
}

func (s *Session) dispatch(override *core.ParameterOverride, forceDefer bool) DispatchResult {
	req, decision := s.ctrl.Dispatch(s.origin, s.gate.Ready(), override, forceDefer)
	s.metrics.dispatch(decision)
	s.log.Info("simulation dispatched",
		"sequence", req.Sequence,
		"decision", decision,
		"gate", s.gate.State(),
		"origin", fmt.Sprintf("%.5f,%.5f", req.Origin.Lat, req.Origin.Lon))
	if decision == DecisionExecute {
		s.execute(req)
	}
	return DispatchResult{Request: req, Decision: decision}
}

func (s *Session) execute(req core.SimulationRequest) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.started[req.Sequence] = time.Now()
	s.cancels[req.Sequence] = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		history, err := s.engine.Simulate(ctx, req)
		s.post(cmdEngineDone, engineResult{req: req, history: history, err: err})
	}()
}

func (s *Session) handleNotifyReady(dispatcher.Event) (any, error) {
	if s.closed {
		return false, ErrClosed
	}
	if !s.gate.Ready() {
		return false, nil
	}
	fired := s.notifyReady()
	s.publish()
	return fired, nil
}

func (s *Session) notifyReady() bool {
	req, ok := s.ctrl.NotifyReady()
	if !ok {
		return false
	}
	s.log.Info("queued simulation released", "sequence", req.Sequence)
	s.execute(req)
	return true
}

func (s *Session) handleRelocate(e dispatcher.Event) (any, error) {
	if s.closed {
		return nil, ErrClosed
	}
	s.relocate(e.Payload.(core.Origin))
	s.syncTicker()
	s.publish()
	return nil, nil
}

func (s *Session) relocate(origin core.Origin) {
	s.origin = origin
	epoch := s.gate.Reset(origin)
	s.stopSettle()

	p := s.ctrl.Parameters()
	p.OriginLat, p.OriginLon = origin.Lat, origin.Lon
	s.ctrl.SetParameters(p)

	s.landmarks.Reset()
	s.play.Clear()
	s.risks = []core.RiskRecord{}
	s.risksPending = false
	s.gisErr = nil
	if seqs := s.ctrl.Abandon(); len(seqs) > 0 {
		for _, seq := range seqs {
			if cancel := s.cancels[seq]; cancel != nil {
				cancel()
			}
		}
		s.log.Info("outstanding runs abandoned by relocation", "count", len(seqs))
	}

	box := geo.QueryBox(origin, p.DurationHours)
	s.log.Info("loading landmarks", "epoch", epoch, "box", box)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		landmarks, err := s.gis.Landmarks(s.ctx, box)
		s.post(cmdGISDone, gisResult{epoch: epoch, origin: origin, landmarks: landmarks, err: err})
	}()
}

func (s *Session) handleParameters(e dispatcher.Event) (any, error) {
	if s.closed {
		return nil, ErrClosed
	}
	o := e.Payload.(core.ParameterOverride)
	s.ctrl.SetParameters(o.Apply(s.ctrl.Parameters()))
	s.publish()
	return s.ctrl.Parameters(), nil
}

func (s *Session) handleGISDone(e dispatcher.Event) (any, error) {
	if s.closed {
		return nil, nil
	}
	r := e.Payload.(gisResult)
	if r.err != nil {
		if s.gate.Failed(r.epoch) {
			s.gisErr = r.err
			s.log.Warn("landmark load failed", "epoch", r.epoch, "error", r.err)
			s.publish()
		}
		return nil, nil
	}
	if !s.gate.Loaded(r.epoch) {
		s.log.Debug("stale landmark response discarded", "epoch", r.epoch, "current", s.gate.Epoch())
		return nil, nil
	}

	s.landmarks.Replace(r.origin, r.landmarks)
	s.gisErr = nil
	s.log.Info("landmarks loaded", "epoch", r.epoch, "count", s.landmarks.Len())

	epoch := r.epoch
	s.settle = time.AfterFunc(s.cfg.SettleDelay, func() {
		s.post(cmdSettled, epoch)
	})
	s.publish()
	return nil, nil
}

func (s *Session) stopSettle() {
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
}

func (s *Session) handleSettled(e dispatcher.Event) (any, error) {
	if s.closed {
		return nil, nil
	}
	if !s.gate.Settled(e.Payload.(uint64)) {
		return nil, nil
	}
	s.settle = nil
	s.log.Info("spatial context ready", "epoch", s.gate.Epoch())
	s.notifyReady()
	s.publish()
	return nil, nil
}

func (s *Session) handleEngineDone(e dispatcher.Event) (any, error) {
	if s.closed {
		return nil, nil
	}
	r := e.Payload.(engineResult)
	seq := r.req.Sequence
	startedAt := s.started[seq]
	delete(s.started, seq)
	if cancel := s.cancels[seq]; cancel != nil {
		cancel()
		delete(s.cancels, seq)
	}
	ready := s.gate.Ready()

	var next *core.SimulationRequest
	if r.err != nil {
		var stale bool
		stale, next = s.ctrl.Fail(seq, r.err, ready)
		if stale {
			s.metrics.staleResponse(s.ctrl.Policy())
			s.log.Info("stale simulation failure discarded", "sequence", seq, "installed", s.ctrl.Installed(), "error", r.err)
		} else {
			s.metrics.failed.Add(context.Background(), 1)
			s.log.Warn("simulation failed", "sequence", seq, "error", r.err)
			failure := RunFailure{SessionID: s.id, Request: r.req, Err: r.err, StartedAt: startedAt, FailedAt: time.Now()}
			for _, o := range s.observers {
				o.RunFailed(failure)
			}
		}
	} else {
		var install bool
		install, next = s.ctrl.Complete(seq, ready)
		if install {
			s.install(r.req, r.history, startedAt)
		} else {
			s.metrics.staleResponse(s.ctrl.Policy())
			s.log.Info("stale simulation response discarded", "sequence", seq, "installed", s.ctrl.Installed())
		}
	}
	if next != nil {
		s.log.Info("parked simulation released", "sequence", next.Sequence)
		s.execute(*next)
	}

	s.syncTicker()
	s.publish()
	return nil, nil
}

func (s *Session) install(req core.SimulationRequest, history core.History, startedAt time.Time) {
	if history == nil {
		history = core.History{}
	}
	s.play.Load(history)
	s.metrics.completed.Add(context.Background(), 1)
	s.log.Info("simulation installed", "sequence", req.Sequence, "frames", len(history), "points", history.Points())

	landmarks := s.landmarks.All()
	if len(history) == 0 || len(landmarks) == 0 {
		s.risks = []core.RiskRecord{}
		s.risksPending = false
		s.reportRun(req, startedAt)
		return
	}

	s.risks = []core.RiskRecord{}
	s.risksPending = true
	s.detecting, s.detectStart = req, startedAt
	seq, epoch := req.Sequence, s.gate.Epoch()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		risks := impact.Detect(history, landmarks)
		s.post(cmdDetectDone, detectResult{seq: seq, epoch: epoch, risks: risks})
	}()
}

func (s *Session) handleDetectDone(e dispatcher.Event) (any, error) {
	if s.closed {
		return nil, nil
	}
	r := e.Payload.(detectResult)
	if r.seq != s.ctrl.Installed() || r.epoch != s.gate.Epoch() || !s.risksPending {
		s.log.Debug("stale risk report discarded", "sequence", r.seq)
		return nil, nil
	}
	s.risks = r.risks
	s.risksPending = false
	s.log.Info("risk report ready", "sequence", r.seq, "assets", len(r.risks))
	s.reportRun(s.detecting, s.detectStart)
	s.publish()
	return nil, nil
}

func (s *Session) reportRun(req core.SimulationRequest, startedAt time.Time) {
	s.metrics.risks.Record(context.Background(), int64(len(s.risks)))
	history := s.play.History()
	report := RunReport{
		SessionID:   s.id,
		Request:     req,
		Frames:      len(history),
		Points:      history.Points(),
		Landmarks:   s.landmarks.Len(),
		Risks:       s.risks,
		Summary:     impact.Summarize(s.risks),
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}
	for _, o := range s.observers {
		o.RunCompleted(report)
	}
}

func (s *Session) handleTick(dispatcher.Event) (any, error) {
	if s.closed {
		return s.play.State(), nil
	}
	if s.play.Tick() {
		s.publish()
	}
	s.syncTicker()
	return s.play.State(), nil
}

func (s *Session) handleScrub(e dispatcher.Event) (any, error) {
	s.play.Scrub(e.Payload.(int))
	return s.afterPlayback()
}

func (s *Session) handleRestart(dispatcher.Event) (any, error) {
	s.play.Restart()
	return s.afterPlayback()
}

func (s *Session) handleToggle(dispatcher.Event) (any, error) {
	s.play.Toggle()
	return s.afterPlayback()
}

func (s *Session) afterPlayback() (any, error) {
	s.syncTicker()
	s.publish()
	return s.play.State(), nil
}

func (s *Session) handleCommand(e dispatcher.Event) (any, error) {
	if s.closed {
		return nil, ErrClosed
	}
	cmd := e.Payload.(command.Command)
	res := CommandResult{Kind: string(cmd.Kind), Answer: cmd.Answer}

	switch cmd.Kind {
	case command.KindAction:
		if len(cmd.Unknown) > 0 {
			s.log.Warn("command carried unrecognized fields", "fields", cmd.Unknown)
			res.Unknown = cmd.Unknown
		}
		override := cmd.Override
		if override.HasOrigin() {
			s.relocate(core.Origin{Lat: *override.OriginLat, Lon: *override.OriginLon})
			res.Relocated = true
		}
		d := s.dispatch(&override, res.Relocated)
		res.Dispatch = &d
		s.syncTicker()
	case command.KindQuery:
		res.Matches = cmd.Filter.Apply(s.risks)
	case command.KindSpecificRoute:
		res.Matches = impact.MatchNames(s.risks, cmd.Names)
	default:
		return nil, fmt.Errorf("unsupported command kind %q", cmd.Kind)
	}

	s.publish()
	return res, nil
}

func (s *Session) handleShutdown(dispatcher.Event) (any, error) {
	s.closed = true
	s.stopSettle()
	s.stopTicker()
	return nil, nil
}

// syncTicker runs the playback clock exactly while playback is playing.
func (s *Session) syncTicker() {
	want := s.play.Playing() && !s.closed
	switch {
	case want && s.tickStop == nil:
		stop := make(chan struct{})
		s.tickStop = stop
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			t := time.NewTicker(s.tick)
			defer t.Stop()
			for {
				select {
				case <-stop:
					return
				case <-s.ctx.Done():
					return
				case <-t.C:
					if _, err := s.d.Dispatch(dispatcher.Event{Command: cmdTick}); err != nil {
						return
					}
				}
			}
		}()
	case !want:
		s.stopTicker()
	}
}

func (s *Session) stopTicker() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}

// publish stores a fresh view and notifies observers.
func (s *Session) publish() {
	v := s.buildView()
	s.current.Store(v)
	for _, o := range s.observers {
		o.StateChanged(v.snap)
	}
}

func (s *Session) buildView() *view {
	status := RequestStatus{
		State:     s.ctrl.State(),
		Installed: s.ctrl.Installed(),
		InFlight:  s.ctrl.InFlight(),
		Abandoned: s.ctrl.Abandoned(),
	}
	if latest := s.ctrl.Latest(); latest != nil {
		status.Sequence = latest.Sequence
		status.ID = latest.ID.String()
	}
	if err := s.ctrl.Err(); err != nil {
		status.Error = err.Error()
	}

	pb := s.play.State()
	snap := Snapshot{
		SessionID:    s.id.String(),
		Origin:       s.origin,
		Gate:         s.gate.State(),
		Epoch:        s.gate.Epoch(),
		Parameters:   s.ctrl.Parameters(),
		Request:      status,
		Queue:        s.ctrl.Queue(),
		Playback:     pb,
		Frames:       s.play.Len(),
		ElapsedHours: core.ElapsedHours(pb.FrameIndex),
		Landmarks:    s.landmarks.Len(),
		Risks:        s.risks,
		RisksPending: s.risksPending,
		UpdatedAt:    time.Now(),
	}
	if s.gisErr != nil {
		snap.GISError = s.gisErr.Error()
	}
	return &view{snap: snap, history: s.play.History(), landmarks: s.landmarks.All()}
}
