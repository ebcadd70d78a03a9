// Package alert implements the gateway's Alert Engine (C7): declarative
// threshold/rate-of-change/missing-data rules evaluated against the
// Pipeline's reading stream, deduplicated per (device_id, rule_id), and
// dispatched to an external sink with retry and a dead-letter counter.
package alert

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smartsensor/gateway/internal/model"
)

// Logger is the narrow logging surface the engine depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceTagger resolves a device's tags for scope matching. Satisfied
// by *internal/registry.Registry's existing Snapshot method.
type DeviceTagger interface {
	Snapshot(deviceID string) (*model.Device, error)
}

// Config controls hold-down/reminder defaults and dispatch retry
// behavior.
type Config struct {
	HoldDownDefault     time.Duration
	MaxReminderInterval time.Duration
	DispatchQueueSize   int
	RetryAttempts       int
	RetryBackoffMin     time.Duration
	RetryBackoffMax     time.Duration
}

// Engine evaluates Readings against a loaded rule set and dispatches
// Alert transitions to a Sink. It implements pipeline.AlertEvaluator's
// Evaluate(model.Reading) method.
type Engine struct {
	rules    []Rule
	sink     Sink
	registry DeviceTagger
	cfg      Config
	logger   Logger

	mu        sync.Mutex
	states    map[string]*ruleState
	anomalies map[string]AnomalyPredicate

	dispatchCh chan model.Alert
	closeCh    chan struct{}
	done       chan struct{}

	deadLetters atomic.Uint64
}

// New builds an Engine and starts its dispatch worker. sink may be a
// WebhookSink, MQTTSink, or any other Sink implementation; registry may
// be nil if no rule uses tag-based scoping.
func New(rules []Rule, sink Sink, registry DeviceTagger, cfg Config) *Engine {
	if cfg.HoldDownDefault <= 0 {
		cfg.HoldDownDefault = 60 * time.Second
	}
	if cfg.DispatchQueueSize <= 0 {
		cfg.DispatchQueueSize = 1024
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.RetryBackoffMin <= 0 {
		cfg.RetryBackoffMin = 200 * time.Millisecond
	}
	if cfg.RetryBackoffMax <= 0 {
		cfg.RetryBackoffMax = 10 * time.Second
	}

	e := &Engine{
		rules:      rules,
		sink:       sink,
		registry:   registry,
		cfg:        cfg,
		logger:     noopLogger{},
		states:     make(map[string]*ruleState),
		anomalies:  make(map[string]AnomalyPredicate),
		dispatchCh: make(chan model.Alert, cfg.DispatchQueueSize),
		closeCh:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	go e.dispatchLoop()
	return e
}

func (e *Engine) SetLogger(l Logger) {
	if l != nil {
		e.logger = l
	}
}

// RegisterAnomalyPredicate wires a model-backed detector to every rule
// of kind "anomaly" with the given rule ID.
func (e *Engine) RegisterAnomalyPredicate(ruleID string, p AnomalyPredicate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.anomalies[ruleID] = p
}

// Evaluate matches r against every rule in scope and advances that
// rule's (device, rule) state machine, implementing
// pipeline.AlertEvaluator. It never blocks on dispatch: sink delivery
// happens on a separate goroutine via a bounded queue.
func (e *Engine) Evaluate(r model.Reading) {
	var tags []string
	if e.registry != nil {
		if d, err := e.registry.Snapshot(r.DeviceID); err == nil {
			tags = d.Tags
		}
	}

	for _, rule := range e.rules {
		if rule.Sensor != string(r.SensorKind) {
			continue
		}
		if rule.Position != "" && rule.Position != string(r.Position) {
			continue
		}
		if !rule.Scope.Matches(r.DeviceID, tags) {
			continue
		}
		e.evaluateRule(rule, r)
	}
}

func (e *Engine) evaluateRule(rule Rule, r model.Reading) {
	st := e.stateFor(r.DeviceID, rule.ID)

	st.mu.Lock()
	defer st.mu.Unlock()

	var result evalResult
	switch rule.Kind {
	case PredicateMissingData:
		st.stopMissingTimer()
		st.missingTimer = time.AfterFunc(rule.ForDuration, func() { e.fireMissingData(rule, r.DeviceID) })
		result = evalResult{fired: false, value: r.Value}
	case PredicateAnomaly:
		st.appendHistory(r)
		e.mu.Lock()
		p, ok := e.anomalies[rule.ID]
		e.mu.Unlock()
		if !ok {
			e.logger.Warn("anomaly rule has no registered predicate, skipping", "rule_id", rule.ID)
			st.hasLast, st.lastValue, st.lastTimestamp = true, r.Value, r.IngestTimestamp
			return
		}
		result = evalResult{fired: p.Evaluate(r, st.history), value: r.Value}
	default:
		result = evaluate(rule, st, r)
	}

	st.hasLast = true
	st.lastValue = r.Value
	st.lastTimestamp = r.IngestTimestamp

	e.applyTransition(rule, r.DeviceID, st, result, r.IngestTimestamp)
}

// fireMissingData is the timer-wheel callback: no frame arrived within
// ForDuration of the last one, so the predicate is treated as true.
// It reschedules itself every ForDuration while the outage continues;
// each firing re-dispatches the still-open alert only once the reminder
// interval (the rule's MaxReminderInterval, else the engine default) has
// passed since the last dispatch, and never when that interval is zero.
func (e *Engine) fireMissingData(rule Rule, deviceID string) {
	st := e.stateFor(deviceID, rule.ID)

	st.mu.Lock()
	now := time.Now()
	e.applyTransition(rule, deviceID, st, evalResult{fired: true, value: 0}, now)
	st.missingTimer = time.AfterFunc(rule.ForDuration, func() { e.fireMissingData(rule, deviceID) })
	st.mu.Unlock()
}

// applyTransition drives the (device, rule) firing/resolved state
// machine. Callers must hold st.mu.
func (e *Engine) applyTransition(rule Rule, deviceID string, st *ruleState, result evalResult, now time.Time) {
	if result.fired {
		st.falseSinceSet = false
		if st.alert == nil {
			a := model.Alert{
				AlertID:   uuid.New().String(),
				DeviceID:  deviceID,
				RuleID:    rule.ID,
				Severity:  model.AlertSeverity(rule.Severity),
				OpenedAt:  now,
				LastValue: result.value,
				Threshold: rule.Threshold,
				State:     model.AlertStateFiring,
			}
			st.alert = &a
			st.lastDispatchAt = now
			e.enqueueDispatch(a)
			return
		}

		st.alert.LastValue = result.value
		reminder := rule.MaxReminderInterval
		if reminder <= 0 {
			reminder = e.cfg.MaxReminderInterval
		}
		if reminder > 0 && now.Sub(st.lastDispatchAt) >= reminder {
			st.lastDispatchAt = now
			e.enqueueDispatch(*st.alert)
		}
		return
	}

	if st.alert == nil {
		return
	}
	if !st.falseSinceSet {
		st.falseSinceSet = true
		st.falseSince = now
	}

	holdDown := rule.HoldDown
	if holdDown <= 0 {
		holdDown = e.cfg.HoldDownDefault
	}
	if now.Sub(st.falseSince) < holdDown {
		return
	}

	closedAt := now
	st.alert.State = model.AlertStateResolved
	st.alert.ClosedAt = &closedAt
	resolved := *st.alert
	e.enqueueDispatch(resolved)
	st.alert = nil
	st.falseSinceSet = false
}

func (e *Engine) stateFor(deviceID, ruleID string) *ruleState {
	key := ruleStateKey(deviceID, ruleID)

	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[key]
	if !ok {
		st = newRuleState()
		e.states[key] = st
	}
	return st
}

func ruleStateKey(deviceID, ruleID string) string {
	return deviceID + "|" + ruleID
}

// enqueueDispatch offers a to the dispatch worker without blocking the
// caller (the pipeline shard's worker). A full queue counts as a
// dead-lettered handoff: the engine would rather drop a dispatch than
// stall ingest.
func (e *Engine) enqueueDispatch(a model.Alert) {
	select {
	case e.dispatchCh <- a:
	default:
		e.deadLetters.Add(1)
		e.logger.Warn("alert dispatch queue full, dead-lettering", "alert_id", a.AlertID, "rule_id", a.RuleID)
	}
}

func (e *Engine) dispatchLoop() {
	defer close(e.done)
	for {
		select {
		case a := <-e.dispatchCh:
			e.dispatchWithRetry(a)
		case <-e.closeCh:
			// drain whatever is already queued before exiting
			for {
				select {
				case a := <-e.dispatchCh:
					e.dispatchWithRetry(a)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) dispatchWithRetry(a model.Alert) {
	backoff := e.cfg.RetryBackoffMin
	for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := e.sink.Emit(ctx, a)
		cancel()
		if err == nil {
			return
		}
		if attempt == e.cfg.RetryAttempts {
			e.deadLetters.Add(1)
			e.logger.Error("alert dispatch exhausted retries, dead-lettering",
				"alert_id", a.AlertID, "rule_id", a.RuleID, "error", fmt.Errorf("%w: %v", ErrDeadLettered, err))
			return
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > e.cfg.RetryBackoffMax {
			backoff = e.cfg.RetryBackoffMax
		}
	}
}

// DeadLetterCount reports dispatches that were ultimately dropped,
// for a dead-letter / dispatch-failure metric.
func (e *Engine) DeadLetterCount() uint64 {
	return e.deadLetters.Load()
}

// OpenAlerts returns a snapshot of every currently firing alert, for
// GET /v1/admin/alerts and the alerts_open{severity} metric.
func (e *Engine) OpenAlerts() []model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var open []model.Alert
	for _, st := range e.states {
		st.mu.Lock()
		if st.alert != nil {
			open = append(open, *st.alert)
		}
		st.mu.Unlock()
	}
	return open
}

// OpenAlertCount reports how many alerts are currently firing, for the
// alerts_open metric without the caller needing model.Alert in scope.
func (e *Engine) OpenAlertCount() int {
	return len(e.OpenAlerts())
}

// Close stops the dispatch worker, waiting for it to drain whatever was
// already queued (subject to ctx), and stops every pending missing_data
// timer.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	for _, st := range e.states {
		st.mu.Lock()
		st.stopMissingTimer()
		st.mu.Unlock()
	}
	e.mu.Unlock()

	close(e.closeCh)
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
