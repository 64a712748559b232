package gesture

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kidandcat-derived/macroengine/internal/keys"
	"go.uber.org/zap"
)

// queueCapacity is the ingest queue's bound (spec.md §4.2: "capacity
// >=100; on overflow, drop the newest and log an error").
const queueCapacity = 128

// finalizeInterval is the periodic finalization tick. Spec.md §9 leaves
// this open between 20ms and 50ms; 20ms is chosen here.
const finalizeInterval = 20 * time.Millisecond

type rawKind int

const (
	rawKeyDown rawKind = iota
	rawKeyUp
	rawTick
)

type rawEvent struct {
	kind rawKind
	key  keys.Input
	at   time.Time
}

// Listener receives a resolved gesture. Errors returned are logged and
// otherwise ignored; a panic inside a listener is recovered so that one
// broken subscriber cannot affect emission to any other.
type Listener func(Event) error

// Orchestrator owns one Machine per input key, ingests raw hook events
// through a single bounded FIFO queue, and fans resolved gestures out
// to subscribers. See spec.md §4.2.
type Orchestrator struct {
	logger *zap.Logger
	now    func() time.Time

	machines map[keys.Input]*Machine

	queue chan rawEvent
	done  chan struct{}
	wg    sync.WaitGroup

	central Listener

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int

	stopped atomic.Bool
	started atomic.Bool
}

// New builds an orchestrator with one machine per known input key and
// the given mandatory central subscriber. central may be nil.
func New(timing TimingConfig, central Listener, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		logger:    logger,
		now:       time.Now,
		machines:  make(map[keys.Input]*Machine, len(keys.AllInputs())),
		queue:     make(chan rawEvent, queueCapacity),
		done:      make(chan struct{}),
		central:   central,
		listeners: make(map[int]Listener),
	}
	for _, k := range keys.AllInputs() {
		o.machines[k] = NewMachine(k, timing)
	}
	return o
}

// SetTiming updates every machine's classification thresholds, used on
// profile hot-reload.
func (o *Orchestrator) SetTiming(timing TimingConfig) {
	for _, m := range o.machines {
		m.SetTiming(timing)
	}
}

// Start launches the single ingest worker and the periodic finalization
// timer. Calling Start more than once is a no-op.
func (o *Orchestrator) Start() {
	if !o.started.CompareAndSwap(false, true) {
		return
	}
	o.wg.Add(2)
	go o.processLoop()
	go o.tickLoop()
}

func (o *Orchestrator) tickLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(finalizeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.done:
			return
		case t := <-ticker.C:
			if o.stopped.Load() {
				continue
			}
			select {
			case o.queue <- rawEvent{kind: rawTick, at: t}:
			default:
				// A missed tick just means finalization runs on the
				// next one; no data is lost.
			}
		}
	}
}

func (o *Orchestrator) processLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			return
		case ev := <-o.queue:
			o.dispatch(ev)
		}
	}
}

func (o *Orchestrator) dispatch(ev rawEvent) {
	if o.stopped.Load() {
		return
	}
	switch ev.kind {
	case rawTick:
		for _, m := range o.machines {
			if e := m.CheckFinalize(ev.at); e != nil {
				o.emit(*e)
			}
		}
	case rawKeyDown:
		m, ok := o.machines[ev.key]
		if !ok {
			return // unknown input key: silently ignored (spec.md §7)
		}
		m.HandleKeyDown(ev.at)
	case rawKeyUp:
		m, ok := o.machines[ev.key]
		if !ok {
			return
		}
		if e := m.HandleKeyUp(ev.at); e != nil {
			o.emit(*e)
		}
	}
}

// ingest pushes a raw event onto the FIFO queue, dropping the newest
// event and logging an error if the queue is full (spec.md §7).
func (o *Orchestrator) ingest(kind rawKind, key keys.Input) {
	if o.stopped.Load() {
		return
	}
	ev := rawEvent{kind: kind, key: key, at: o.now()}
	select {
	case o.queue <- ev:
	default:
		o.logger.Error("gesture: ingest queue overflow, dropping event",
			zap.String("key", string(key)), zap.Int("kind", int(kind)))
	}
}

// HandleKeyDown ingests a physical key-down event.
func (o *Orchestrator) HandleKeyDown(key keys.Input) { o.ingest(rawKeyDown, key) }

// HandleKeyUp ingests a physical key-up event.
func (o *Orchestrator) HandleKeyUp(key keys.Input) { o.ingest(rawKeyUp, key) }

// HandleMouseDown ingests a pointer button press. Mouse buttons share
// the input-key enumeration and gesture machinery with keyboard keys.
func (o *Orchestrator) HandleMouseDown(button keys.Input) { o.ingest(rawKeyDown, button) }

// HandleMouseUp ingests a pointer button release.
func (o *Orchestrator) HandleMouseUp(button keys.Input) { o.ingest(rawKeyUp, button) }

// emit posts a resolved gesture to the central subscriber first, then
// every additional subscriber, in unspecified order among the
// additional set (spec.md §4.2). By the time emit runs, the source
// machine has already reset its own state, so re-entrant calls back
// into the orchestrator from within a listener observe a clean machine.
func (o *Orchestrator) emit(e Event) {
	if o.central != nil {
		o.safeCall(o.central, e)
	}
	o.listenersMu.RLock()
	snapshot := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		snapshot = append(snapshot, l)
	}
	o.listenersMu.RUnlock()
	for _, l := range snapshot {
		o.safeCall(l, e)
	}
}

func (o *Orchestrator) safeCall(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("gesture: listener panicked", zap.Any("recover", r))
		}
	}()
	if err := l(e); err != nil {
		o.logger.Warn("gesture: listener returned error", zap.Error(err))
	}
}

// OnGesture registers an additional subscriber and returns a handle
// usable with OffGesture.
func (o *Orchestrator) OnGesture(l Listener) int {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	return id
}

// OffGesture removes a subscriber previously added with OnGesture.
func (o *Orchestrator) OffGesture(id int) {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	delete(o.listeners, id)
}

// Destroy stops ingest and the finalization timer, resets every
// machine, and clears all subscribers. Idempotent: a second call is a
// no-op and never re-emits.
func (o *Orchestrator) Destroy() {
	if !o.stopped.CompareAndSwap(false, true) {
		return
	}
	if o.started.Load() {
		close(o.done)
		o.wg.Wait()
	}
	for _, m := range o.machines {
		m.Reset()
	}
	o.listenersMu.Lock()
	o.listeners = make(map[int]Listener)
	o.listenersMu.Unlock()
	o.central = nil
}
