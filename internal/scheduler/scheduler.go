// Package scheduler tracks the per-mesh computation state of one character,
// runs the heavy per-vertex passes on background goroutines and hands their
// results back to the foreground tick.
package scheduler

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/bellysculpt/internal/logger"
	"github.com/Faultbox/bellysculpt/internal/mesh"
)

// State is the computation state of one mesh.
type State int

const (
	Uninitialized State = iota
	BindPoseComputing
	Ready
	ShapeComputing
	Ignored // no belly vertices, never computed again until a fresh start
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case BindPoseComputing:
		return "BindPoseComputing"
	case Ready:
		return "Ready"
	case ShapeComputing:
		return "ShapeComputing"
	case Ignored:
		return "Ignored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Work runs on a worker goroutine. It must not touch host objects or mesh
// records; it returns the function that applies its result on the
// foreground, or nil when there is nothing to apply.
type Work func() (apply func())

type task struct {
	state    State
	inFlight bool
	gen      int  // generation of the in-flight task
	rerun    bool // a dispatch was refused while in flight
}

type result struct {
	key   mesh.Key
	gen   int
	apply func()
}

// Scheduler is owned by one character. Every method except the worker side
// must be called from the foreground.
type Scheduler struct {
	tasks map[mesh.Key]*task
	gen   int

	mu      sync.Mutex
	results []result
	wg      sync.WaitGroup
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{tasks: make(map[mesh.Key]*task)}
}

func (s *Scheduler) task(key mesh.Key) *task {
	t, ok := s.tasks[key]
	if !ok {
		t = &task{}
		s.tasks[key] = t
	}
	return t
}

// State returns the state of key. Unknown meshes are Uninitialized.
func (s *Scheduler) State(key mesh.Key) State {
	if t, ok := s.tasks[key]; ok {
		return t.state
	}
	return Uninitialized
}

// SetState forces the state of key, e.g. to Ignored after region selection.
func (s *Scheduler) SetState(key mesh.Key, st State) {
	s.task(key).state = st
}

// InFlight reports whether key has a worker running or a result waiting.
func (s *Scheduler) InFlight(key mesh.Key) bool {
	t, ok := s.tasks[key]
	return ok && t.inFlight
}

// Busy reports whether any mesh has a task in flight.
func (s *Scheduler) Busy() bool {
	for _, t := range s.tasks {
		if t.inFlight {
			return true
		}
	}
	return false
}

// Dispatch moves key into state and starts work on a new goroutine. At most
// one task per key is in flight: while one is, Dispatch refuses, remembers
// that a rerun was requested and returns false.
func (s *Scheduler) Dispatch(key mesh.Key, state State, work Work) bool {
	t := s.task(key)
	if t.inFlight {
		t.rerun = true
		return false
	}
	t.state = state
	t.inFlight = true
	t.gen = s.gen

	gen := s.gen
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		apply := s.run(key, work)
		s.mu.Lock()
		s.results = append(s.results, result{key: key, gen: gen, apply: apply})
		s.mu.Unlock()
	}()
	return true
}

// run executes work, turning a panic into an empty result so the mesh's
// in-flight marker is still cleared on the next tick.
func (s *Scheduler) run(key mesh.Key, work Work) (apply func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panicked", zap.Stringer("mesh", key), zap.Any("panic", r))
			apply = nil
		}
	}()
	return work()
}

// Tick applies every finished result on the calling goroutine. The mesh
// leaves its computing state for Ready before the result is applied, so an
// apply function may set another state or dispatch the next pass. Results
// from before a Reset are dropped, which frees their key. It returns the
// keys whose dispatch was refused while their task ran, so the caller can
// start them again with current parameters.
func (s *Scheduler) Tick() []mesh.Key {
	s.mu.Lock()
	results := s.results
	s.results = nil
	s.mu.Unlock()

	var rerun []mesh.Key
	for _, r := range results {
		if r.gen != s.gen {
			if s.dropStale(r) {
				rerun = append(rerun, r.key)
			}
			continue
		}
		t := s.task(r.key)
		t.inFlight = false
		if t.state == BindPoseComputing || t.state == ShapeComputing {
			t.state = Ready
		}
		again := t.rerun
		t.rerun = false
		if r.apply != nil {
			r.apply()
		}
		if again && !s.InFlight(r.key) {
			rerun = append(rerun, r.key)
		}
	}
	return rerun
}

// dropStale clears the in-flight marker a Reset left behind for r and
// reports whether a dispatch was refused meanwhile.
func (s *Scheduler) dropStale(r result) bool {
	t, ok := s.tasks[r.key]
	if !ok || !t.inFlight || t.gen != r.gen {
		return false
	}
	t.inFlight = false
	if t.rerun {
		t.rerun = false
		return true
	}
	if t.state == Uninitialized {
		delete(s.tasks, r.key)
	}
	return false
}

// Defer records that key needs another pass once its in-flight task has
// been applied. It reports false, recording nothing, when key is idle.
func (s *Scheduler) Defer(key mesh.Key) bool {
	t, ok := s.tasks[key]
	if !ok || !t.inFlight {
		return false
	}
	t.rerun = true
	return true
}

// Forget drops the state of key. A result still in flight for it is
// applied normally when it arrives.
func (s *Scheduler) Forget(key mesh.Key) {
	if t, ok := s.tasks[key]; ok && t.inFlight {
		t.state = Uninitialized
		t.rerun = false
		return
	}
	delete(s.tasks, key)
}

// Reset forgets every mesh. Results of tasks started before Reset are
// discarded when they arrive; until then their key stays in flight and
// Dispatch refuses it.
func (s *Scheduler) Reset() {
	s.gen++
	for key, t := range s.tasks {
		if t.inFlight {
			t.state = Uninitialized
			t.rerun = false
			continue
		}
		delete(s.tasks, key)
	}
}

// Wait blocks until every started worker has finished. Results still need
// a Tick to be applied.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Keys returns every mesh the scheduler knows about.
func (s *Scheduler) Keys() []mesh.Key {
	keys := make([]mesh.Key, 0, len(s.tasks))
	for k := range s.tasks {
		keys = append(keys, k)
	}
	return keys
}
