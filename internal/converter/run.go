package converter

import (
	"context"
	"sync"
)

// Run is a conversion or preview executing in the background.
//
// Events delivers every log line, progress checkpoint and state transition in the order they
// were produced, then the Result, then closes. It must be drained: a run whose events are never
// read keeps one goroutine alive until they are.
type Run struct {
	ID     string
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	state  State
	stage  string
	result Result
}

func newRun(id string, cancel context.CancelFunc) *Run {
	r := &Run{
		ID:     id,
		cancel: cancel,
		events: make(chan Event),
		done:   make(chan struct{}),
		state:  Idle,
	}
	r.cond = sync.NewCond(&r.mu)

	go r.pump()

	return r
}

// Events returns the event stream of the run.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Cancel asks the run to stop. The running command is killed and no further stage starts.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the run is over and returns its result.
func (r *Run) Wait() Result {
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.result
}

// Done is closed when the run is over.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// State returns the current state and stage of the run.
func (r *Run) State() (State, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state, r.stage
}

func (r *Run) Log(line string) {
	r.push(Event{Kind: LogEvent, Line: line})
}

func (r *Run) Progress(percent float64) {
	r.push(Event{Kind: ProgressEvent, Percent: percent})
}

func (r *Run) setState(state State, stage string, index int) {
	r.mu.Lock()
	r.state = state
	r.stage = stage
	r.mu.Unlock()

	r.push(Event{Kind: StateEvent, State: state, Stage: stage, Index: index})
}

// finish records the result, queues it as the last event and releases Wait.
func (r *Run) finish(res Result) {
	r.mu.Lock()
	r.state = res.State
	r.stage = ""
	r.result = res
	r.queue = append(r.queue, Event{Kind: StateEvent, State: res.State, Index: -1})
	r.queue = append(r.queue, Event{Kind: ResultEvent, State: res.State, Index: -1, Result: &res})
	r.closed = true
	r.cond.Signal()
	r.mu.Unlock()

	close(r.done)
}

func (r *Run) push(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.queue = append(r.queue, ev)
	r.cond.Signal()
}

// pump moves queued events to the events channel so the producer never waits for the consumer.
func (r *Run) pump() {
	defer close(r.events)

	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}

		if len(r.queue) == 0 {
			r.mu.Unlock()

			return
		}

		ev := r.queue[0]
		r.queue[0] = Event{}
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.events <- ev
	}
}

// runSink lets a Run receive state transitions through the Sink interface.
type runSink struct {
	*Run
}

func (s runSink) State(state State, stage string, index int) {
	s.setState(state, stage, index)
}

var _ Sink = runSink{}
