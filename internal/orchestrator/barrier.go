package orchestrator

import "sync"

// Barrier is a one-shot rendezvous point: every participant calls Arrive and
// then Wait, and none of them proceeds until exactly n participants have
// arrived. The Run Shepherd uses this to line up every Driver and the
// Monitor at the same event-bus subscription point before any of them can
// publish, so a fast Driver can never complete and publish
// CompletedTaskExecution before the Monitor has started listening for it.
type Barrier struct {
	wg sync.WaitGroup
}

// NewBarrier returns a Barrier that releases once n participants arrive.
func NewBarrier(n int) *Barrier {
	b := &Barrier{}
	b.wg.Add(n)
	return b
}

// Arrive marks this participant as having reached the barrier.
func (b *Barrier) Arrive() {
	b.wg.Done()
}

// Wait blocks until every participant has arrived.
func (b *Barrier) Wait() {
	b.wg.Wait()
}

// ArriveAndWait is the common case: mark arrival, then block for the rest.
func (b *Barrier) ArriveAndWait() {
	b.Arrive()
	b.Wait()
}
