package jobqueue

import (
	"testing"
	"time"
)

func TestWorkersStopOnChannelClose(t *testing.T) {
	m := &Manager{stopCh: make(chan struct{})}
	m.reconcileTicker = time.NewTicker(time.Hour)
	m.counterFlushTicker = time.NewTicker(time.Hour)
	defer m.reconcileTicker.Stop()
	defer m.counterFlushTicker.Stop()

	stopCh := m.stopCh
	m.wg.Add(2)
	go m.reconcileWorker(stopCh)
	go m.counterFlushWorker(stopCh)

	// Workers hold their own channel reference; replacing the field while
	// they run must not strand them.
	m.stopCh = nil
	close(stopCh)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after channel close")
	}
}
