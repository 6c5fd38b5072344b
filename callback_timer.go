package rvlink

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type timerCallback func()

// callbackTimer owns at most one pending timer. It has no lock of its own: every method must be called with
// locker held, and the callback runs with locker held.
type callbackTimer struct {
	locker sync.Locker
	timer  clockwork.Timer
	seq    uint64
}

func newCallbackTimer(locker sync.Locker) *callbackTimer {
	return &callbackTimer{
		locker: locker,
	}
}

// Run cancels any pending timer and schedules callback after delay.
func (t *callbackTimer) Run(clock clockwork.Clock, delay time.Duration, callback timerCallback) {
	t.Stop()

	seq := t.seq
	t.timer = clock.AfterFunc(delay, func() {
		t.locker.Lock()
		defer t.locker.Unlock()

		// stopped or replaced while this func was waiting for the lock
		if t.seq != seq {
			return
		}
		t.timer = nil
		callback()
	})
}

// Stop cancels the pending timer, if any. A timer that already fired but has not taken the lock yet is
// suppressed as well.
func (t *callbackTimer) Stop() {
	t.seq++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *callbackTimer) Pending() bool {
	return t.timer != nil
}
