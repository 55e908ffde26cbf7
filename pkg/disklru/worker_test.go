package disklru

import (
	"sync/atomic"
	"testing"
)

func Test_Worker_Collapses_Requests_When_Scheduled_While_Busy(t *testing.T) {
	t.Parallel()

	var runs atomic.Int64

	started := make(chan struct{})
	release := make(chan struct{})

	w := startWorker(func() {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
	})
	defer w.stop()

	w.schedule()
	<-started

	for range 100 {
		w.schedule()
	}

	close(release)
	w.wait()

	if got, want := runs.Load(), int64(2); got != want {
		t.Fatalf("runs=%d, want=%d", got, want)
	}
}

func Test_Worker_Wait_Returns_When_Stopped(t *testing.T) {
	t.Parallel()

	w := startWorker(func() {})
	w.stop()
	w.stop()

	w.wait()
}
