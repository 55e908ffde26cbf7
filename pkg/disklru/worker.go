package disklru

import "sync"

// worker runs cleanup on a single background goroutine.
//
// Requests collapse: wake has capacity one, so any number of schedule calls
// made while a request is already pending result in one run.
type worker struct {
	run     func()
	wake    chan struct{}
	barrier chan chan struct{}
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func startWorker(run func()) *worker {
	w := &worker{
		run:     run,
		wake:    make(chan struct{}, 1),
		barrier: make(chan chan struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go w.loop()

	return w
}

func (w *worker) loop() {
	defer close(w.done)

	for {
		select {
		case <-w.quit:
			return
		case <-w.wake:
			w.run()
		case ch := <-w.barrier:
			select {
			case <-w.wake:
				w.run()
			default:
			}

			close(ch)
		}
	}
}

// schedule requests a run without blocking.
func (w *worker) schedule() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// wait returns once every run scheduled before the call has finished.
// It returns immediately if the worker is stopped.
func (w *worker) wait() {
	ch := make(chan struct{})

	select {
	case w.barrier <- ch:
		<-ch
	case <-w.done:
	}
}

// stop ends the goroutine and waits for it. Safe to call more than once.
// Must not be called while holding a lock that run acquires.
func (w *worker) stop() {
	w.once.Do(func() { close(w.quit) })
	<-w.done
}
