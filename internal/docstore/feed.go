package docstore

import "sync"

// Feed is the Subscription used by the store implementations. It keeps at
// most one pending snapshot: a newer snapshot replaces one the consumer has
// not read yet, which is safe because every snapshot is a full result set.
type Feed struct {
	mu      sync.Mutex
	ch      chan Snapshot
	done    chan struct{}
	err     error
	closed  bool
	release func()
}

// NewFeed returns an open feed. release, if not nil, runs once when the feed
// is closed or fails.
func NewFeed(release func()) *Feed {
	return &Feed{ch: make(chan Snapshot, 1), done: make(chan struct{}), release: release}
}

func (f *Feed) Snapshots() <-chan Snapshot {
	return f.ch
}

// Done is closed once the feed is closed or has failed.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Publish hands snap to the consumer. It reports false once the feed is closed.
func (f *Feed) Publish(snap Snapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case <-f.ch:
	default:
	}
	f.ch <- snap
	return true
}

// Fail ends the feed with err.
func (f *Feed) Fail(err error) {
	f.shutdown(err)
}

func (f *Feed) Close() error {
	f.shutdown(nil)
	return nil
}

func (f *Feed) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Feed) shutdown(err error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.err = err
	// drop anything unread so nothing is observed after release
	select {
	case <-f.ch:
	default:
	}
	close(f.ch)
	close(f.done)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		release()
	}
}
