package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// MutationType names the kind of change a record describes.
type MutationType string

// MutationAttributes is the only mutation type the document reports.
const MutationAttributes MutationType = "attributes"

// MutationRecord describes one observed change.
type MutationRecord struct {
	Type          MutationType
	Target        *Element
	AttributeName string
	// OldValue is set only when the observer asked for old values.
	OldValue    string
	HadOldValue bool
}

// ObserveOptions selects what an observer is told about.
type ObserveOptions struct {
	Attributes        bool
	AttributeOldValue bool
	// AttributeFilter restricts reports to the listed names. Nil means all.
	AttributeFilter []string
}

// MutationCallback receives a batch of records in the order they were queued.
type MutationCallback func(records []MutationRecord, observer *MutationObserver)

// MutationObserver receives batched attribute mutation records. Delivery is
// always deferred: the callback runs on the document's delivery goroutine
// after the mutating call has returned.
type MutationObserver struct {
	callback MutationCallback

	mu           sync.Mutex
	records      []MutationRecord
	scheduled    bool
	disconnected bool
	targets      []*Element
}

type registration struct {
	observer *MutationObserver
	options  ObserveOptions
}

// NewMutationObserver returns an observer that calls cb with queued records.
func NewMutationObserver(cb MutationCallback) *MutationObserver {
	return &MutationObserver{callback: cb}
}

// Observe starts watching target. Observing the same target again replaces
// the previous options.
func (o *MutationObserver) Observe(target *Element, opts ObserveOptions) {
	if opts.AttributeOldValue || len(opts.AttributeFilter) > 0 {
		opts.Attributes = true
	}
	if opts.AttributeFilter != nil {
		opts.AttributeFilter = append([]string(nil), opts.AttributeFilter...)
	}

	doc := target.doc
	doc.mu.Lock()
	replaced := false
	for _, reg := range target.observers {
		if reg.observer == o {
			reg.options = opts
			replaced = true
		}
	}
	if !replaced {
		target.observers = append(target.observers, &registration{observer: o, options: opts})
	}
	doc.mu.Unlock()

	o.mu.Lock()
	o.disconnected = false
	if !replaced {
		o.targets = append(o.targets, target)
	}
	o.mu.Unlock()

	doc.retain([]*html.Node{target.node}, false)
}

// Disconnect stops all observation and discards pending records.
func (o *MutationObserver) Disconnect() {
	o.mu.Lock()
	targets := o.targets
	o.targets = nil
	o.records = nil
	o.disconnected = true
	o.mu.Unlock()

	for _, target := range targets {
		doc := target.doc
		doc.mu.Lock()
		kept := target.observers[:0]
		for _, reg := range target.observers {
			if reg.observer != o {
				kept = append(kept, reg)
			}
		}
		target.observers = kept
		doc.mu.Unlock()
	}
}

// TakeRecords returns and clears the pending records without invoking the
// callback.
func (o *MutationObserver) TakeRecords() []MutationRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	records := o.records
	o.records = nil
	return records
}

func (o *MutationObserver) enqueue(s *scheduler, rec MutationRecord) {
	o.mu.Lock()
	if o.disconnected {
		o.mu.Unlock()
		return
	}
	o.records = append(o.records, rec)
	schedule := !o.scheduled
	o.scheduled = true
	o.mu.Unlock()

	if schedule {
		s.schedule(o)
	}
}

func (o *MutationObserver) deliver() {
	o.mu.Lock()
	records := o.records
	o.records = nil
	o.scheduled = false
	disconnected := o.disconnected
	o.mu.Unlock()

	if disconnected || len(records) == 0 {
		return
	}
	o.callback(records, o)
}

// queueAttributeRecord notifies observers of e about an attribute change.
// Caller holds the document write lock.
func (e *Element) queueAttributeRecord(name, old string, had bool) {
	for _, reg := range e.observers {
		opts := reg.options
		if !opts.Attributes {
			continue
		}
		if opts.AttributeFilter != nil && !contains(opts.AttributeFilter, name) {
			continue
		}

		rec := MutationRecord{
			Type:          MutationAttributes,
			Target:        e,
			AttributeName: name,
		}
		if opts.AttributeOldValue {
			rec.OldValue = old
			rec.HadOldValue = had
		}
		reg.observer.enqueue(e.doc.delivery, rec)
	}
}

// scheduler delivers observer batches in FIFO order on one goroutine.
type scheduler struct {
	mu    sync.Mutex
	queue []*MutationObserver
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newScheduler() *scheduler {
	return &scheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *scheduler) schedule(o *MutationObserver) {
	s.mu.Lock()
	s.queue = append(s.queue, o)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *scheduler) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			s.drain()
		}
	}
}

func (s *scheduler) drain() {
	for {
		s.mu.Lock()
		queue := s.queue
		s.queue = nil
		s.mu.Unlock()

		if len(queue) == 0 {
			return
		}
		for _, o := range queue {
			select {
			case <-s.done:
				return
			default:
			}
			o.deliver()
		}
	}
}

func (s *scheduler) stop() {
	s.once.Do(func() { close(s.done) })
}
