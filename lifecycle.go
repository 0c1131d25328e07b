package encrypt

import (
	"context"
	"reflect"
	"time"
)

// Event names a lifecycle point the Subscriber hooks into. The host
// persistence engine must fire each hook at the documented point relative
// to its own read and write operations.
type Event string

const (
	// EventPrePersist fires before a record is first written.
	EventPrePersist Event = "prePersist"

	// EventPreUpdate fires before an existing record is updated.
	EventPreUpdate Event = "preUpdate"

	// EventPostPersist fires after a record is first written.
	EventPostPersist Event = "postPersist"

	// EventPostUpdate fires after an existing record is updated.
	EventPostUpdate Event = "postUpdate"

	// EventPostLoad fires after a record is materialized from storage.
	EventPostLoad Event = "postLoad"

	// EventPreFlush fires before a batch commit.
	EventPreFlush Event = "preFlush"

	// EventPostFlush fires after a batch commit.
	EventPostFlush Event = "postFlush"
)

// Subscriber coordinates the persistence lifecycle with the Transformer:
// encrypt on the way to storage, decrypt on the way back. Single-record
// hooks pass the record straight through; flush hooks enumerate the host's
// identity map.
//
// Errors from the transformer surface immediately to the triggering hook so
// the host's transaction handling sees them; nothing is retried.
type Subscriber struct {
	transformer *Transformer
	readOnly    *TypeSet
}

// SubscriberOption configures a Subscriber at construction.
type SubscriberOption func(*Subscriber)

// WithReadOnlyTypes marks type names whose records are skipped during
// pre-flush scans. Read-only records never reach storage changed, so
// encrypting them would be wasted work.
func WithReadOnlyTypes(names ...string) SubscriberOption {
	return func(s *Subscriber) {
		for _, name := range names {
			s.readOnly.Add(name)
		}
	}
}

// NewSubscriber creates a Subscriber driving t.
func NewSubscriber(t *Transformer, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		transformer: t,
		readOnly:    NewTypeSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubscribedEvents returns the fixed set of lifecycle events the subscriber
// handles. Order is not significant.
func (s *Subscriber) SubscribedEvents() []Event {
	return []Event{
		EventPrePersist,
		EventPreUpdate,
		EventPostPersist,
		EventPostUpdate,
		EventPostLoad,
		EventPreFlush,
		EventPostFlush,
	}
}

// ReadOnly returns the set of type names skipped during pre-flush scans.
func (s *Subscriber) ReadOnly() *TypeSet {
	return s.readOnly
}

// PrePersist encrypts record before it is first written.
func (s *Subscriber) PrePersist(ctx context.Context, record any) error {
	_, err := s.transformer.Process(ctx, record, OpEncrypt)
	return err
}

// PreUpdate encrypts record before an update is written.
func (s *Subscriber) PreUpdate(ctx context.Context, record any) error {
	_, err := s.transformer.Process(ctx, record, OpEncrypt)
	return err
}

// PostPersist decrypts record after it was written, so the in-memory copy
// returns to usable plaintext.
func (s *Subscriber) PostPersist(ctx context.Context, record any) error {
	_, err := s.transformer.Process(ctx, record, OpDecrypt)
	return err
}

// PostUpdate decrypts record after an update was written.
func (s *Subscriber) PostUpdate(ctx context.Context, record any) error {
	_, err := s.transformer.Process(ctx, record, OpDecrypt)
	return err
}

// PostLoad decrypts record after it was materialized from storage.
func (s *Subscriber) PostLoad(ctx context.Context, record any) error {
	_, err := s.transformer.Process(ctx, record, OpDecrypt)
	return err
}

// PreFlush encrypts every record tracked in uow's identity map before the
// batch commits. Records of read-only types and lazy proxies that were
// never materialized are skipped.
func (s *Subscriber) PreFlush(ctx context.Context, uow UnitOfWork) error {
	return s.scan(ctx, EventPreFlush, uow, OpEncrypt, true)
}

// PostFlush decrypts every record tracked in uow's identity map after the
// batch commits, with no exclusions.
func (s *Subscriber) PostFlush(ctx context.Context, uow UnitOfWork) error {
	return s.scan(ctx, EventPostFlush, uow, OpDecrypt, false)
}

// scan walks the identity map and processes each record individually.
// The first error aborts the scan.
func (s *Subscriber) scan(ctx context.Context, event Event, uow UnitOfWork, op Operation, exclude bool) error {
	if uow == nil {
		return nil
	}

	start := time.Now()
	scanned, skipped := 0, 0

	var retErr error
	defer func() {
		emitFlushScan(ctx, event, scanned, skipped, time.Since(start), retErr)
	}()

	for _, record := range uow.IdentityMap() {
		if record == nil {
			skipped++
			continue
		}
		if exclude {
			if proxy, ok := record.(LazyProxy); ok && !proxy.Initialized() {
				skipped++
				continue
			}
			if s.readOnly.Has(recordTypeName(record)) {
				skipped++
				continue
			}
		}
		if _, err := s.transformer.Process(ctx, record, op); err != nil {
			retErr = err
			return err
		}
		scanned++
	}

	return nil
}

// recordTypeName names record's type the way reflect reports it.
func recordTypeName(record any) string {
	rt := reflect.TypeOf(record)
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt.String()
}
