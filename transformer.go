package encrypt

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Marker is the sentinel suffix distinguishing ciphertext from plaintext
// field values. It is appended to every encrypted value and stripped before
// decryption. A plaintext value that happens to end with the marker is
// misclassified as ciphertext; hosts must guarantee business data never
// legitimately ends with it.
const Marker = "<ENC>"

// HasMarker reports whether value carries the ciphertext marker.
func HasMarker(value string) bool {
	return strings.HasSuffix(value, Marker)
}

// Operation selects the transform direction.
type Operation string

const (
	// OpEncrypt transforms plaintext fields into marked ciphertext.
	OpEncrypt Operation = "encrypt"

	// OpDecrypt transforms marked ciphertext fields back into plaintext.
	OpDecrypt Operation = "decrypt"
)

// Transformer applies the active Encryptor to every marked field of a
// record. It owns the field selection cache, the ignore list, the active
// and restore encryptor slots, and the operation counters.
//
// Transformers are safe for concurrent use. Swapping encryptors holds the
// lock only while the reference changes hands, never for the duration of a
// transform.
type Transformer struct {
	// Encryptor state protected by mu
	mu          sync.RWMutex
	active      Encryptor
	activeName  string
	restore     Encryptor
	restoreName string
	registry    map[string]Encryptor

	selector *Selector
	ignored  *TypeSet

	encryptCount atomic.Int64
	decryptCount atomic.Int64
}

// Option configures a Transformer at construction.
type Option func(*Transformer)

// WithSelector shares a field selection cache between transformers.
func WithSelector(s *Selector) Option {
	return func(t *Transformer) { t.selector = s }
}

// WithIgnored sets the type names excluded from any processing.
func WithIgnored(ts *TypeSet) Option {
	return func(t *Transformer) { t.ignored = ts }
}

// NewTransformer creates a Transformer with enc as both the active and the
// restore encryptor. A nil enc starts the transformer disabled; Process is
// a no-op until SetEncryptor installs one.
func NewTransformer(enc Encryptor, opts ...Option) *Transformer {
	t := &Transformer{
		registry: make(map[string]Encryptor),
		selector: NewSelector(),
		ignored:  NewTypeSet(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.active = enc
	t.activeName = encryptorName(enc)
	t.restore = enc
	t.restoreName = t.activeName

	emitTransformerCreated(context.Background(), t.activeName)
	return t
}

// encryptorName derives an identifier for enc: its self-reported name when
// it implements Name(), otherwise its type string.
func encryptorName(enc Encryptor) string {
	if enc == nil {
		return ""
	}
	if n, ok := enc.(interface{ Name() string }); ok {
		return n.Name()
	}
	return reflect.TypeOf(enc).String()
}

// Ignored returns the type-name set excluded from any processing.
func (t *Transformer) Ignored() *TypeSet {
	return t.ignored
}

// Selector returns the field selection cache.
func (t *Transformer) Selector() *Selector {
	return t.selector
}

// RegisterEncryptor adds a named encryptor for SetEncryptorByName.
// Empty names and nil encryptors fail with ErrInvalidEncryptor.
func (t *Transformer) RegisterEncryptor(name string, enc Encryptor) error {
	if name == "" || enc == nil {
		return newEncryptorError(name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registry[name] = enc
	return nil
}

// SetEncryptor installs enc as the active encryptor. Passing nil disables
// processing entirely until another encryptor is installed or
// RestoreEncryptor is called.
func (t *Transformer) SetEncryptor(enc Encryptor) {
	name := encryptorName(enc)
	t.mu.Lock()
	t.active = enc
	t.activeName = name
	t.mu.Unlock()

	emitEncryptorChanged(context.Background(), name)
}

// SetEncryptorByName resolves name through the registered encryptors and
// installs the result. Unknown names fail with ErrInvalidEncryptor and
// leave the active encryptor unchanged.
func (t *Transformer) SetEncryptorByName(name string) error {
	t.mu.Lock()
	enc, ok := t.registry[name]
	if !ok || enc == nil {
		t.mu.Unlock()
		return newEncryptorError(name)
	}
	t.active = enc
	t.activeName = name
	t.mu.Unlock()

	emitEncryptorChanged(context.Background(), name)
	return nil
}

// RestoreEncryptor reverts to the encryptor installed at construction,
// regardless of how many swaps occurred since. Restoring repeatedly keeps
// returning to the same original.
func (t *Transformer) RestoreEncryptor() {
	t.mu.Lock()
	t.active = t.restore
	t.activeName = t.restoreName
	name := t.activeName
	t.mu.Unlock()

	emitEncryptorChanged(context.Background(), name)
}

// CurrentEncryptorName returns the active encryptor's identifier: the name
// it was registered under, its self-reported name, or its type string. The
// result is "" when processing is disabled.
func (t *Transformer) CurrentEncryptorName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeName
}

// EncryptCount returns the total number of field encryptions performed by
// this transformer.
func (t *Transformer) EncryptCount() int64 {
	return t.encryptCount.Load()
}

// DecryptCount returns the total number of field decryptions performed by
// this transformer.
func (t *Transformer) DecryptCount() int64 {
	return t.decryptCount.Load()
}

// Process applies op to every marked field of record, mutating it in place.
// It returns false without touching the record when no encryptor is
// installed or the record's type is ignored; otherwise it returns true.
//
// Fields whose value is empty, a nil pointer, or already in the target
// state are skipped and processing continues with the remaining fields.
// Accessor and encryptor failures abort the record immediately; nothing is
// retried.
//
// Records that do not implement FieldAccessible must be passed as pointers
// so their fields are settable; otherwise Process fails with
// ErrUnreadableProperty. Fails with ErrTypeResolution when the record does
// not resolve to a struct.
func (t *Transformer) Process(ctx context.Context, record any, op Operation) (bool, error) {
	if record == nil {
		return false, nil
	}

	// Hold the lock only to read the reference, not for the transform
	t.mu.RLock()
	enc := t.active
	t.mu.RUnlock()
	if enc == nil {
		return false, nil
	}

	rt := reflect.TypeOf(record)
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	typeName := rt.String()
	if t.ignored.Has(typeName) {
		return false, nil
	}

	fields, err := t.selector.Select(rt)
	if err != nil {
		return false, err
	}

	start := time.Now()
	emitProcessStart(ctx, typeName, op)

	var retErr error
	transformed := 0
	defer func() {
		emitProcessComplete(ctx, typeName, op, transformed, time.Since(start), retErr)
	}()

	// Check for override interface
	if fa, ok := record.(FieldAccessible); ok {
		transformed, retErr = t.processAccessible(fa, typeName, fields, enc, op)
		if retErr != nil {
			return false, retErr
		}
		return true, nil
	}

	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		if len(fields) == 0 {
			return true, nil
		}
		retErr = newPropertyError(fields[0].Name, typeName)
		return false, retErr
	}

	transformed, retErr = t.processReflect(rv.Elem(), typeName, fields, enc, op)
	if retErr != nil {
		return false, retErr
	}
	return true, nil
}

// processReflect transforms fields through the cached reflect access paths.
func (t *Transformer) processReflect(rv reflect.Value, typeName string, fields []FieldDescriptor, enc Encryptor, op Operation) (int, error) {
	transformed := 0
	for i := range fields {
		fd := &fields[i]

		value, skip, err := readField(rv, fd, typeName)
		if err != nil {
			return transformed, err
		}
		if skip || value == "" {
			continue
		}

		next, changed, err := transformValue(enc, value, op)
		if err != nil {
			return transformed, newTransformError(opSentinel(op), fd.Name, typeName, err)
		}
		if !changed {
			continue
		}

		if err := writeField(rv, fd, typeName, next); err != nil {
			return transformed, err
		}
		t.count(op)
		transformed++
	}
	return transformed, nil
}

// processAccessible transforms fields through the FieldAccessible override.
func (t *Transformer) processAccessible(fa FieldAccessible, typeName string, fields []FieldDescriptor, enc Encryptor, op Operation) (int, error) {
	transformed := 0
	for i := range fields {
		fd := &fields[i]

		value, ok := fa.GetField(fd.Name)
		if !ok {
			return transformed, newPropertyError(fd.Name, typeName)
		}
		if value == "" {
			continue
		}

		next, changed, err := transformValue(enc, value, op)
		if err != nil {
			return transformed, newTransformError(opSentinel(op), fd.Name, typeName, err)
		}
		if !changed {
			continue
		}

		if !fa.SetField(fd.Name, next) {
			return transformed, newPropertyError(fd.Name, typeName)
		}
		t.count(op)
		transformed++
	}
	return transformed, nil
}

// transformValue applies the marker idempotency guard around the encryptor.
// changed reports whether the value moved to the target state; values
// already there pass through untouched.
func transformValue(enc Encryptor, value string, op Operation) (next string, changed bool, err error) {
	switch op {
	case OpDecrypt:
		if !HasMarker(value) {
			return value, false, nil
		}
		plain, err := enc.Decrypt(strings.TrimSuffix(value, Marker))
		if err != nil {
			return value, false, err
		}
		return plain, true, nil

	case OpEncrypt:
		if HasMarker(value) {
			return value, false, nil
		}
		cipher, err := enc.Encrypt(value)
		if err != nil {
			return value, false, err
		}
		return cipher + Marker, true, nil

	default:
		return value, false, nil
	}
}

// count increments the counter matching op.
func (t *Transformer) count(op Operation) {
	if op == OpEncrypt {
		t.encryptCount.Add(1)
	} else {
		t.decryptCount.Add(1)
	}
}

// opSentinel maps an operation to its transform sentinel error.
func opSentinel(op Operation) error {
	if op == OpEncrypt {
		return ErrEncrypt
	}
	return ErrDecrypt
}
