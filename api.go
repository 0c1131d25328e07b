// Package encrypt provides transparent field-level encryption for persisted
// records.
//
// The package sits between an application's object layer and its storage
// layer: fields marked with a struct tag are encrypted before a record is
// written and decrypted after it is read, without call sites invoking any
// cryptographic operation themselves.
//
// # Tag Syntax
//
// Fields are marked for encryption with the encrypted tag:
//
//	type Account struct {
//	    ID   string
//	    SSN  string  `encrypted:"true"`
//	    Note *string `encrypted:"true"`
//	}
//
// Only string and *string fields are eligible. Fields declared on embedded
// structs are inherited: the embedded struct's fields come first in the
// selection, and a field redeclared by the outer type overrides the
// inherited one by name.
//
// # Basic Usage
//
//	enc, _ := encrypt.NewAESGCM(key)
//	tr := encrypt.NewTransformer(enc)
//	sub := encrypt.NewSubscriber(tr)
//
//	// Wire sub's hooks into the host persistence engine, then:
//	sub.PrePersist(ctx, &account)  // SSN encrypted in place
//	sub.PostLoad(ctx, &account)    // SSN decrypted in place
//
// Records are mutated in place and must be passed as pointers unless they
// implement FieldAccessible.
//
// # Idempotency
//
// Every ciphertext value carries the Marker suffix. A value ending in the
// marker is treated as ciphertext; a value without it is treated as
// plaintext. Re-encrypting an already-marked field and decrypting an
// unmarked field are both silent no-ops, so processing the same record
// through any number of lifecycle events is safe. Plaintext business data
// must never legitimately end with the marker string.
//
// # Lifecycle Hooks
//
// Subscriber exposes the fixed hook set a persistence engine fires around
// its own operations:
//
//   - PrePersist, PreUpdate: encrypt the single record
//   - PostPersist, PostUpdate: decrypt the single record
//   - PostLoad: decrypt the single record
//   - PreFlush: encrypt every identity-map record, skipping read-only types
//     and uninitialized lazy proxies
//   - PostFlush: decrypt every identity-map record, no exclusions
//
// # Encryptors
//
// The active Encryptor is pluggable and swappable at runtime. Built-in
// constructors:
//
//   - NewAESGCM(key) - AES-GCM authenticated encryption
//   - NewAESCBC(key) - AES-CBC with HMAC-SHA256 (encrypt-then-MAC)
//
// SetEncryptor(nil) disables processing entirely; RestoreEncryptor reverts
// to the encryptor installed at construction.
package encrypt

// Encryptor is the capability contract for the pluggable encryption
// strategy. Implementations must satisfy Decrypt(Encrypt(x)) == x for every
// supported plaintext, and must never produce output that itself ends with
// Marker, or the idempotency guard breaks.
//
// Both methods are expected to be CPU-bound and synchronous; the engine
// performs no retries and imposes no timeout.
type Encryptor interface {
	// Encrypt encrypts plaintext and returns ciphertext, typically encoded
	// for storage in a text column.
	Encrypt(plaintext string) (string, error)

	// Decrypt decrypts ciphertext previously produced by Encrypt and
	// returns the original plaintext.
	Decrypt(ciphertext string) (string, error)
}

// FieldAccessible bypasses reflection-based field access. When a record type
// implements this interface, the Transformer reads and writes its fields
// through these methods instead of reflect, so value receivers work and the
// reflection cost disappears for hot paths.
//
// These methods are designed for codegen: a generator can implement them
// from the encrypted tags, providing compile-time safety.
type FieldAccessible interface {
	// GetField returns the named field's current value. The second result
	// reports whether the field exists and is readable.
	GetField(name string) (string, bool)

	// SetField writes value to the named field and reports whether the
	// field exists and is writable.
	SetField(name, value string) bool
}

// UnitOfWork exposes the records the host persistence engine currently
// tracks. Flush hooks enumerate it to find every record that may reach
// storage in the batch.
type UnitOfWork interface {
	// IdentityMap returns all tracked records. The engine processes each
	// one individually; order is not significant.
	IdentityMap() []any
}

// LazyProxy marks placeholder records standing in for data not yet
// materialized from storage. Pre-flush processing skips proxies whose
// Initialized method reports false; forcing materialization would be a
// wasted round trip and risks re-entrant load events.
type LazyProxy interface {
	Initialized() bool
}
