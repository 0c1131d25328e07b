package encrypt

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrTypeResolution indicates a record's type could not be introspected
	// for field selection.
	ErrTypeResolution = errors.New("type resolution failed")

	// ErrUnreadableProperty indicates a selected field could not be read or
	// written through the uniform accessor.
	ErrUnreadableProperty = errors.New("unreadable property")

	// ErrInvalidEncryptor indicates an encryptor identifier did not resolve
	// to a usable Encryptor.
	ErrInvalidEncryptor = errors.New("invalid encryptor")

	// ErrEncrypt indicates encryption of a field value failed.
	ErrEncrypt = errors.New("encrypt failed")

	// ErrDecrypt indicates decryption of a field value failed.
	ErrDecrypt = errors.New("decrypt failed")
)

// TypeError reports a failure to resolve a record type during field
// selection. It wraps ErrTypeResolution with the offending type.
type TypeError struct {
	Err  error  // Underlying sentinel error (ErrTypeResolution)
	Type string // Type that could not be introspected
}

func (e *TypeError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Type)
	}
	return e.Err.Error()
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

// PropertyError reports a field that cannot be accessed through the uniform
// accessor. It wraps ErrUnreadableProperty with the field and type names so
// the failure is diagnosable at the call site.
type PropertyError struct {
	Err   error  // Underlying sentinel error (ErrUnreadableProperty)
	Field string // Field that could not be accessed
	Type  string // Type declaring the field
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("%s: %s (type %s)", e.Err.Error(), e.Field, e.Type)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}

// EncryptorError reports an encryptor identifier that failed to resolve.
// It wraps ErrInvalidEncryptor with the identifier.
type EncryptorError struct {
	Err  error  // Underlying sentinel error (ErrInvalidEncryptor)
	Name string // Identifier that failed to resolve
}

func (e *EncryptorError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err.Error(), e.Name)
}

func (e *EncryptorError) Unwrap() error {
	return e.Err
}

// TransformError reports a failure inside the active encryptor while
// transforming a single field. It wraps ErrEncrypt or ErrDecrypt with the
// field and type context and the encryptor's original error.
type TransformError struct {
	Err   error  // Underlying sentinel error (ErrEncrypt or ErrDecrypt)
	Field string // Field that failed
	Type  string // Type declaring the field
	Cause error  // Original error from the encryptor
}

func (e *TransformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: field %s (type %s): %v", e.Err.Error(), e.Field, e.Type, e.Cause)
	}
	return fmt.Sprintf("%s: field %s (type %s)", e.Err.Error(), e.Field, e.Type)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// newTypeError creates a TypeError for introspection failures.
func newTypeError(typeName string) error {
	return &TypeError{Err: ErrTypeResolution, Type: typeName}
}

// newPropertyError creates a PropertyError for accessor failures.
func newPropertyError(field, typeName string) error {
	return &PropertyError{Err: ErrUnreadableProperty, Field: field, Type: typeName}
}

// newEncryptorError creates an EncryptorError for resolution failures.
func newEncryptorError(name string) error {
	return &EncryptorError{Err: ErrInvalidEncryptor, Name: name}
}

// newTransformError creates a TransformError for encryptor failures.
func newTransformError(sentinel error, field, typeName string, cause error) error {
	return &TransformError{Err: sentinel, Field: field, Type: typeName, Cause: cause}
}
