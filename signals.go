package encrypt

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for engine events.
var (
	SignalTransformerCreated = capitan.NewSignal("encrypt.transformer.created", "Transformer instantiated")
	SignalProcessStart       = capitan.NewSignal("encrypt.process.start", "Record processing beginning")
	SignalProcessComplete    = capitan.NewSignal("encrypt.process.complete", "Record processing finished")
	SignalFlushScan          = capitan.NewSignal("encrypt.flush.scan", "Identity map scan finished")
	SignalEncryptorChanged   = capitan.NewSignal("encrypt.encryptor.changed", "Active encryptor swapped")
	SignalSelectionCached    = capitan.NewSignal("encrypt.selection.cached", "Field selection computed and cached")
)

// Keys for typed event data.
var (
	KeyTypeName         = capitan.NewStringKey("type_name")
	KeyOperation        = capitan.NewStringKey("operation")
	KeyEvent            = capitan.NewStringKey("event")
	KeyEncryptorName    = capitan.NewStringKey("encryptor_name")
	KeyDuration         = capitan.NewDurationKey("duration")
	KeyError            = capitan.NewErrorKey("error")
	KeyFieldCount       = capitan.NewIntKey("field_count")
	KeyTransformedCount = capitan.NewIntKey("transformed_count")
	KeyScannedCount     = capitan.NewIntKey("scanned_count")
	KeySkippedCount     = capitan.NewIntKey("skipped_count")
)

// emitTransformerCreated emits an event when a transformer is created.
func emitTransformerCreated(ctx context.Context, encryptorName string) {
	capitan.Emit(ctx, SignalTransformerCreated,
		KeyEncryptorName.Field(encryptorName),
	)
}

// emitProcessStart emits an event when record processing begins.
func emitProcessStart(ctx context.Context, typeName string, op Operation) {
	capitan.Emit(ctx, SignalProcessStart,
		KeyTypeName.Field(typeName),
		KeyOperation.Field(string(op)),
	)
}

// emitProcessComplete emits an event when record processing finishes.
func emitProcessComplete(ctx context.Context, typeName string, op Operation, transformed int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyOperation.Field(string(op)),
		KeyTransformedCount.Field(transformed),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalProcessComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalProcessComplete, fields...)
	}
}

// emitFlushScan emits an event when an identity map scan finishes.
func emitFlushScan(ctx context.Context, event Event, scanned, skipped int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyEvent.Field(string(event)),
		KeyScannedCount.Field(scanned),
		KeySkippedCount.Field(skipped),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalFlushScan, fields...)
	} else {
		capitan.Emit(ctx, SignalFlushScan, fields...)
	}
}

// emitEncryptorChanged emits an event when the active encryptor changes.
func emitEncryptorChanged(ctx context.Context, encryptorName string) {
	capitan.Emit(ctx, SignalEncryptorChanged,
		KeyEncryptorName.Field(encryptorName),
	)
}

// emitSelectionCached emits an event when a type's field selection is
// computed for the first time.
func emitSelectionCached(typeName string, fieldCount int) {
	capitan.Emit(context.Background(), SignalSelectionCached,
		KeyTypeName.Field(typeName),
		KeyFieldCount.Field(fieldCount),
	)
}
