// Package dberrors defines the tagged error variants ProseQL returns.
// Each variant carries the fields a caller needs to act on it rather than
// only a formatted message, and wraps an underlying cause where one exists.
package dberrors

import "fmt"

// NotFoundError is returned by update/delete on a missing row.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no row with id %q", e.Collection, e.ID)
}

// DuplicateKeyError is returned when a create collides on the primary key.
type DuplicateKeyError struct {
	Collection string
	Field      string
	Value      any
	ExistingID string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: duplicate %s=%v (existing id %q)", e.Collection, e.Field, e.Value, e.ExistingID)
}

// ForeignKeyError is returned when a ref FK points at a missing row.
type ForeignKeyError struct {
	Collection       string
	Field            string
	Value            any
	TargetCollection string
}

func (e *ForeignKeyError) Error() string {
	return fmt.Sprintf("%s.%s=%v: no such row in %s", e.Collection, e.Field, e.Value, e.TargetCollection)
}

// Issue is a single field-level validation complaint.
type Issue struct {
	Field    string
	Message  string
	Expected string
	Received string
}

// ValidationError aggregates schema or operator validation failures, and is
// also used for immutable-field writes and cursor misconfiguration.
type ValidationError struct {
	Message string
	Issues  []Issue
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Issues) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Issues[0].Field, e.Issues[0].Message)
	}
	return fmt.Sprintf("validation: %d issue(s)", len(e.Issues))
}

// UniqueConstraintError is returned when a create/update collides on a
// declared unique constraint (single field or composite tuple).
type UniqueConstraintError struct {
	Collection string
	Constraint string
	Fields     []string
	Values     []any
	ExistingID string
}

func (e *UniqueConstraintError) Error() string {
	return fmt.Sprintf("%s: unique constraint %q violated by %v (existing id %q)",
		e.Collection, e.Constraint, e.Values, e.ExistingID)
}

// HookError wraps a failure raised by a lifecycle hook.
type HookError struct {
	Phase string
	Cause error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s failed: %v", e.Phase, e.Cause)
}

func (e *HookError) Unwrap() error { return e.Cause }

// OperationError covers forbidden operations: append-only violations,
// batch limits exceeded, and similar configuration-level rejections.
type OperationError struct {
	Operation string
	Reason    string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

// TransactionError covers coordinator-specific failures: re-entrance,
// commit conflicts. Errors raised by the transaction body itself are never
// wrapped in TransactionError — they propagate with their original type.
type TransactionError struct {
	Operation string
	Reason    string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %s", e.Operation, e.Reason)
}

// DanglingReferenceError is raised only during populate, when a non-null
// ref FK does not resolve to an existing row.
type DanglingReferenceError struct {
	Collection string
	Field      string
	TargetID   string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s.%s: dangling reference to %q", e.Collection, e.Field, e.TargetID)
}

// MigrationError covers gaps, duplicates, or transform failures in a
// migration chain.
type MigrationError struct {
	Collection string
	Reason     string
	Cause      error
}

func (e *MigrationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("migration %s: %s: %v", e.Collection, e.Reason, e.Cause)
	}
	return fmt.Sprintf("migration %s: %s", e.Collection, e.Reason)
}

func (e *MigrationError) Unwrap() error { return e.Cause }

// StorageError wraps a failure from the storage adapter collaborator.
type StorageError struct {
	Kind  string // not-found|permission-denied|io|...
	Path  string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Kind, e.Path, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// SerializationError wraps an encode/decode failure from a codec.
type SerializationError struct {
	Format string
	Cause  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization (%s): %v", e.Format, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }

// UnsupportedFormatError is returned when no codec is registered for an
// extension.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %q", e.Extension)
}

// PluginError wraps a failure raised while registering or running a plugin.
type PluginError struct {
	Plugin string
	Reason string
	Cause  error
}

func (e *PluginError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Reason, e.Cause)
	}
	return fmt.Sprintf("plugin %s: %s", e.Plugin, e.Reason)
}

func (e *PluginError) Unwrap() error { return e.Cause }
