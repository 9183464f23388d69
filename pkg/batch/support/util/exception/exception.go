// Package exception defines the error taxonomy of lockxfer.
//
// Every failure surfaced by the engine is a *BatchError tagged with the module it came
// from and flagged retryable or not. Each category is also joined with a sentinel error,
// so callers classify failures with errors.Is rather than by message text:
//
//	ErrRemoteCall             transport or gateway failure (retryable)
//	ErrRemoteTimeout          a block fetch exceeded the configured timeout (retryable)
//	ErrBusinessCountMismatch  header record_count differs from the detail row count
//	ErrDuplicateImport        the message_id already has a staging log row
//	ErrHeaderNotFound         no header row exists for the message_id
//	ErrOptimisticLockingFailure  a conditional update touched an unexpected number of rows
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Names under which the sentinels are registered (see RegisterErrorType).
const (
	RemoteCallError                   = "RemoteCallError"
	RemoteTimeoutError                = "RemoteTimeoutError"
	BusinessCountMismatchError        = "BusinessCountMismatchError"
	DuplicateImportError              = "DuplicateImportError"
	HeaderNotFoundError               = "HeaderNotFoundError"
	OptimisticLockingFailureException = "OptimisticLockingFailureException"
)

var (
	ErrRemoteCall               = errors.New(RemoteCallError)
	ErrRemoteTimeout            = errors.New(RemoteTimeoutError)
	ErrBusinessCountMismatch    = errors.New(BusinessCountMismatchError)
	ErrDuplicateImport          = errors.New(DuplicateImportError)
	ErrHeaderNotFound           = errors.New(HeaderNotFoundError)
	ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailureException)
)

// errorRegistry maps configured error names to sentinel instances for errors.Is comparison.
var (
	errorRegistry = make(map[string]error)
	registryMutex sync.RWMutex
)

// RegisterErrorType registers a named error prototype.
// It panics if name is empty or prototype is nil.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// BatchError is the error type returned by every lockxfer component.
type BatchError struct {
	// Module is the component that raised the error (e.g. "lock", "guard", "transfer", "remote").
	Module string
	// Message is a concise, operator-facing description.
	Message string
	// OriginalErr is the wrapped cause, joined with the category sentinel when one applies.
	OriginalErr error
	isRetryable bool
	isSkippable bool
	// StackTrace is captured at construction for debugging.
	StackTrace string
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// NewBatchError creates a new BatchError instance.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

func joinSentinel(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}

// NewRemoteCallError wraps a failure of the remote gateway. Remote call errors are retryable
// at the host's discretion.
func NewRemoteCallError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, joinSentinel(ErrRemoteCall, cause), false, true)
}

// NewRemoteTimeoutError reports a block fetch that did not complete within timeout.
func NewRemoteTimeoutError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, joinSentinel(ErrRemoteTimeout, cause), false, true)
}

// NewBusinessCountMismatchError reports a header/detail count mismatch. The message names
// the message_id and both counts for operator triage.
func NewBusinessCountMismatchError(module, messageID string, headerCount, linesCount int64) *BatchError {
	msg := fmt.Sprintf("BUSINESS-ERROR: header count %d differs from lines count %d for message_id %s",
		headerCount, linesCount, messageID)
	return NewBatchError(module, msg, ErrBusinessCountMismatch, false, false)
}

// NewDuplicateImportError reports a message_id that was already imported into staging.
func NewDuplicateImportError(module, messageID string, existing int64) *BatchError {
	msg := fmt.Sprintf("BUSINESS-ERROR: message_id %s already exists in staging log (%d row(s))", messageID, existing)
	return NewBatchError(module, msg, ErrDuplicateImport, false, false)
}

// NewHeaderNotFoundError reports a message_id that has no header row in the remote system.
func NewHeaderNotFoundError(module, messageID string) *BatchError {
	msg := fmt.Sprintf("BUSINESS-ERROR: no header row found for message_id %s", messageID)
	return NewBatchError(module, msg, ErrHeaderNotFound, false, false)
}

// NewOptimisticLockingFailureException reports a conditional update whose affected row count
// disagrees with the rows previously read. Never retryable or skippable.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	return NewBatchError(module, message, joinSentinel(ErrOptimisticLockingFailure, originalErr), false, false)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is / errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsBatchError reports whether err is, or wraps, a *BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsRetryable reports whether the host may retry the unit of work that produced err.
// The outermost BatchError decides; other errors are retryable only if they are
// context deadline errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsBusinessError reports whether err is a non-retryable data-integrity failure
// (count mismatch, duplicate import or missing header).
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrBusinessCountMismatch) ||
		errors.Is(err, ErrDuplicateImport) ||
		errors.Is(err, ErrHeaderNotFound)
}

// IsOptimisticLockingFailure determines if an error indicates an optimistic locking failure.
func IsOptimisticLockingFailure(err error) bool {
	return errors.Is(err, ErrOptimisticLockingFailure)
}

// Kind returns the registered category name of err, or "Unknown".
// Metrics label failures with it.
func Kind(err error) string {
	for _, name := range []string{
		BusinessCountMismatchError,
		DuplicateImportError,
		HeaderNotFoundError,
		OptimisticLockingFailureException,
		RemoteTimeoutError,
		RemoteCallError,
	} {
		if IsErrorOfType(err, name) {
			return name
		}
	}
	return "Unknown"
}

// IsErrorOfType checks if an error matches a registered type name, a substring of an error
// message in its chain, or a Go type name such as "*exception.BatchError".
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok {
		return errors.Is(err, targetError)
	}

	for currentErr := err; currentErr != nil; currentErr = errors.Unwrap(currentErr) {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}
		errType := reflect.TypeOf(currentErr)
		if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
			return true
		}
	}
	return false
}

// ExtractErrorMessage returns the Message of a BatchError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

func init() {
	RegisterErrorType(RemoteCallError, ErrRemoteCall)
	RegisterErrorType(RemoteTimeoutError, ErrRemoteTimeout)
	RegisterErrorType(BusinessCountMismatchError, ErrBusinessCountMismatch)
	RegisterErrorType(DuplicateImportError, ErrDuplicateImport)
	RegisterErrorType(HeaderNotFoundError, ErrHeaderNotFound)
	RegisterErrorType(OptimisticLockingFailureException, ErrOptimisticLockingFailure)

	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
