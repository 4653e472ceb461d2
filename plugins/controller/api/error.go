// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrQueueFull is returned when a resource queue cannot take more operations.
	ErrQueueFull = errors.New("resource queue is full")

	// ErrClosed is returned when operations are enqueued after the dispatcher
	// was closed.
	ErrClosed = errors.New("dispatcher was closed")
)

/********************************* Fatal Error ********************************/

// FatalError is returned when the store failed in a way that cannot be
// recovered by a retry. The dispatcher reports it to the status check.
type FatalError struct {
	origErr error
}

// NewFatalError is the constructor for FatalError.
func NewFatalError(origErr error) error {
	return &FatalError{origErr: origErr}
}

// Error delegates the call to the underlying error.
func (e *FatalError) Error() string {
	return e.origErr.Error()
}

// GetOriginalError returns the underlying error.
func (e *FatalError) GetOriginalError() error {
	return e.origErr
}

/****************************** Configuration Error ***************************/

// ConfigError is a synchronous rejection of a request that would otherwise
// produce invalid rule state (duplicate priority, exhausted tag space, ...).
// Nothing is written for a rejected request.
type ConfigError struct {
	origErr error
}

// NewConfigError is the constructor for ConfigError.
func NewConfigError(origErr error) error {
	return &ConfigError{origErr: origErr}
}

// Error delegates the call to the underlying error.
func (e *ConfigError) Error() string {
	return "configuration error: " + e.origErr.Error()
}

// GetOriginalError returns the underlying error.
func (e *ConfigError) GetOriginalError() error {
	return e.origErr
}

// Cause allows errors.Cause to reach the underlying error.
func (e *ConfigError) Cause() error {
	return e.origErr
}

/******************************** Deferred Error ******************************/

// DeferredError is returned when a request was accepted and recorded but
// its effect on rules is postponed until a dependency (device port, device
// reachability) becomes available.
type DeferredError struct {
	origErr error
}

// NewDeferredError is the constructor for DeferredError.
func NewDeferredError(origErr error) error {
	return &DeferredError{origErr: origErr}
}

// Error delegates the call to the underlying error.
func (e *DeferredError) Error() string {
	return "deferred: " + e.origErr.Error()
}

// GetOriginalError returns the underlying error.
func (e *DeferredError) GetOriginalError() error {
	return e.origErr
}

// Cause allows errors.Cause to reach the underlying error.
func (e *DeferredError) Cause() error {
	return e.origErr
}

/**************************** Retries Exhausted Error *************************/

// RetriesExhaustedError is returned for a batch that kept conflicting with
// concurrent writers until the retry ceiling was reached. None of the batch
// operations were applied; the caller may re-trigger the change later.
type RetriesExhaustedError struct {
	Batch    uint64
	Attempts int
	lastErr  error
}

// NewRetriesExhaustedError is the constructor for RetriesExhaustedError.
func NewRetriesExhaustedError(batch uint64, attempts int, lastErr error) error {
	return &RetriesExhaustedError{Batch: batch, Attempts: attempts, lastErr: lastErr}
}

// Error returns description of the failure.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("batch #%d not applied after %d attempts: %v", e.Batch, e.Attempts, e.lastErr)
}

// GetOriginalError returns the error of the last attempt.
func (e *RetriesExhaustedError) GetOriginalError() error {
	return e.lastErr
}

/****************************** Transaction Error *****************************/

// TransactionError wraps a failed commit of a batch together with the keys
// the batch was writing.
type TransactionError struct {
	txnError error
	keys     []string
}

// NewTransactionError is a constructor for transaction error.
func NewTransactionError(txnError error, keys []string) *TransactionError {
	return &TransactionError{txnError: txnError, keys: keys}
}

// Error returns a string representation of the commit error.
func (e *TransactionError) Error() string {
	if e == nil || e.txnError == nil {
		return ""
	}
	if len(e.keys) == 0 {
		return e.txnError.Error()
	}
	return fmt.Sprintf("%v (keys: [%s])", e.txnError, strings.Join(e.keys, ", "))
}

// GetKeys returns keys of the failed transaction.
func (e *TransactionError) GetKeys() []string {
	if e == nil {
		return nil
	}
	return e.keys
}

// GetTxnError returns error associated with transaction processing.
func (e *TransactionError) GetTxnError() error {
	if e == nil {
		return nil
	}
	return e.txnError
}

/********************************** Predicates ********************************/

// IsConfigError returns true if the request was rejected as invalid.
func IsConfigError(err error) bool {
	_, is := err.(*ConfigError)
	return is
}

// IsDeferred returns true if the request was recorded but not yet rendered.
func IsDeferred(err error) bool {
	_, is := err.(*DeferredError)
	return is
}

// IsRetriable returns true if the failed request may succeed when repeated.
func IsRetriable(err error) bool {
	switch err.(type) {
	case *RetriesExhaustedError:
		return true
	case *DeferredError:
		return true
	}
	return errors.Cause(err) == ErrQueueFull
}

// IsFatal returns true for failures of the store itself.
func IsFatal(err error) bool {
	_, is := err.(*FatalError)
	return is
}
