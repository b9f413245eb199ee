// Package errors provides custom error types for option-related operations.
package errors

import "errors"

var ErrOptionNotFound = errors.New("option not found")
var ErrItemNotFound = errors.New("item not found or not active")

var ErrVariantConflict = errors.New("variant already exists")
var ErrUniqueViolation = errors.New("unique constraint violation")
var ErrOptimisticLock = errors.New("optimistic lock error: the option has been modified by another transaction")

var ErrInvalidStock = errors.New("stock must not be negative")

var ErrUpdateFailed = errors.New("failed to update option")
var ErrSaveOption = errors.New("failed to save option")

var ErrCatalogUnavailable = errors.New("catalog is unavailable")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
