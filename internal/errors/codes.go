// Package errors provides structured error handling for fluxrank.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (index, graph store)
//   - 3XX: Lane/network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates index and graph-store errors.
	CategoryStorage Category = "STORAGE"
	// CategoryLane indicates lane backend and network errors.
	CategoryLane Category = "LANE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeBudgetMissing  = "ERR_103_BUDGET_MISSING"

	// Storage errors (200-299)
	ErrCodeIndexFailed = "ERR_201_INDEX_FAILED"
	ErrCodeGraphStore  = "ERR_202_GRAPH_STORE"

	// Lane errors (300-399)
	ErrCodeLaneTimeout     = "ERR_301_LANE_TIMEOUT"
	ErrCodeLaneFailed      = "ERR_302_LANE_FAILED"
	ErrCodeFeedUnavailable = "ERR_303_FEED_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty   = "ERR_402_QUERY_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeFusionFailed = "ERR_502_FUSION_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryLane
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from the code's category. Config errors
// abort startup; lane errors degrade a run; everything else fails the
// operation.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		return SeverityFatal
	case CategoryLane:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether the operation behind a code may be retried
// by a future run. Retries never happen within a single fusion run.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeLaneTimeout, ErrCodeLaneFailed, ErrCodeFeedUnavailable:
		return true
	default:
		return false
	}
}
