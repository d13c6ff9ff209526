// Package errors provides structured error handling for DevMind.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Capacity errors (queue full, rate limited)
//   - 3XX: Backend errors (vector store, cache, model provider unreachable)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryCapacity indicates admission-control rejections.
	CategoryCapacity Category = "CAPACITY"
	// CategoryBackend indicates an unreachable or failing dependency.
	CategoryBackend Category = "BACKEND"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Capacity errors (200-299)
	ErrCodeOverloaded   = "ERR_201_OVERLOADED"
	ErrCodeQueueTimeout = "ERR_202_QUEUE_TIMEOUT"

	// Backend errors (300-399)
	ErrCodeBackendTimeout     = "ERR_301_BACKEND_TIMEOUT"
	ErrCodeBackendUnavailable = "ERR_302_BACKEND_UNAVAILABLE"
	ErrCodeProviderFailed     = "ERR_303_PROVIDER_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty      = "ERR_402_QUERY_EMPTY"
	ErrCodeInvalidCriteria = "ERR_403_INVALID_CRITERIA"
	ErrCodeUnsupported     = "ERR_404_UNSUPPORTED"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts the category from an error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryCapacity
	case '3':
		return CategoryBackend
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// isRetryableCode checks if an error code represents a retryable error.
// Backend failures are retryable; capacity and validation rejections are not
// (capacity resolves through fallback, not retry, and invalid input never
// succeeds on retry).
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeBackendUnavailable, ErrCodeProviderFailed:
		return true
	default:
		return false
	}
}
