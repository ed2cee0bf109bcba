// Package errors provides structured error handling for askdesk.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (blob storage, index files, audit rows)
//   - 3XX: Provider errors (embedding, LLM)
//   - 4XX: Validation errors (input, file types)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryProvider   Category = "PROVIDER"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeBlobNotFound = "ERR_201_BLOB_NOT_FOUND"
	ErrCodeIndexPersist = "ERR_205_INDEX_PERSIST"
	ErrCodeIndexReload  = "ERR_206_INDEX_RELOAD"
	ErrCodeAuditWrite   = "ERR_207_AUDIT_WRITE"

	// Provider errors (300-399)
	ErrCodeEmbeddingFailed = "ERR_301_EMBEDDING_FAILED"
	ErrCodeLLMFailed       = "ERR_302_LLM_FAILED"
	ErrCodeRoutingParse    = "ERR_303_ROUTING_PARSE"

	// Validation errors (400-499)
	ErrCodeUnsupportedFileType = "ERR_401_UNSUPPORTED_FILE_TYPE"
	ErrCodeScanPdf             = "ERR_402_SCAN_PDF_NOT_SUPPORTED"
	ErrCodeIngestionEmpty      = "ERR_403_INGESTION_EMPTY"
	ErrCodeDimensionMismatch   = "ERR_404_DIMENSION_MISMATCH"
	ErrCodeInvalidDepartment   = "ERR_405_INVALID_DEPARTMENT_CODE"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
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
		return CategoryIO
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}
