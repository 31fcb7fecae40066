// Package output provides JSON and styled output formatting and the CLI error taxonomy.
package output

// Exit codes.
const (
	ExitOK         = 0 // Success
	ExitUsage      = 1 // Invalid arguments or flags
	ExitNotFound   = 2 // Resource not found
	ExitAuth       = 3 // Not authenticated
	ExitForbidden  = 4 // Access denied
	ExitValidation = 5 // Server rejected the input
	ExitNetwork    = 6 // Connection/DNS error or timeout
	ExitAPI        = 7 // Server returned error
	ExitStorage    = 8 // Local persistence failed
)

// Error codes for JSON envelope.
const (
	CodeUsage      = "usage"
	CodeNotFound   = "not_found"
	CodeAuth       = "auth_required"
	CodeForbidden  = "forbidden"
	CodeValidation = "validation"
	CodeTimeout    = "timeout"
	CodeNetwork    = "network"
	CodeAPI        = "api_error"
	CodeStorage    = "storage"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeForbidden:
		return ExitForbidden
	case CodeValidation:
		return ExitValidation
	case CodeTimeout, CodeNetwork:
		return ExitNetwork
	case CodeAPI:
		return ExitAPI
	case CodeStorage:
		return ExitStorage
	default:
		return ExitAPI
	}
}
