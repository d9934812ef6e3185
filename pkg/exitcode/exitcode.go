// Package exitcode provides the process exit codes reported to the invoking build runner.
package exitcode

import (
	"errors"
	"io/fs"
	"net"

	"github.com/fulmenhq/cloudref/pkg/upload"
)

// Exit codes for the cloudref CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	FileSystemError = 4
	NetworkError    = 5
	// UploadAborted means an upload exhausted its retries and the run stopped.
	UploadAborted = 10
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case FileSystemError:
		return "File system error"
	case NetworkError:
		return "Network error"
	case UploadAborted:
		return "Upload aborted"
	default:
		return "Unknown error"
	}
}

// ConfigErr marks an error as a configuration problem for FromError.
type ConfigErr struct{ Err error }

func (e *ConfigErr) Error() string { return e.Err.Error() }
func (e *ConfigErr) Unwrap() error { return e.Err }

// FromError picks the exit code that best describes err.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	var abort *upload.AbortError
	if errors.As(err, &abort) {
		return UploadAborted
	}
	var cfg *ConfigErr
	if errors.As(err, &cfg) {
		return ConfigError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NetworkError
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return FileSystemError
	}
	return GeneralError
}
