package protocol

import (
	"errors"

	"github.com/repomcp/repomcpd/internal/sandbox"
)

// Sentinel errors handlers return for the non-sandbox error codes.
var (
	ErrInvalidParams = errors.New("invalid parameters")
	ErrUnknownTool   = errors.New("unknown tool")
	ErrIndexCorrupt  = errors.New("index corrupt")
)

// Non-sandbox error codes.
const (
	CodeInvalidParams = "INVALID_PARAMS"
	CodeUnknownTool   = "UNKNOWN_TOOL"
	CodeIOError       = "IO_ERROR"
	CodeIndexCorrupt  = "INDEX_CORRUPT"
)

// MapError converts a handler error into a Response's blocked/error
// fields. A *sandbox.Blocked error always yields blocked=true with its
// reason and hint surfaced as result/error.code; every other error maps
// to one of the fixed non-sandbox error codes below.
func MapError(err error) (blocked bool, result any, detail *ErrorDetail) {
	if err == nil {
		return false, nil, nil
	}

	var sb *sandbox.Blocked
	if errors.As(err, &sb) {
		return true, map[string]string{"reason": string(sb.Reason), "hint": sb.Hint},
			&ErrorDetail{Code: string(sb.Reason), Message: sb.Error()}
	}

	switch {
	case errors.Is(err, ErrInvalidParams):
		return false, nil, &ErrorDetail{Code: CodeInvalidParams, Message: err.Error()}
	case errors.Is(err, ErrUnknownTool):
		return false, nil, &ErrorDetail{Code: CodeUnknownTool, Message: err.Error()}
	case errors.Is(err, ErrIndexCorrupt):
		return false, nil, &ErrorDetail{Code: CodeIndexCorrupt, Message: err.Error()}
	default:
		return false, nil, &ErrorDetail{Code: CodeIOError, Message: err.Error()}
	}
}
