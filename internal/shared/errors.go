package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)

// UserSafeMessage returns an error string suitable for API consumers.
// Storage-layer details are collapsed to a generic retry prompt.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return "record not found"
	}
	return "operation failed, please try again"
}
