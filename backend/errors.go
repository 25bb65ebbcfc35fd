package backend

import "fmt"

// Kind partitions backend failures the way the terminal reacts to them.
type Kind int

const (
	// KindNetwork: no response received. Retryable by user action.
	KindNetwork Kind = iota + 1
	// KindValidation: 4xx with a message body; shown verbatim near the form.
	KindValidation
	// KindAuthorization: 401/403; shown with role-specific guidance.
	KindAuthorization
	// KindServer: 5xx; generic failure.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Messages shown when the backend did not supply one.
const (
	msgNetwork       = "could not reach the server, check your connection"
	msgAuthorization = "you are not allowed to do this, contact your administrator"
	msgServer        = "the server reported an internal error"
)

// Error is the classified failure of a backend call.
type Error struct {
	Kind      Kind
	Status    int // HTTP status; 0 for network errors
	Message   string
	Retryable bool
	Err       error // underlying transport error, if any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend: %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("backend: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// classify maps an HTTP status and optional server message to an Error.
func classify(status int, message string) *Error {
	switch {
	case status == 401 || status == 403:
		if message == "" {
			message = msgAuthorization
		}
		return &Error{Kind: KindAuthorization, Status: status, Message: message}
	case status >= 400 && status < 500:
		if message == "" {
			message = fmt.Sprintf("request rejected (%d)", status)
		}
		return &Error{Kind: KindValidation, Status: status, Message: message}
	default:
		if message == "" {
			message = msgServer
		}
		return &Error{Kind: KindServer, Status: status, Message: message, Retryable: true}
	}
}

func netErr(err error) *Error {
	return &Error{Kind: KindNetwork, Message: msgNetwork, Retryable: true, Err: err}
}
