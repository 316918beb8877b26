package core

// Error codes for feed errors sent to subscribers.
const (
	ErrCodeForbidden            = "forbidden"
	ErrCodeConversationNotFound = "conversation_not_found"
	ErrCodeAlreadySubscribed    = "already_subscribed"
	ErrCodeNotSubscribed        = "not_subscribed"
	ErrCodeBadRequest           = "bad_request"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
