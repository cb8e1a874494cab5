package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter ErrorCode = 100
	ErrCodeInvalidOrder     ErrorCode = 101
	ErrCodeMissingParameter ErrorCode = 102

	// Configuration errors (200-299)
	ErrCodeInvalidConfiguration     ErrorCode = 200
	ErrCodeConfigurationUnavailable ErrorCode = 201

	// Transport errors (300-399)
	ErrCodeConnectFailed ErrorCode = 300
	ErrCodeWriteFailed   ErrorCode = 301
	ErrCodeReadFailed    ErrorCode = 302
	ErrCodeReadTimeout   ErrorCode = 303
	ErrCodeStreamClosed  ErrorCode = 304

	// Protocol errors (400-499)
	ErrCodeProtocolParse      ErrorCode = 400
	ErrCodeUnexpectedResponse ErrorCode = 401
	ErrCodeLoginRejected      ErrorCode = 402

	// Trading state errors (500-599)
	ErrCodeInvalidStateTransition ErrorCode = 500
	ErrCodeNoMarketData           ErrorCode = 501
	ErrCodeNoPosition             ErrorCode = 502
	ErrCodeOrderFailed            ErrorCode = 503
	ErrCodeConfirmationPending    ErrorCode = 504
)
