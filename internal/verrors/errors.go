package verrors

import "fmt"

// VError is the structured error type used throughout vectorfs. It carries
// enough context for the FUSE surface to pick a POSIX errno and for the
// dispatcher to build a response envelope, without either of them needing
// to string-match messages.
type VError struct {
	// Kind classifies the error for propagation decisions.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Severity is derived from Kind at construction time.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable is derived from Kind; only KindTransient is retryable.
	Retryable bool
}

func (e *VError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *VError) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, &VError{Kind: ...}) comparisons by Kind.
func (e *VError) Is(target error) bool {
	t, ok := target.(*VError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *VError) WithDetail(key, value string) *VError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a VError of the given kind.
func New(kind Kind, message string, cause error) *VError {
	return &VError{
		Kind:      kind,
		Message:   message,
		Severity:  severityForKind(kind),
		Cause:     cause,
		Retryable: retryableForKind(kind),
	}
}

// Wrap turns an existing error into a VError of the given kind.
func Wrap(kind Kind, err error) *VError {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

func Configuration(message string, cause error) *VError {
	return New(KindConfiguration, message, cause)
}

func NotFound(message string) *VError {
	return New(KindNotFound, message, nil)
}

func PermissionDenied(message string) *VError {
	return New(KindPermissionDenied, message, nil)
}

func AlreadyExists(message string) *VError {
	return New(KindAlreadyExists, message, nil)
}

func InvalidArgument(message string) *VError {
	return New(KindInvalidArgument, message, nil)
}

func ResourceExhausted(message string) *VError {
	return New(KindResourceExhausted, message, nil)
}

func Transient(message string, cause error) *VError {
	return New(KindTransient, message, cause)
}

func Corruption(message string, cause error) *VError {
	return New(KindCorruption, message, cause)
}

func Internal(message string, cause error) *VError {
	return New(KindInternal, message, cause)
}

// IsRetryable reports whether err is a VError marked retryable.
func IsRetryable(err error) bool {
	ve, ok := err.(*VError)
	return ok && ve.Retryable
}

// IsFatal reports whether err is a VError with fatal severity.
func IsFatal(err error) bool {
	ve, ok := err.(*VError)
	return ok && ve.Severity == SeverityFatal
}

// GetKind extracts the Kind from an error, or "" if not a VError.
func GetKind(err error) Kind {
	if ve, ok := err.(*VError); ok {
		return ve.Kind
	}
	return ""
}
