// Package verrors provides structured error handling for vectorfs.
//
// Errors are classified into the kinds the system design names:
// configuration, not-found, permission-denied, already-exists,
// invalid-argument, resource-exhausted, transient, corruption, and
// internal. The FUSE surface and the message dispatcher are the only
// layers that translate a Kind into something transport-specific (a
// POSIX errno or a response envelope); everything else just returns
// *VError and lets the caller inspect Kind.
package verrors

// Kind classifies an error for propagation and translation purposes.
type Kind string

const (
	KindConfiguration     Kind = "CONFIGURATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
	KindResourceExhausted Kind = "RESOURCE_EXHAUSTED"
	KindTransient         Kind = "TRANSIENT"
	KindCorruption        Kind = "CORRUPTION"
	KindInternal          Kind = "INTERNAL"
)

// Severity mirrors the teacher's four-level scheme; the dispatcher and
// background workers both branch on it to decide whether to abort or
// merely log and continue.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// retryableKinds are treated as non-fatal by the pipeline and the bus client.
var retryableKinds = map[Kind]bool{
	KindTransient: true,
}

// fatalKinds are fatal to the owning component's construction, never to
// the process (ConfigurationError, Corruption per spec.md §7).
var fatalKinds = map[Kind]bool{
	KindConfiguration: true,
	KindCorruption:    true,
}

func severityForKind(k Kind) Severity {
	if fatalKinds[k] {
		return SeverityFatal
	}
	if retryableKinds[k] {
		return SeverityWarning
	}
	return SeverityError
}

func retryableForKind(k Kind) bool {
	return retryableKinds[k]
}
