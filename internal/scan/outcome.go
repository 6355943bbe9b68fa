package scan

// Kind is the structured result category of one scan request.
type Kind string

const (
	KindMarked             Kind = "marked"
	KindAlreadyMarkedToday Kind = "already-marked-today"
	KindNoFaceDetected     Kind = "no-face-detected"
	KindExtractionFailed   Kind = "extraction-failed"
	KindEmptyGallery       Kind = "empty-gallery"
	KindNoConfidentMatch   Kind = "no-confident-match"
	KindLivenessFailed     Kind = "liveness-failed"
	KindClientBlocked      Kind = "client-blocked"
	KindStoreUnavailable   Kind = "store-unavailable"
	KindTimeout            Kind = "timeout"
)

// Class groups kinds by what the caller should do next: retry as-is,
// capture new frames, or stop because policy says so.
type Class string

const (
	ClassSuccess   Class = "success"
	ClassTransient Class = "transient" // retry the same request later
	ClassInput     Class = "input"     // re-prompt the user for a new session
	ClassPolicy    Class = "policy"    // do not retry
)

// Class maps a kind to its caller guidance.
func (k Kind) Class() Class {
	switch k {
	case KindMarked, KindAlreadyMarkedToday:
		return ClassSuccess
	case KindExtractionFailed, KindStoreUnavailable, KindTimeout:
		return ClassTransient
	case KindNoFaceDetected, KindNoConfidentMatch, KindLivenessFailed:
		return ClassInput
	default:
		// An empty gallery or a blocked client does not heal with a retry;
		// it needs enrollment or operator action.
		return ClassPolicy
	}
}

// Outcome is the caller-facing result of one scan. It carries no
// presentation formatting; the consumer decides how to render it.
type Outcome struct {
	RequestID  string  `json:"request_id"`
	Kind       Kind    `json:"kind"`
	Class      Class   `json:"class"`
	Identity   string  `json:"identity,omitempty"`
	Name       string  `json:"name,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Reason     string  `json:"reason,omitempty"` // liveness sub-reason
	Degraded   bool    `json:"degraded,omitempty"`
	Message    string  `json:"message"`
}
