package model

// SessionPhase makes the optimistic-restore flow explicit:
// Unknown -> Optimistic -> Validated | Rejected, or Unknown -> Anonymous.
type SessionPhase string

const (
	PhaseUnknown    SessionPhase = "UNKNOWN"
	PhaseOptimistic SessionPhase = "OPTIMISTIC"
	PhaseValidated  SessionPhase = "VALIDATED"
	PhaseRejected   SessionPhase = "REJECTED"
	PhaseAnonymous  SessionPhase = "ANONYMOUS"
)

// Session is the read-only view handed to consumers.
// IsAuthenticated is true exactly when User is non-nil.
type Session struct {
	User            *UserProfile `json:"user"`
	IsAuthenticated bool         `json:"is_authenticated"`
	IsLoading       bool         `json:"is_loading"`
	Initialized     bool         `json:"initialized"`
	Phase           SessionPhase `json:"phase"`
}

// SessionSnapshot is persisted under the "auth_state" key.
// Timestamp is in Unix milliseconds.
type SessionSnapshot struct {
	User            *UserProfile `json:"user"`
	IsAuthenticated bool         `json:"is_authenticated"`
	Timestamp       int64        `json:"timestamp"`
}
