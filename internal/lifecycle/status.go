package lifecycle

// Raw payload lifecycle statuses.
const (
	StatusIngested             = "INGESTED"
	StatusNormalized           = "NORMALIZED"
	StatusFailed               = "FAILED"
	StatusAnalyzed             = "ANALYZED"
	StatusAnalysisFailed       = "ANALYSIS_FAILED"
	StatusCorrelationGenerated = "CORRELATION_GENERATED"
	StatusCorrelationSkipped   = "CORRELATION_SKIPPED"
	StatusCorrelated           = "CORRELATED"
	StatusCorrelationReviewed  = "CORRELATION_REVIEWED"
)

// Candidate statuses.
const (
	CandidatePending   = "PENDING"
	CandidateConfirmed = "CONFIRMED"
	CandidateRejected  = "REJECTED"
)

// Feedback statuses.
const (
	FeedbackNew        = "NEW"
	FeedbackReviewed   = "REVIEWED"
	FeedbackInProgress = "IN_PROGRESS"
	FeedbackClosed     = "CLOSED"
)

var feedbackStatuses = map[string]bool{
	FeedbackNew:        true,
	FeedbackReviewed:   true,
	FeedbackInProgress: true,
	FeedbackClosed:     true,
}

func ValidFeedbackStatus(s string) bool { return feedbackStatuses[s] }

// transitions is the allowed raw-data transition relation. Self-transitions
// for ANALYZED and CORRELATION_GENERATED make stage re-runs idempotent.
var transitions = map[string]map[string]bool{
	StatusIngested: {
		StatusNormalized: true,
		StatusFailed:     true,
	},
	StatusNormalized: {
		StatusAnalyzed:       true,
		StatusAnalysisFailed: true,
	},
	StatusAnalyzed: {
		StatusAnalyzed:             true,
		StatusCorrelationGenerated: true,
		StatusCorrelationSkipped:   true,
	},
	StatusCorrelationGenerated: {
		StatusCorrelationGenerated: true,
		StatusCorrelated:           true,
		StatusCorrelationReviewed:  true,
	},
}

// CanTransition reports whether a raw payload may move from one status to
// another. Terminal states have no outgoing edges; operators replay those by
// resubmitting, not through the pipeline.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// StageReady reports whether a raw payload in status from may enter the
// named stage. The API layer uses this to reject queue requests up front;
// stage handlers re-assert it as their precondition.
func StageReady(stage, from string) bool {
	switch stage {
	case "normalize":
		return from == StatusIngested
	case "analyze":
		return from == StatusNormalized || from == StatusAnalyzed
	case "generate_candidates":
		return from == StatusAnalyzed || from == StatusCorrelationGenerated
	case "fuse_candidates":
		return from == StatusCorrelationGenerated
	case "export":
		// Export is read-only; any status with turns present is exportable.
		return from != StatusIngested && from != StatusFailed
	default:
		return false
	}
}
