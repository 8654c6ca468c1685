package dispatch

// Outcome classifies a single delivery attempt.
type Outcome int

const (
	// OutcomeDelivered: the remote accepted the notification (2xx).
	OutcomeDelivered Outcome = iota
	// OutcomeRejected: a response arrived but with a non-success status.
	OutcomeRejected
	// OutcomeTransportError: no response at all (DNS, refused, timeout).
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Attempt is the ephemeral result of one dispatch. It is logged and
// published, never persisted, and never alters trigger state.
type Attempt struct {
	Outcome Outcome
	Status  int // HTTP status when a response was received, else 0
	Reason  string
}
