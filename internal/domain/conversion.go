package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ConversionRequest is a single user expression handed over by an ingress adapter.
type ConversionRequest struct {
	ID          string       `json:"id"`
	Expression  string       `json:"expression"`
	Target      CurrencyCode `json:"target,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// State is the lifecycle step of a request inside the worker pool.
type State int32

const (
	StateReceived State = iota
	StateTokenizing
	StateResolving
	StateEvaluating
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateTokenizing:
		return "tokenizing"
	case StateResolving:
		return "resolving"
	case StateEvaluating:
		return "evaluating"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ResolvedToken is a currency-tagged amount converted into the request's target currency.
type ResolvedToken struct {
	Position  int             `json:"position"`
	Amount    decimal.Decimal `json:"amount"`
	Source    CurrencyCode    `json:"source"`
	Rate      decimal.Decimal `json:"rate"`
	Converted decimal.Decimal `json:"converted"`
}

// ConversionResult is the value of a completed request together with its provenance.
type ConversionResult struct {
	Target          CurrencyCode    `json:"target"`
	Value           decimal.Decimal `json:"value"`
	SnapshotVersion uint64          `json:"snapshot_version"`
	SnapshotTime    time.Time       `json:"snapshot_time"`
	Tokens          []ResolvedToken `json:"tokens"`
}

type FailureReason string

const (
	ReasonNotReady        FailureReason = "not_ready"
	ReasonSyntax          FailureReason = "syntax"
	ReasonAmbiguousTarget FailureReason = "ambiguous_target"
	ReasonUnknownCurrency FailureReason = "unknown_currency"
	ReasonDivisionByZero  FailureReason = "division_by_zero"
	ReasonTimeout         FailureReason = "timeout"
	ReasonCancelled       FailureReason = "cancelled"
	ReasonInternal        FailureReason = "internal"
)

// Failure is the structured reason a request ended in StateFailed.
type Failure struct {
	Reason  FailureReason `json:"reason"`
	Message string        `json:"message"`
}

var reasonMessages = map[FailureReason]string{
	ReasonNotReady:        "exchange rates are not loaded yet, try again shortly",
	ReasonSyntax:          "the expression could not be parsed",
	ReasonAmbiguousTarget: "the target currency is missing or ambiguous",
	ReasonUnknownCurrency: "the expression uses an unknown currency",
	ReasonDivisionByZero:  "the expression divides by zero",
	ReasonTimeout:         "the conversion took too long",
	ReasonCancelled:       "the conversion was cancelled",
	ReasonInternal:        "the conversion failed",
}

// FailureFromError maps a pipeline error to its structured reason. Parse and
// resolution errors keep their detail (position, currency code); everything else
// gets a fixed message so internals never leak to users.
func FailureFromError(err error) Failure {
	reason := ReasonInternal
	detailed := false
	switch {
	case errors.Is(err, ErrNotReady):
		reason = ReasonNotReady
	case errors.Is(err, ErrAmbiguousTarget):
		reason, detailed = ReasonAmbiguousTarget, true
	case errors.Is(err, ErrSyntax):
		reason, detailed = ReasonSyntax, true
	case errors.Is(err, ErrUnknownCurrency):
		reason, detailed = ReasonUnknownCurrency, true
	case errors.Is(err, ErrDivisionByZero):
		reason = ReasonDivisionByZero
	case errors.Is(err, ErrTimeout):
		reason = ReasonTimeout
	case errors.Is(err, ErrCancelled):
		reason = ReasonCancelled
	}
	msg := reasonMessages[reason]
	if detailed && err != nil {
		msg = err.Error()
	}
	return Failure{Reason: reason, Message: msg}
}

// Outcome is what gets delivered to the egress adapter for a request.
type Outcome struct {
	RequestID   string            `json:"request_id"`
	State       string            `json:"state"`
	Result      *ConversionResult `json:"result,omitempty"`
	Failure     *Failure          `json:"failure,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

func (o Outcome) Succeeded() bool { return o.Result != nil }

func CompletedOutcome(requestID string, result ConversionResult, at time.Time) Outcome {
	return Outcome{RequestID: requestID, State: StateCompleted.String(), Result: &result, CompletedAt: at}
}

func FailedOutcome(requestID string, err error, at time.Time) Outcome {
	f := FailureFromError(err)
	state := StateFailed
	if f.Reason == ReasonCancelled {
		state = StateCancelled
	}
	return Outcome{RequestID: requestID, State: state.String(), Failure: &f, CompletedAt: at}
}
