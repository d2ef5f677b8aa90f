package domain

import "errors"

var (
	ErrNoMaterial         = errors.New("nothing to submit")
	ErrBusy               = errors.New("submission in progress")
	ErrNothingToConfirm   = errors.New("no transactions to confirm")
	ErrNotAwaitingConfirm = errors.New("session is not awaiting confirmation")
	ErrAwaitingDecision   = errors.New("confirm, refine or cancel first")
	ErrNoDefaultAccount   = errors.New("default account is not configured")
	ErrEmptyExtraction    = errors.New("extractor returned no transactions")
	ErrUnknownAction      = errors.New("unknown action")
)

type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureSideData   FailureKind = "side_data"
	FailureExtraction FailureKind = "extraction"
)

// Failure is a recoverable submission failure. Message is shown to the user
// as is.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Message: err.Error(), Err: err}
}
