package port

import "context"

type FailureNotice struct {
	UserEmail    string
	JobID        string
	VideoKey     string
	ErrorKind    string
	ErrorMessage string
}

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, notice FailureNotice) error
}
