package source

import (
	"errors"
	"fmt"
)

// ErrNotExist is returned by a Host when a path does not exist in the repository.
var ErrNotExist = errors.New("path does not exist")

// RepositoryAccessError is returned when repository contents cannot be read.
type RepositoryAccessError struct {
	URL    string
	Reason string
	Err    error
}

func (e *RepositoryAccessError) Error() string {
	msg := fmt.Sprintf("cannot read repository %q: %s", e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RepositoryAccessError) Unwrap() error {
	return e.Err
}
