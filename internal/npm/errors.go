package npm

import "fmt"

// ErrorKind classifies a failed fetch.
type ErrorKind string

// Fetch error kinds.
const (
	KindNotFound  ErrorKind = "not_found"
	KindTransient ErrorKind = "transient"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
)

// FetchError is returned when registry data cannot be obtained for a package.
type FetchError struct {
	Kind       ErrorKind
	Package    string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("npm package %q not found", e.Package)
	case KindStatus, KindTransient:
		if e.StatusCode != 0 {
			return fmt.Sprintf("npm request for %q failed with status %d", e.Package, e.StatusCode)
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("npm fetch for %q failed (%s): %v", e.Package, e.Kind, e.Err)
	}
	return fmt.Sprintf("npm fetch for %q failed (%s)", e.Package, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the registry does not know the package.
func (e *FetchError) IsNotFound() bool {
	return e.Kind == KindNotFound
}
