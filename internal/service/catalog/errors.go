package catalog

import "errors"

var (
	// ErrDuplicatePackage is returned when a package with the same name is already listed.
	ErrDuplicatePackage = errors.New("package already submitted")
	// ErrUnknownPackage is returned when the npm registry does not know the package.
	ErrUnknownPackage = errors.New("package not found on npm")
	// ErrInvalidName is returned for an empty or malformed package name.
	ErrInvalidName = errors.New("invalid package name")
	// ErrInvalidStatus is returned for an unknown review status.
	ErrInvalidStatus = errors.New("invalid review status")
	// ErrInvalidVisibility is returned for an unknown visibility.
	ErrInvalidVisibility = errors.New("invalid visibility")
	// ErrNotFeaturable is returned when featuring a package that is not approved and visible.
	ErrNotFeaturable = errors.New("only approved, visible packages can be featured")
)
