package acme

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is matched by every validation error returned from Validate.
var ErrInvalidConfig = errors.New("acme: invalid configuration")

// MissingFieldError reports a required field that is absent or empty on an
// enabled entity.
type MissingFieldError struct {
	Path  string // key path of the entity, e.g. accounts.le.certificates.web
	Field string
}

func (e *MissingFieldError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("acme: %s is required", e.Field)
	}
	return fmt.Sprintf("acme: %s: %s is required", e.Path, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrInvalidConfig }

func (e *MissingFieldError) locate(elem string) { e.Path = joinPath(elem, e.Path) }

// InvalidValueError reports a present field that violates a constraint.
type InvalidValueError struct {
	Path   string
	Field  string
	Value  any
	Reason string
}

func (e *InvalidValueError) Error() string {
	prefix := "acme: "
	if e.Path != "" {
		prefix += e.Path + ": "
	}
	return fmt.Sprintf("%s%s %s (got %v)", prefix, e.Field, e.Reason, e.Value)
}

func (e *InvalidValueError) Is(target error) bool { return target == ErrInvalidConfig }

func (e *InvalidValueError) locate(elem string) { e.Path = joinPath(elem, e.Path) }

// DuplicateHostnameError lists every hostname claimed by more than one
// enabled certificate.
type DuplicateHostnameError struct {
	Hostnames []string
}

func (e *DuplicateHostnameError) Error() string {
	return "acme: duplicate hostnames found among accounts and certificates: " + strings.Join(e.Hostnames, ", ")
}

func (e *DuplicateHostnameError) Is(target error) bool { return target == ErrInvalidConfig }

// MultipleDefaultCertificatesError lists every enabled certificate marked
// as default when more than one is.
type MultipleDefaultCertificatesError struct {
	Certificates []CertificateRef
}

func (e *MultipleDefaultCertificatesError) Error() string {
	refs := make([]string, len(e.Certificates))
	for i, r := range e.Certificates {
		refs[i] = r.String()
	}
	return "acme: multiple certificates marked default: " + strings.Join(refs, ", ")
}

func (e *MultipleDefaultCertificatesError) Is(target error) bool { return target == ErrInvalidConfig }

// locator is implemented by errors that carry the key path of the entity
// they were raised on.
type locator interface {
	locate(elem string)
}

// within prefixes the path of a located error with elem. Other errors are
// returned untouched.
func within(err error, elem string) error {
	var l locator
	if errors.As(err, &l) {
		l.locate(elem)
	}
	return err
}

func joinPath(parent, child string) string {
	if child == "" {
		return parent
	}
	return parent + "." + child
}
