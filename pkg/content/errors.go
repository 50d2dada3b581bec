package content

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every validation error in this package.
var ErrValidation = errors.New("invalid structured content")

// UnsupportedElementError reports a tag outside the output vocabulary.
type UnsupportedElementError struct {
	Path string
	Tag  string
}

func (e *UnsupportedElementError) Error() string {
	return fmt.Sprintf("%s: unsupported element %q", e.Path, e.Tag)
}

func (e *UnsupportedElementError) Unwrap() error { return ErrValidation }

// InvalidAttributeError reports an attribute the tag may not carry.
type InvalidAttributeError struct {
	Path      string
	Tag       string
	Attribute string
}

func (e *InvalidAttributeError) Error() string {
	return fmt.Sprintf("%s: attribute %q is not allowed on <%s>", e.Path, e.Attribute, e.Tag)
}

func (e *InvalidAttributeError) Unwrap() error { return ErrValidation }

// MissingContentError reports a non-void element without content.
type MissingContentError struct {
	Path string
	Tag  string
}

func (e *MissingContentError) Error() string {
	return fmt.Sprintf("%s: <%s> has no content", e.Path, e.Tag)
}

func (e *MissingContentError) Unwrap() error { return ErrValidation }

// InvalidContentError reports content that is neither a string nor a
// sequence of strings and nodes.
type InvalidContentError struct {
	Path string
	Got  string
}

func (e *InvalidContentError) Error() string {
	return fmt.Sprintf("%s: expected string or element, got %s", e.Path, e.Got)
}

func (e *InvalidContentError) Unwrap() error { return ErrValidation }
