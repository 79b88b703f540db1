package errors

import (
	"errors"
	"strings"
)

// Diagnostics collects the per-field errors recovered during one encode or
// decode call. The zero value is ready to use.
type Diagnostics struct {
	errs []*Error
}

// Add records err. Nil errors are ignored.
func (d *Diagnostics) Add(err *Error) {
	if err == nil {
		return
	}
	d.errs = append(d.errs, err)
}

// Len returns the number of recorded errors.
func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	return len(d.errs)
}

// Errors returns the recorded errors in the order they occurred.
func (d *Diagnostics) Errors() []*Error {
	if d == nil {
		return nil
	}
	out := make([]*Error, len(d.errs))
	copy(out, d.errs)
	return out
}

// Fields returns the dotted paths of every affected field.
func (d *Diagnostics) Fields() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.errs))
	for _, e := range d.errs {
		out = append(out, e.Field())
	}
	return out
}

// Has reports whether any recorded error matches kind.
func (d *Diagnostics) Has(kind Kind) bool {
	if d == nil {
		return false
	}
	for _, e := range d.errs {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Err returns a combined error from all recorded errors, or nil.
func (d *Diagnostics) Err() error {
	if d.Len() == 0 {
		return nil
	}
	joined := make([]error, len(d.errs))
	for i, e := range d.errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

// String returns one line per recorded error.
func (d *Diagnostics) String() string {
	if d.Len() == 0 {
		return ""
	}
	parts := make([]string, len(d.errs))
	for i, e := range d.errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "\n")
}

// Reset drops all recorded errors, keeping capacity.
func (d *Diagnostics) Reset() {
	clear(d.errs)
	d.errs = d.errs[:0]
}
