package mapper

import (
	"fmt"
	"strings"
	"unicode"
)

type tagOptions struct {
	key      string
	target   string
	strategy Strategy
	cascade  Cascade
	skip     bool
}

// parseTag reads a field tag of the form "key,opt,opt". A bare "-" marks
// the field transient.
func parseTag(tag string) (tagOptions, error) {
	var opts tagOptions
	if tag == "-" {
		opts.skip = true
		return opts, nil
	}

	parts := strings.Split(tag, ",")
	opts.key = strings.TrimSpace(parts[0])

	strategySet := false
	setStrategy := func(s Strategy) error {
		if strategySet && opts.strategy != s {
			return fmt.Errorf("conflicting strategies %s and %s", opts.strategy, s)
		}
		opts.strategy = s
		strategySet = true
		return nil
	}

	for _, raw := range parts[1:] {
		opt := strings.TrimSpace(raw)
		name, value, hasValue := strings.Cut(opt, "=")

		switch name {
		case "":
			continue
		case "object":
			if err := setStrategy(Object); err != nil {
				return opts, err
			}
		case "method":
			if err := setStrategy(Method); err != nil {
				return opts, err
			}
		case "ignore":
			if err := setStrategy(Ignore); err != nil {
				return opts, err
			}
		case "cascade":
			switch {
			case !hasValue, value == "sync":
				opts.cascade = CascadeSync
			case value == "async":
				opts.cascade = CascadeAsync
			default:
				return opts, fmt.Errorf("unknown cascade mode %q", value)
			}
		case "target":
			if value == "" {
				return opts, fmt.Errorf("target option needs a type name")
			}
			opts.target = value
		default:
			return opts, fmt.Errorf("unknown tag option %q", opt)
		}
	}

	return opts, nil
}

// defaultKey lowers the leading upper-case run of a Go identifier:
// Name -> name, ID -> id, HTTPPort -> httpPort.
func defaultKey(name string) string {
	r := []rune(name)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}

	switch {
	case n == 0:
		return name
	case n == 1 || n == len(r):
	default:
		// keep the last upper-case rune when it starts the next word
		if unicode.IsLower(r[n]) {
			n--
		}
	}

	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
