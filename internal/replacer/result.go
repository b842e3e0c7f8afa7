// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package replacer

// Result is the outcome of Transform. The zero value means no change.
type Result struct {
	code    string
	changed bool
}

// NoChange signals the host to fall through to its other transforms.
func NoChange() Result {
	return Result{}
}

// Changed wraps rewritten stylesheet text.
func Changed(code string) Result {
	return Result{code: code, changed: true}
}

// Changed reports whether the stylesheet was rewritten.
func (r Result) Changed() bool {
	return r.changed
}

// Code returns the rewritten text. It is empty for NoChange.
func (r Result) Code() string {
	return r.code
}
