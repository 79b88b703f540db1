// Package errors provides structured error types for the docmap module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/document type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("person", "age").
//		GoType("int").
//		DocType("string").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseDecode, path, "int", "string")
//	err := errors.MissingConversion(errors.PhaseEncode, path, "ranks.Rank")
//
// Per-field problems recovered during a single encode or decode are
// collected in Diagnostics so callers can choose between strict and lenient
// handling.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
