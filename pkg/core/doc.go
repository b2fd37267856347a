// Package core defines the shared language of the s4h workbench.
//
// This package contains:
//   - Tabular values (Value, Column, Dataset)
//   - The dictionary role and its canonical field names
//   - Fixed-width layouts (Layout, Span)
//   - Per-invocation threshold parameters
//   - The error taxonomy shared by every stage
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
