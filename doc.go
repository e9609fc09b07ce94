// Package pyodc implements the ODC observation frame format in Go: a
// columnar, self-describing container for heterogeneous tabular observation
// data, stored as a sequence of independent frames.
//
// Each frame carries its own schema (column names, datatypes, bit layouts
// and string widths) followed by a compressed columnar payload, so a reader
// can enumerate the contents of any file without decoding a single value.
// Writing splits a table into frames of a bounded row count; reading merges
// runs of schema-compatible frames back into logical tables, lazily and with
// bounded memory.
//
// The core lives in pkg/odc (frame codec, scanner, aggregator) and
// pkg/columnar (the null-aware in-memory table model). cmd/pyodc is a small
// CLI for inspecting, decoding and producing ODC files.
package pyodc
