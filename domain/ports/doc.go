// Package ports defines the interfaces the loader depends on for metadata
// parsing, metadata validation and wire schema registration, plus the
// template engine the CLI renders results with.
package ports
