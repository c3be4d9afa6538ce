// Package hostfuncs implements the capabilities a plugin can import: sandboxed
// HTTP egress, logging, the process-wide key-value store, the inbound request
// surface of processors and the stubbed process/cache functions.
//
// Handlers here are runtime-agnostic ByteHandlers speaking JSON. The call's
// Capabilities travel in the context (see WithCapabilities), so one registry
// serves every execution of a generation concurrently.
package hostfuncs
