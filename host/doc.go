// Package host loads sandboxed media plugins and invokes them through the
// extension and processor contracts.
//
// An Engine compiles a module once, selects the interface generation its
// declared version falls into, and links it against that generation's host
// module. Every operation then runs in a fresh execution context: a new
// guest instance and resource table that are torn down when the call returns,
// whatever the outcome. Processor plugins additionally answer inbound HTTP
// requests through a Server.
package host
