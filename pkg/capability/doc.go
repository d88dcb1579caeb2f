// Package capability connects to MCP servers and turns the tools they
// advertise into toolexecutor definitions.
//
// A Source is one configured server. Connect opens the transport, registers
// the client with the caller's resource scope before any handshake step so a
// failed attempt can always be rolled back, then performs the MCP initialize
// handshake and lists the server's tools. Each returned definition calls back
// into the same client, so the definitions are only usable while the scope's
// owner keeps the connection open.
package capability
