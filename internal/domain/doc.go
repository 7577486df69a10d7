// Package domain contains the core value types shared by the intake transport
// and ingestion layers.
//
// It has no dependencies on sockets, logging, or configuration.
//
// # Types
//
//   - [Frame]: the length-prefixed unit exchanged with the backing store
//   - [Event]: one opaque datagram payload on its way to the pipeline
//   - [Error]: a transport failure tagged with a [Kind] callers can switch on
package domain
