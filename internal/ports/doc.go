// Package ports defines the collaborator interfaces the ingestion endpoint
// and the application layer depend on.
//
// # Port Interfaces
//
//   - [EventQueue]: bounded multi-producer/multi-consumer queue with a non-blocking push
//   - [OverflowSink]: append-only line store used while degrade mode is on
//   - [DegradeFlag]: engine-wide "pipeline unavailable" signal, read atomically
//   - [Reactor]: single-goroutine readiness loop the endpoint registers against
//   - [PacketHandler]: the callback table a registered socket dispatches to
//
// Concrete implementations live in pkg/queue, pkg/degrade, pkg/reactor and
// internal/adapters/fs. Tests substitute their own.
package ports
