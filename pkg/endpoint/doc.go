// Package endpoint implements the datagram ingestion endpoint.
//
// An Endpoint binds a unix datagram socket, registers it with a reactor and
// turns every datagram into one event on the bounded queue. While the queue
// is full the endpoint stalls the reactor and retries; the only way out of
// that stall other than free capacity is the degrade flag, which sends the
// event to the overflow sink instead.
//
// Shutdown must set the degrade flag before calling Stop, otherwise a stalled
// retry loop keeps the reactor busy forever.
package endpoint
