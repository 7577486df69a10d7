// Package store is a request/reply client for the backing store that sits
// behind a framed unix stream socket.
//
// Every request is one frame holding a text command; every reply is one frame
// of the form "<status> <payload>" where status is ok, due, err or ign.
// Transport failures that a reconnect can fix are retried with jittered
// exponential backoff.
package store
