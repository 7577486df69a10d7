// Package queue provides the bounded FIFO that sits between the ingestion
// endpoint and the pipeline workers.
//
// Bounded has exactly the two operations the ingestion path relies on: a
// non-blocking TryPush for the reactor goroutine and a blocking Pop for
// workers. Closing the queue lets workers drain what is left and exit.
package queue
