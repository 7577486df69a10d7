// Package degrade holds the engine-wide "pipeline unavailable" signal.
//
// Flag is an atomic boolean injected into the ingestion endpoint. Watcher
// drives a Flag from a sentinel file so operators and supervising processes
// can switch degrade mode on by creating the file and off by removing it.
package degrade
