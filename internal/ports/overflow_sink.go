package ports

// OverflowSink receives events verbatim, one per line, while the pipeline is
// unavailable.
type OverflowSink interface {
	AppendLine(line []byte) error
}
