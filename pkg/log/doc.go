// Package log provides the structured logging abstraction used by intake
// components.
//
// Components accept a Logger and never reach for a global. The zerolog
// adapter is what the intaked daemon wires in; NoopLogger is the library
// default and the usual choice in tests.
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	ep := endpoint.New(cfg, q, loop, flag, sink, endpoint.WithLogger(logger))
//
// Use With to bind fields that should appear on every line a component emits:
//
//	chLog := logger.With(log.Component("framed"), log.String("path", path))
package log
