// Package intake provides an embeddable event intake daemon.
//
// Intake listens on a unix datagram socket, queues every datagram as one
// event and hands events to a pool of workers. By default workers forward
// events to a backing store over a length-prefixed unix stream socket.
//
// # Basic Usage
//
//	cfg := intake.DefaultConfig()
//	cfg.SocketPath = "/var/run/intake/queue"
//	cfg.StoreSocket = "/var/run/intake/store"
//
//	in, err := intake.New(cfg, intake.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := in.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := in.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Backpressure and Degrade Mode
//
// When the queue is full the ingestion goroutine retries until a worker frees
// a slot. While degrade mode is on, events skip the queue and are appended to
// the overflow file instead. Degrade mode follows the presence of
// [Config.DegradeFile] when set, and can be driven directly with
// [Intake.SetDegraded].
//
// # Lifecycle States
//
// An Intake instance is in one of [StateStopped], [StateStarting],
// [StateRunning], [StateStopping] or [StateCrashed]. Use [Intake.Status] to
// query the current state.
package intake
