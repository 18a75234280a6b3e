// Package dbconn manages one shared database connection for a process that
// serves many overlapping requests and may be started cold at any time.
//
// A Manager caches the connection after the first successful dial. Callers
// that arrive while a connect sequence is running attach to it instead of
// starting their own, so a burst of requests on a cold start produces one
// dial sequence. Failed attempts are retried with exponential backoff
// (BaseDelay, 2*BaseDelay, 4*BaseDelay, ...). When a cached handle stops
// reporting live it is discarded on the next Acquire and a new sequence
// starts.
//
// # Outcomes
//
// Acquire returns a handle, or one of:
//   - ErrConfiguration: no URI, or the URI failed validation. Not retried.
//   - ErrExhausted: every attempt failed. The next Acquire starts over.
//   - ErrPending: Options.BoundedWait elapsed; the sequence keeps running.
//
// # Usage
//
//	conn := dbconn.New(mongo.Dialer(mongo.Options{}), dbconn.Config{
//		URI:      cfg.DB.MongoURI,
//		Options:  dbconn.DefaultOptions(),
//		Validate: mongo.ValidateURI,
//	}, logger)
//
//	client, err := conn.Get(ctx)
//	switch {
//	case err == nil:
//		// use client
//	case errors.Is(err, dbconn.ErrPending), errors.Is(err, dbconn.ErrExhausted):
//		// 503 or degraded mode
//	}
//
// Status and HealthCheck report liveness for health endpoints without
// triggering a reconnect.
package dbconn
