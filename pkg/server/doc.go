// Package server receives signed ActivityPub deliveries.
//
// Two entry points share the same transport checks:
//
//   - InboxHandler answers 202 once a POST has a Signature header, a Date
//     within the allowed skew, a Digest matching the body and an activity
//     document. The job then goes to an Enqueuer and is verified later by a
//     Processor, because verification may fetch remote actors.
//   - SignatureMiddleware verifies inline and puts the verified result in
//     the request context. It suits low-volume endpoints that want the
//     signer before answering.
//
// # Basic Usage
//
//	queue := server.NewMemoryQueue(1024, 5, time.Second, logger)
//	inbox := server.NewInboxHandler(queue, server.WithLogger(logger))
//	go queue.Run(ctx, 8, server.NewProcessor(inboxVerifier, handler, logger))
//
//	http.ListenAndServe(":8080", server.NewMux(inbox, collectors))
//
// # Dispositions
//
// The Processor maps verification and handler errors through
// federr.Decide. Retryable failures are redelivered with exponential
// backoff until the attempt budget runs out, permanent ones go to the
// dead letters. Unclassified errors are retried and logged at error level.
//
// # Middleware
//
//	middleware := server.NewSignatureMiddleware(inboxVerifier)
//	http.Handle("/inbox", middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	    res, _ := server.ResultFromContext(r.Context())
//	    log.Printf("activity from %s", res.Actor.Actor.ID)
//	})))
//
// OPTIONS requests pass through unverified. Retryable verification
// failures are answered with 503 so the sender retries later, all other
// failures with 401. The request body is restored for the next handler.
package server
