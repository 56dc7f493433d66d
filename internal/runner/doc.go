// Package runner drives pollers on fixed periods.
//
// Each Runner owns one worker goroutine that calls its poller's Poll in a
// loop. Scheduling is self-paced: the next pass starts one period after the
// previous one started, so a pass that takes 2s of a 60s period is followed
// by a 58s wait. A pass that overruns its period is logged as a warning and
// the next one starts immediately; there is no attempt to catch up on missed
// passes.
//
// The wait between passes is interruptible. Stop signals the worker and then
// waits for it to exit: an in-flight pass always runs to completion, so the
// metric state it is reconciling is never abandoned half-written. Stop is
// safe to call more than once.
//
// A Runner also records the outcome of the latest pass (start time and any
// error), which feeds the HTTP server's readiness and status pages.
//
// Example usage:
//
//	r := runner.Start(p, 60*time.Second, log)
//	defer r.Stop()
//
//	if r.Healthy() {
//		fmt.Println("latest pass succeeded")
//	}
package runner
