// Package coordinator provides the background save coordinator.
//
// The coordinator guarantees that the host's persist operation runs at most once
// at a time, folds overlapping save requests into a single follow-up pass, and
// gates process termination on completion of any outstanding save.
//
// # Core Interface
//
//	type Coordinator interface {
//	    RequestSave()                          // start or coalesce a save, never blocks
//	    RequestKill(ctx context.Context)       // terminate once the current save ends
//	    RequestCancel()                        // terminate now, lossy
//	    WaitForIdle(ctx context.Context) error // join the running worker
//	    State() State
//	    GetStatus() *status.SaveStatus
//	}
//
// # Usage Example
//
//	c := coordinator.New(
//	    persist.NewFilePersister(src, dst),
//	    process.NewExitTerminator(),
//	    privilege.NewManager(),
//	    coordinator.WithName("document"),
//	)
//
//	c.RequestSave()             // worker starts, pass 1
//	c.RequestSave()             // coalesced: one more pass after pass 1
//	c.RequestKill(ctx)          // waits for both passes, then exits
//
// # Worker Lifecycle
//
// A worker is started by RequestSave when none is running. Before it starts the
// coordinator asks the privilege manager for an elevated scheduling grant; a
// denied grant only changes how RequestKill behaves. The worker then runs passes:
//
//  1. Clear the pending flag
//  2. Invoke the persister
//  3. Stop immediately if the component was unloaded
//  4. Otherwise run again while a save is pending and no kill was requested
//
// When the loop exits the grant is released and the worker slot is cleared in the
// same critical section that decided to exit, so a RequestSave racing with the
// exit either lands in the pending flag before the decision or starts a new worker
// after it.
//
// # Termination
//
// RequestKill marks the coordinator as terminating; no worker starts afterwards.
// With a grant held, a single watcher goroutine waits for the worker and then
// terminates, and RequestKill returns at once. Without a grant, RequestKill blocks
// until the worker is gone. If the caller's context ends first the wait counts as
// interrupted, is logged, and termination proceeds anyway.
//
// RequestCancel terminates immediately without waiting for a pass in progress.
// The terminator runs at most once per coordinator whichever path reaches it.
//
// # Status
//
// Every pass updates an in-memory SaveStatus which is persisted through the
// optional StatusPersistence at each phase transition. Persistence failures are
// logged and never affect the save loop.
package coordinator
