// Package asx provides a deterministic, single-threaded cooperative runtime
// kernel: a bounded hierarchy of regions, tasks, and obligations with strict
// cancellation, quiescence, and failure-atomic semantics.
//
// # Architecture
//
// The kernel is built around a [Store] — the fixed-capacity handle arena for
// regions, tasks, obligations, timers, witnesses, and channels — driven by a
// [Kernel] that runs the single-threaded scheduler loop ([Kernel.Run]).
// Every external reference into a Store is a [Handle]: a packed, generation-
// tagged 64-bit value that detects staleness without scanning.
//
// Regions nest and own tasks, obligations, channels, and timers ([Store.OpenRegion],
// [Store.CloseRegion], [Store.AdvanceRegionClose]). Tasks are cooperatively
// polled units of work ([Store.Spawn], [PollFunc]). Obligations are linear
// reserve/resolve tokens ([Store.ReserveObligation], [Store.CommitObligation],
// [Store.AbortObligation]). Cancellation is a monotone severity lattice with
// bounded cleanup ([Store.RequestCancel], [CancelReason]). The bounded
// two-phase MPSC [Store.OpenChannel] enforces queue+reserved <= capacity at
// every step.
//
// # Determinism
//
// Given identical scenario input, seed, profile, and resource class, the
// kernel produces an identical canonical telemetry event stream and rolling
// semantic digest ([Journal], [rollingDigest]) — across repeated runs,
// across codec choices for serialized fixtures (see the fixture package),
// and across operational profiles (see [Profile], [Catalog]).
//
// # Execution model
//
// There is no preemption. A task yields by returning Pending from its poll
// function. Suspension points are exactly: the boundary between task polls,
// channel reserve/recv on a full/empty channel, and waiting on a timer. Each
// scheduler iteration drains the cancel lane, expires due timers, then polls
// the ready lane once per task, in an ordering key of (region depth, task
// sequence number) — never handle numerics or map iteration order.
//
// # Error types
//
// The package provides a closed error taxonomy via [Error] and [Code]:
// every operation returns the most specific classified code; the kernel
// never masks a failure with a weaker one. [ErrorLedger] observes the last
// N classified propagations per task for post-mortem without influencing
// control flow.
package asx
