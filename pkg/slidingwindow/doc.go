// Package slidingwindow implements a concurrent scheduler that processes block
// heights within a sliding window. It is designed for indexers that need to
// catch up historical gaps (backfill) while also ingesting new heights as the
// chain advances (realtime), under bounded concurrency and without duplicating
// work.
//
// The window is [lowest..highest], inclusive. lowest is the lowest height not
// yet fully processed; highest is the highest height known so far. The
// invariant highest >= lowest holds at all times.
//
// Main components
//   - State: a thread-safe in-memory store of the window watermarks, the set
//     of out-of-order processed heights, the in-flight claims, and per-height
//     failure counters. AdvanceLowest slides the window forward over
//     contiguous processed heights.
//   - Worker: the user-provided unit of work for a single height.
//   - Manager: the scheduler. It scans the window for unclaimed heights and
//     dispatches workers while respecting a total concurrency limit and a
//     backfill priority cap, so realtime heights always have headroom.
//   - Poller: feeds the manager by polling the chain tip and submitting new
//     heights.
//
// Realtime heights that find no free worker slot are dropped; the backfill
// scan picks them up from the window, so nothing is lost.
package slidingwindow
