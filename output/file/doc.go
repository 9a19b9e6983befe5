// Package file writes decoded radar frames to disk as JSON lines.
//
// Each record handed to Write is one complete JSON object; the sink adds
// the newline, batches records in memory, and flushes when the batch
// fills, on a fixed interval, and on Stop. Ordering is preserved; the
// sink never reorders or deduplicates records.
//
// Write failures are logged and counted but do not stop the collector:
// telemetry keeps flowing to the other sinks while the disk recovers.
package file
