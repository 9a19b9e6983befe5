// Package iwr1443 documents the IWR1443 radar telemetry collector, a
// daemon that turns the raw UART output of a Texas Instruments IWR1443
// millimeter-wave radar into a stream of JSON records.
//
// # Architecture
//
// The collector multiplexes two serial endpoints over one completion
// reactor and fans decoded frames out to pluggable sinks:
//
//	┌──────────────┐   stdin lines    ┌───────────────┐
//	│   operator   │ ───────────────▶ │ control port  │ 115,200 baud
//	│   console    │ ◀─────────────── │  (radar CLI)  │
//	└──────────────┘   device echo    └───────┬───────┘
//	                                          │ completions
//	                                  ┌───────┴───────┐
//	                                  │    reactor    │  single dispatch
//	                                  └───────┬───────┘  goroutine
//	                                          │ completions
//	┌──────────────┐   TLV frames     ┌───────┴───────┐
//	│ frame/TLV    │ ◀─────────────── │   data port   │ 921,600 baud
//	│ decoder      │                  │   (framer)    │
//	└──────┬───────┘                  └───────────────┘
//	       │ JSON records
//	       ▼
//	file / NATS / Redis / WebSocket sinks
//
// Layering, leaves first:
//
//   - errors: error classification shared by every component
//   - pkg/logbuf, pkg/retry: buffered logging and backoff primitives
//   - metric: Prometheus registration and exposure
//   - serial: the reactor and the asynchronous port (single in-flight
//     read/write, FIFO write queue, serialized per-endpoint completions)
//   - frame: the wire model and the frame-to-JSON decoder
//   - radar: the control and data endpoints binding serial to frame
//   - output/...: the record sinks
//   - cmd/iwr1443-collect: configuration, wiring, and the console loop
//
// The decoder renders frames exactly as the device lays them out; it
// interprets no radar semantics, keeps no history across frames, and
// never reorders or deduplicates records.
package iwr1443
