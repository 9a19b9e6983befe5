package radar

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/llhlol/IWR1443-data-collection/frame"
	"github.com/llhlol/IWR1443-data-collection/metric"
	"github.com/llhlol/IWR1443-data-collection/serial"
)

// DataBaudRate is the IWR1443 telemetry UART speed.
const DataBaudRate = 921600

// Sink receives one JSON record per decoded frame, in frame order, never
// concurrently. The slice is owned by the caller only for the duration of
// the call.
type Sink func(record []byte)

// DataPortDeps holds runtime dependencies for the data endpoint.
type DataPortDeps struct {
	Reactor  *serial.Reactor
	Sink     Sink
	Registry *metric.Registry
	Logger   *slog.Logger
}

// DataPort is the telemetry endpoint: a serial port whose inbound bytes
// run through the resynchronizing framer and the frame decoder. Each
// decoded frame is rendered to JSON and handed to the sink; without a
// configured sink, records go to stdout.
type DataPort struct {
	port   *serial.Port
	framer *Framer
	sink   Sink
	logger *slog.Logger

	metrics *Metrics

	framesDecoded atomic.Int64
	framesDropped atomic.Int64
	bytesReceived atomic.Int64
}

// NewDataPort creates the data endpoint.
func NewDataPort(deps DataPortDeps) *DataPort {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "data-port")
	}

	d := &DataPort{
		sink:    deps.Sink,
		logger:  logger,
		metrics: newMetrics(deps.Registry),
	}
	d.framer = NewFramer(d.handleFrame)
	if d.metrics != nil {
		d.framer.SetResyncCallback(func(discarded int) {
			d.metrics.bytesDiscarded.Add(float64(discarded))
		})
	}
	d.port = serial.NewPort(serial.PortDeps{
		Reactor: deps.Reactor,
		OnRead:  d.handleBytes,
		Logger:  logger,
	})
	return d
}

// Initialize opens the telemetry UART at the fixed data baud rate.
func (d *DataPort) Initialize(portName string) error {
	return d.port.Initialize(portName, DataBaudRate)
}

// Port exposes the underlying endpoint for reactor registration.
func (d *DataPort) Port() *serial.Port {
	return d.port
}

// Close releases the underlying endpoint.
func (d *DataPort) Close() error {
	return d.port.Close()
}

// FramesDecoded returns the number of frames emitted so far.
func (d *DataPort) FramesDecoded() int64 {
	return d.framesDecoded.Load()
}

// handleBytes runs on the reactor goroutine for every completed read.
func (d *DataPort) handleBytes(p []byte) {
	d.bytesReceived.Add(int64(len(p)))
	if d.metrics != nil {
		d.metrics.bytesReceived.Add(float64(len(p)))
		d.metrics.lastActivity.Set(float64(time.Now().Unix()))
	}
	d.framer.Push(p)
}

// handleFrame decodes one complete frame and forwards the JSON record.
// Structural decode failures drop the frame; the framer clears its
// accumulator in response.
func (d *DataPort) handleFrame(frameBytes []byte) error {
	start := time.Now()
	record, err := frame.Decode(frameBytes)
	if err != nil {
		d.framesDropped.Add(1)
		if d.metrics != nil {
			d.metrics.framesDropped.Inc()
		}
		d.logger.Error("frame dropped", "bytes", len(frameBytes), "error", err)
		return err
	}

	d.framesDecoded.Add(1)
	if d.metrics != nil {
		d.metrics.framesDecoded.Inc()
		d.metrics.recordBytes.Observe(float64(len(record)))
		d.metrics.decodeDuration.Observe(time.Since(start).Seconds())
	}

	if d.sink != nil {
		d.sink(record)
	} else {
		record = append(record, '\n')
		_, _ = os.Stdout.Write(record)
	}
	return nil
}
