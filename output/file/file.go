package file

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llhlol/IWR1443-data-collection/config"
	"github.com/llhlol/IWR1443-data-collection/errors"
)

// Output appends one JSON record per line to a file, batching writes in
// memory and flushing by count, by interval, and on Stop.
type Output struct {
	directory     string
	filePrefix    string
	append        bool
	bufferSize    int
	flushInterval time.Duration
	logger        *slog.Logger

	file   *os.File
	fileMu sync.Mutex

	buffer   [][]byte
	bufferMu sync.Mutex

	shutdown  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
	wg        sync.WaitGroup

	recordsWritten atomic.Int64
	bytesWritten   atomic.Int64
	writeErrors    atomic.Int64
}

// NewOutput creates a file sink from configuration.
func NewOutput(cfg config.FileOutputConfig, logger *slog.Logger) *Output {
	if logger == nil {
		logger = slog.Default().With("component", "file-output")
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "data"
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	return &Output{
		directory:     cfg.Directory,
		filePrefix:    cfg.FilePrefix,
		append:        cfg.Append,
		bufferSize:    cfg.BufferSize,
		flushInterval: cfg.FlushInterval,
		logger:        logger,
		buffer:        make([][]byte, 0, cfg.BufferSize),
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Path returns the output file path.
func (f *Output) Path() string {
	return filepath.Join(f.directory, f.filePrefix+".jsonl")
}

// Initialize creates the output directory.
func (f *Output) Initialize() error {
	if f.directory == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Output", "Initialize", "directory check")
	}
	if err := os.MkdirAll(f.directory, 0o755); err != nil {
		return errors.WrapFatal(err, "Output", "Initialize", "create output directory")
	}
	return nil
}

// Start opens the file and begins the periodic flush loop.
func (f *Output) Start() error {
	if f.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Output", "Start", "state check")
	}

	flags := os.O_CREATE | os.O_WRONLY
	if f.append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(f.Path(), flags, 0o644)
	if err != nil {
		return errors.WrapFatal(err, "Output", "Start", "open output file")
	}

	f.fileMu.Lock()
	f.file = file
	f.fileMu.Unlock()

	f.running.Store(true)
	f.wg.Add(1)
	go f.flushLoop()

	f.logger.Info("file output started",
		"path", f.Path(), "append", f.append, "buffer_size", f.bufferSize)
	return nil
}

// Write queues one record. Called once per decoded frame, in order.
func (f *Output) Write(record []byte) {
	if !f.running.Load() {
		return
	}

	f.bufferMu.Lock()
	f.buffer = append(f.buffer, append([]byte(nil), record...))
	full := len(f.buffer) >= f.bufferSize
	f.bufferMu.Unlock()

	if full {
		f.flush()
	}
}

// Stop flushes residual records and closes the file.
func (f *Output) Stop(timeout time.Duration) error {
	if !f.running.Load() {
		return nil
	}
	f.running.Store(false)

	f.closeOnce.Do(func() { close(f.shutdown) })

	select {
	case <-f.done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrShuttingDown,
			"Output", "Stop", "flush loop did not stop in time")
	}

	f.flush()

	f.fileMu.Lock()
	defer f.fileMu.Unlock()
	if f.file != nil {
		if err := f.file.Close(); err != nil {
			return errors.WrapTransient(err, "Output", "Stop", "close output file")
		}
		f.file = nil
	}

	f.logger.Info("file output stopped",
		"records", f.recordsWritten.Load(), "bytes", f.bytesWritten.Load())
	return nil
}

// flushLoop drains the buffer on a fixed cadence so idle periods still
// land on disk promptly.
func (f *Output) flushLoop() {
	defer f.wg.Done()
	defer close(f.done)

	ticker := time.NewTicker(f.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.shutdown:
			return
		case <-ticker.C:
			f.flush()
		}
	}
}

// flush writes every buffered record as one line. Failures are logged;
// the sink stays up and later flushes retry with new records.
func (f *Output) flush() {
	f.bufferMu.Lock()
	pending := f.buffer
	f.buffer = make([][]byte, 0, f.bufferSize)
	f.bufferMu.Unlock()

	if len(pending) == 0 {
		return
	}

	f.fileMu.Lock()
	defer f.fileMu.Unlock()
	if f.file == nil {
		return
	}

	for _, record := range pending {
		n, err := f.file.Write(append(record, '\n'))
		if err != nil {
			f.writeErrors.Add(1)
			f.logger.Error("file write failed", "path", f.Path(), "error", err)
			return
		}
		f.recordsWritten.Add(1)
		f.bytesWritten.Add(int64(n))
	}
}
