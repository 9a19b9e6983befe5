package serial

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	bugst "go.bug.st/serial"

	"github.com/llhlol/IWR1443-data-collection/errors"
)

// readBufferSize is the reused inbound buffer. Handlers must consume or
// copy delivered bytes synchronously in OnRead; the buffer is overwritten
// by the next read.
const readBufferSize = 4096

// readErrorBackoff throttles re-armed reads against a port that fails
// immediately, so a dead device does not spin the reader.
const readErrorBackoff = 100 * time.Millisecond

// openPort is swapped in tests to avoid real devices.
var openPort = func(name string, mode *bugst.Mode) (bugst.Port, error) {
	return bugst.Open(name, mode)
}

// ReadFunc receives inbound bytes. The slice aliases the port's reused
// read buffer and is only valid for the duration of the call.
type ReadFunc func(p []byte)

// WriteCompleteFunc is invoked after each completed write buffer, before
// the queue head is popped.
type WriteCompleteFunc func()

// PortDeps holds the dependencies a Port is composed from.
type PortDeps struct {
	Reactor         *Reactor
	OnRead          ReadFunc
	OnWriteComplete WriteCompleteFunc
	Logger          *slog.Logger
}

// Port is an asynchronous serial endpoint. It keeps at most one in-flight
// read and one in-flight write; completed operations are reported through
// the reactor, which calls OnIOComplete on its dispatch goroutine.
type Port struct {
	reactor         *Reactor
	onRead          ReadFunc
	onWriteComplete WriteCompleteFunc
	logger          *slog.Logger

	mu   sync.Mutex // guards port handle and name
	port bugst.Port
	name string
	baud int

	readBuf []byte

	writeMu    sync.Mutex
	writeQueue [][]byte

	readArm  chan struct{}
	writeArm chan []byte
	closed   chan struct{}
	wg       sync.WaitGroup
}

var _ AsyncHandle = (*Port)(nil)

// NewPort creates an uninitialized port. Initialize must be called before
// registering it with the reactor.
func NewPort(deps PortDeps) *Port {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "serial-port")
	}
	return &Port{
		reactor:         deps.Reactor,
		onRead:          deps.OnRead,
		onWriteComplete: deps.OnWriteComplete,
		logger:          logger,
		readBuf:         make([]byte, readBufferSize),
		readArm:         make(chan struct{}, 1),
		writeArm:        make(chan []byte, 1),
		closed:          make(chan struct{}),
	}
}

// Initialize opens and configures the named port: 8 data bits, no parity,
// one stop bit, RTS and DTR asserted, no flow control, both directions
// purged. Initializing an already-open port succeeds with a warning. On
// failure every partially acquired resource is released before returning.
func (p *Port) Initialize(name string, baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port != nil {
		p.logger.Warn("port already initialized", "port", p.name)
		return nil
	}

	mode := &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}

	sp, err := openPort(name, mode)
	if err != nil {
		return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrPortOpenFailed, err),
			"Port", "Initialize", "open "+name)
	}

	if err := p.configure(sp); err != nil {
		_ = sp.Close()
		return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrPortConfigFailed, err),
			"Port", "Initialize", "configure "+name)
	}

	p.port = sp
	p.name = name
	p.baud = baud
	p.logger.Info("serial port opened", "port", name, "baud", baud)
	return nil
}

// configure asserts the modem lines and purges stale bytes in both
// directions.
func (p *Port) configure(sp bugst.Port) error {
	if err := sp.SetRTS(true); err != nil {
		return fmt.Errorf("assert RTS: %w", err)
	}
	if err := sp.SetDTR(true); err != nil {
		return fmt.Errorf("assert DTR: %w", err)
	}
	if err := sp.ResetInputBuffer(); err != nil {
		return fmt.Errorf("purge input: %w", err)
	}
	if err := sp.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("purge output: %w", err)
	}
	return nil
}

// Name returns the configured port name.
func (p *Port) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// OnRegister starts the I/O goroutines and arms the first read.
func (p *Port) OnRegister() {
	p.mu.Lock()
	ready := p.port != nil
	p.mu.Unlock()

	if !ready {
		p.logger.Error("port registered before initialization; no I/O started")
		return
	}

	p.wg.Add(2)
	go p.readLoop()
	go p.writeLoop()
	p.armRead()
}

// AsyncWrite enqueues a copy of data. If the queue transitions from empty
// to non-empty the write is started immediately; otherwise the completion
// of the preceding buffer starts it.
func (p *Port) AsyncWrite(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	p.writeMu.Lock()
	p.writeQueue = append(p.writeQueue, buf)
	if len(p.writeQueue) == 1 {
		p.startWriteLocked(buf)
	}
	p.writeMu.Unlock()
}

// OnIOComplete dispatches one completed operation. Runtime I/O errors are
// logged and the endpoint stays registered; a later completion or explicit
// re-initialization recovers it.
func (p *Port) OnIOComplete(n int, tag Tag, err error) {
	switch tag {
	case TagRead:
		if err != nil {
			p.logger.Error("serial read failed", "port", p.Name(), "error", err)
		}
		if n > 0 && p.onRead != nil {
			p.onRead(p.readBuf[:n])
		}
		p.armRead()

	case TagWrite:
		if err != nil {
			p.logger.Error("serial write failed", "port", p.Name(), "written", n, "error", err)
		}
		if p.onWriteComplete != nil {
			p.onWriteComplete()
		}
		p.writeMu.Lock()
		if len(p.writeQueue) > 0 {
			p.writeQueue = p.writeQueue[1:]
		}
		if len(p.writeQueue) > 0 {
			p.startWriteLocked(p.writeQueue[0])
		}
		p.writeMu.Unlock()

	default:
		p.logger.Warn("completion with unexpected tag", "port", p.Name(), "tag", tag)
	}
}

// Close releases the I/O goroutines and closes the OS handle. The port
// must outlive the reactor's Run loop; posts racing with shutdown are
// dropped by the reactor.
func (p *Port) Close() error {
	p.mu.Lock()
	sp := p.port
	p.port = nil
	p.mu.Unlock()

	if sp == nil {
		return nil
	}

	close(p.closed)
	err := sp.Close()
	p.wg.Wait()

	if err != nil {
		return errors.WrapTransient(err, "Port", "Close", "close handle")
	}
	return nil
}

// armRead allows the reader goroutine to issue the next read. The cap-1
// channel keeps at most one read outstanding.
func (p *Port) armRead() {
	select {
	case p.readArm <- struct{}{}:
	default:
		p.logger.Warn("read already armed", "port", p.Name())
	}
}

// startWriteLocked hands the queue head to the writer goroutine. Callers
// hold writeMu and guarantee no write is in flight, so the cap-1 channel
// never blocks.
func (p *Port) startWriteLocked(buf []byte) {
	select {
	case p.writeArm <- buf:
	default:
		p.logger.Error("write already in flight; dropping start", "port", p.Name())
	}
}

// readLoop issues one read per arm and posts the result as a completion.
func (p *Port) readLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.closed:
			return
		case <-p.readArm:
		}

		p.mu.Lock()
		sp := p.port
		p.mu.Unlock()
		if sp == nil {
			return
		}

		n, err := sp.Read(p.readBuf)
		p.reactor.post(completion{handle: p, tag: TagRead, n: n, err: err})

		if err != nil {
			select {
			case <-p.closed:
				return
			case <-time.After(readErrorBackoff):
			}
		}
	}
}

// writeLoop transmits one queued buffer per start and posts the result.
// Bytes within a buffer are transmitted contiguously and in order.
func (p *Port) writeLoop() {
	defer p.wg.Done()

	for {
		var buf []byte
		select {
		case <-p.closed:
			return
		case buf = <-p.writeArm:
		}

		p.mu.Lock()
		sp := p.port
		p.mu.Unlock()
		if sp == nil {
			return
		}

		written := 0
		var werr error
		for written < len(buf) {
			n, err := sp.Write(buf[written:])
			written += n
			if err != nil {
				werr = err
				break
			}
		}
		p.reactor.post(completion{handle: p, tag: TagWrite, n: written, err: werr})
	}
}
