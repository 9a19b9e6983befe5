package serial

import (
	"io"
	"sync"
	"time"

	bugst "go.bug.st/serial"
)

// fakePort is an in-memory serial.Port: tests feed inbound bytes with
// push and observe outbound bytes in written.
type fakePort struct {
	mu      sync.Mutex
	inbound [][]byte
	dataCh  chan struct{}
	closed  chan struct{}

	written    []byte
	writeCalls [][]byte
	writeGate  chan struct{} // when non-nil, Write blocks until released

	rts, dtr   bool
	inPurged   bool
	outPurged  bool
	rtsErr     error
	closeOnce  sync.Once
	writeNotif chan struct{}
}

var _ bugst.Port = (*fakePort)(nil)

func newFakePort() *fakePort {
	return &fakePort{
		dataCh:     make(chan struct{}, 64),
		closed:     make(chan struct{}),
		writeNotif: make(chan struct{}, 64),
	}
}

// push makes data available to the next Read call.
func (f *fakePort) push(data []byte) {
	f.mu.Lock()
	f.inbound = append(f.inbound, append([]byte(nil), data...))
	f.mu.Unlock()
	f.dataCh <- struct{}{}
}

func (f *fakePort) Read(p []byte) (int, error) {
	for {
		f.mu.Lock()
		if len(f.inbound) > 0 {
			chunk := f.inbound[0]
			n := copy(p, chunk)
			if n < len(chunk) {
				f.inbound[0] = chunk[n:]
			} else {
				f.inbound = f.inbound[1:]
			}
			f.mu.Unlock()
			return n, nil
		}
		f.mu.Unlock()

		select {
		case <-f.dataCh:
		case <-f.closed:
			return 0, io.ErrClosedPipe
		}
	}
}

func (f *fakePort) Write(p []byte) (int, error) {
	if f.writeGate != nil {
		select {
		case <-f.writeGate:
		case <-f.closed:
			return 0, io.ErrClosedPipe
		}
	}
	f.mu.Lock()
	f.written = append(f.written, p...)
	f.writeCalls = append(f.writeCalls, append([]byte(nil), p...))
	f.mu.Unlock()
	select {
	case f.writeNotif <- struct{}{}:
	default:
	}
	return len(p), nil
}

// wireBytes returns everything written so far.
func (f *fakePort) wireBytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.written...)
}

// waitWrites blocks until at least n Write calls completed.
func (f *fakePort) waitWrites(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		f.mu.Lock()
		calls := len(f.writeCalls)
		f.mu.Unlock()
		if calls >= n {
			return true
		}
		select {
		case <-f.writeNotif:
		case <-deadline:
			return false
		}
	}
}

func (f *fakePort) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakePort) SetMode(*bugst.Mode) error { return nil }
func (f *fakePort) Drain() error              { return nil }

func (f *fakePort) ResetInputBuffer() error {
	f.inPurged = true
	return nil
}

func (f *fakePort) ResetOutputBuffer() error {
	f.outPurged = true
	return nil
}

func (f *fakePort) SetDTR(dtr bool) error {
	f.dtr = dtr
	return nil
}

func (f *fakePort) SetRTS(rts bool) error {
	if f.rtsErr != nil {
		return f.rtsErr
	}
	f.rts = rts
	return nil
}

func (f *fakePort) GetModemStatusBits() (*bugst.ModemStatusBits, error) {
	return &bugst.ModemStatusBits{}, nil
}

func (f *fakePort) SetReadTimeout(time.Duration) error { return nil }
func (f *fakePort) Break(time.Duration) error          { return nil }

// installFakePort redirects openPort at the given fake for one test.
func installFakePort(t interface{ Cleanup(func()) }, fake *fakePort) {
	prev := openPort
	openPort = func(string, *bugst.Mode) (bugst.Port, error) {
		return fake, nil
	}
	t.Cleanup(func() { openPort = prev })
}
