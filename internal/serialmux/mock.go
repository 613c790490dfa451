package serialmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// TestableSerialPort implements SerialPorter with configurable behaviour for
// tests and for replaying a capture through the serial code path.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// WriteError is returned by the next Write call if set
	WriteError error

	// Closed indicates whether Close was called
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called.
	// Without it an empty buffer reads as io.EOF.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort preloaded with data.
func NewTestableSerialPort(data string) *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBufferString(data),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read reads from the read buffer.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.BlockReads {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
	}
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.ReadBuffer.Len() == 0 {
		return 0, io.EOF
	}
	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer, returning WriteError once if set.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast()
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal()
}

// GetWrittenData returns all data written to the port.
func (t *TestableSerialPort) GetWrittenData() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.String()
}
