package serialmux

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortWritePort reports fewer bytes written than requested.
type shortWritePort struct {
	*TestableSerialPort
}

func (p shortWritePort) Write(b []byte) (int, error) { return len(b) - 1, nil }

func collect(ch chan string) []string {
	var out []string
	for line := range ch {
		out = append(out, line)
	}
	return out
}

func TestMonitorFansOutLines(t *testing.T) {
	port := NewTestableSerialPort("L 1 2 100\nR 3 0.1 0.5 200\n")
	mux := NewSerialMux(port)

	id1, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()
	assert.NotEmpty(t, id1)

	require.NoError(t, mux.Monitor(context.Background()), "EOF ends monitoring cleanly")
	require.NoError(t, mux.Close())

	want := []string{"L 1 2 100", "R 3 0.1 0.5 200"}
	assert.Equal(t, want, collect(ch1))
	assert.Equal(t, want, collect(ch2))
	assert.True(t, port.Closed)
	assert.Zero(t, mux.Dropped())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort(""))
	id, ch := mux.Subscribe()

	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	// Unknown IDs are ignored.
	mux.Unsubscribe("missing")
}

func TestMonitorStopsOnCancel(t *testing.T) {
	port := NewTestableSerialPort("")
	port.BlockReads = true
	mux := NewSerialMux(port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, mux.Close())
}

func TestMonitorDeliversLateData(t *testing.T) {
	port := NewTestableSerialPort("")
	port.BlockReads = true
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = mux.Monitor(ctx)
	}()

	port.AddReadData([]byte("L 5 6 300\n"))
	select {
	case line := <-ch:
		assert.Equal(t, "L 5 6 300", line)
	case <-time.After(2 * time.Second):
		t.Fatal("line not delivered")
	}

	cancel()
	wg.Wait()
	require.NoError(t, mux.Close())
}

func TestMonitorDropsForSlowSubscriber(t *testing.T) {
	var data []byte
	for i := 0; i < subscriberBuffer+10; i++ {
		data = append(data, "L 1 1 1\n"...)
	}
	mux := NewSerialMux(NewTestableSerialPort(string(data)))
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))
	assert.Equal(t, uint64(10), mux.Dropped())
	assert.Len(t, ch, subscriberBuffer)
	require.NoError(t, mux.Close())
}

func TestSendCommand(t *testing.T) {
	port := NewTestableSerialPort("")
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("OJ"))
	require.NoError(t, mux.SendCommand("OS\n"))
	assert.Equal(t, "OJ\nOS\n", port.GetWrittenData())

	port.WriteError = errors.New("boom")
	assert.EqualError(t, mux.SendCommand("X"), "boom")
}

func TestSendCommandShortWrite(t *testing.T) {
	mux := NewSerialMux(shortWritePort{NewTestableSerialPort("")})
	assert.ErrorIs(t, mux.SendCommand("OJ"), ErrWriteFailed)
}

func TestInitialize(t *testing.T) {
	port := NewTestableSerialPort("")
	mux := NewSerialMux(port)

	require.NoError(t, mux.Initialize())
	assert.Empty(t, port.GetWrittenData())

	require.NoError(t, mux.Initialize("FMT TEXT", "START"))
	assert.Equal(t, "FMT TEXT\nSTART\n", port.GetWrittenData())

	port.WriteError = errors.New("boom")
	err := mux.Initialize("START")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"START"`)
}

func TestMuxSatisfiesInterface(t *testing.T) {
	var _ SerialMuxInterface = NewSerialMux(NewTestableSerialPort(""))
}
