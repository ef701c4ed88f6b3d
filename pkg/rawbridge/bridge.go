// Package rawbridge exposes one hardware endpoint as a PTY: bytes written
// to the PTY become raw writes against the endpoint, and data arriving on
// the endpoint is mirrored back into the PTY. It has no notion of what
// transport or protocol is behind the endpoint; cmd/buttplugd's raw
// subcommand is the only caller: it supplies the endpoint write function
// and feeds endpoint data in through WriteFromDevice.
package rawbridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Bridge mirrors a PTY onto a caller-supplied write function.
type Bridge struct {
	ptyMaster   *os.File
	ptySlave    *os.File
	logger      *logrus.Logger
	writeFunc   func([]byte) error
	isRunning   bool
	runMutex    sync.RWMutex
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// BridgeOptions configures the PTY bridge.
type BridgeOptions struct {
	PTYName    string // Optional: custom PTY name
	BufferSize int    // Buffer size for data transfer
}

// DefaultBridgeOptions returns sensible defaults for the PTY bridge.
func DefaultBridgeOptions() *BridgeOptions {
	return &BridgeOptions{
		PTYName:    "", // Let system assign
		BufferSize: 1024,
	}
}

// NewBridge creates a new PTY bridge.
func NewBridge(logger *logrus.Logger) *Bridge {
	if logger == nil {
		logger = logrus.New()
	}

	return &Bridge{
		logger:      logger,
		isRunning:   false,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start creates the PTY and begins mirroring it onto writeFunc, which is
// called with every chunk read from the PTY's master side (e.g. a raw
// hardware write against the bridged endpoint).
func (b *Bridge) Start(ctx context.Context, opts *BridgeOptions, writeFunc func([]byte) error) error {
	b.runMutex.Lock()
	defer b.runMutex.Unlock()

	if b.isRunning {
		return fmt.Errorf("bridge is already running")
	}

	if writeFunc == nil {
		return fmt.Errorf("write function is required")
	}

	b.writeFunc = writeFunc

	master, slave, err := pty.Open()
	if err != nil {
		return fmt.Errorf("failed to create PTY: %w", err)
	}

	b.ptyMaster = master
	b.ptySlave = slave

	ptyName := b.ptySlave.Name()
	b.logger.WithField("pty", ptyName).Info("raw bridge: PTY created")

	if _, err := term.MakeRaw(int(b.ptySlave.Fd())); err != nil {
		b.logger.WithError(err).Warn("raw bridge: failed to set PTY to raw mode")
	}

	b.isRunning = true

	go b.readFromPTY(ctx, opts.BufferSize)
	go b.monitorContext(ctx)

	b.logger.WithField("pty", ptyName).Info("raw bridge: started, connect your application to this device file")

	return nil
}

// WriteToDevice forwards data read from the PTY to the bridged endpoint.
func (b *Bridge) WriteToDevice(data []byte) error {
	b.runMutex.RLock()
	writeFunc := b.writeFunc
	running := b.isRunning
	b.runMutex.RUnlock()

	if !running {
		return fmt.Errorf("bridge is not running")
	}

	if writeFunc == nil {
		return fmt.Errorf("write function not set")
	}

	b.logger.WithField("bytes", len(data)).Debug("raw bridge: writing to device")
	return writeFunc(data)
}

// WriteFromDevice forwards a notification/read from the bridged endpoint
// into the PTY.
func (b *Bridge) WriteFromDevice(data []byte) error {
	b.runMutex.RLock()
	master := b.ptyMaster
	running := b.isRunning
	b.runMutex.RUnlock()

	if !running {
		return fmt.Errorf("bridge is not running")
	}

	if master == nil {
		return fmt.Errorf("PTY master not available")
	}

	b.logger.WithField("bytes", len(data)).Debug("raw bridge: writing to PTY")

	_, err := master.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to PTY: %w", err)
	}

	return nil
}

// readFromPTY reads data from the PTY and forwards it to the bridged
// endpoint until ctx is cancelled or Stop is called.
func (b *Bridge) readFromPTY(ctx context.Context, bufferSize int) {
	defer func() {
		b.stoppedChan <- struct{}{}
	}()

	buffer := make([]byte, bufferSize)

	for {
		select {
		case <-ctx.Done():
			b.logger.Debug("raw bridge: PTY read goroutine stopping due to context cancellation")
			return
		case <-b.stopChan:
			b.logger.Debug("raw bridge: PTY read goroutine stopping due to stop signal")
			return
		default:
			n, err := b.ptyMaster.Read(buffer)
			if err != nil {
				if err == io.EOF {
					b.logger.Debug("raw bridge: PTY closed")
					return
				}
				b.logger.WithError(err).Error("raw bridge: error reading from PTY")
				continue
			}

			if n > 0 {
				data := make([]byte, n)
				copy(data, buffer[:n])

				if err := b.WriteToDevice(data); err != nil {
					b.logger.WithError(err).Error("raw bridge: failed to write data to device")
				}
			}
		}
	}
}

// monitorContext stops the bridge when ctx is cancelled.
func (b *Bridge) monitorContext(ctx context.Context) {
	<-ctx.Done()
	b.logger.Debug("raw bridge: context cancelled, stopping")
	b.Stop()
}

// IsRunning returns whether the bridge is currently active.
func (b *Bridge) IsRunning() bool {
	b.runMutex.RLock()
	defer b.runMutex.RUnlock()
	return b.isRunning
}

// PTYName returns the PTY device file path.
func (b *Bridge) PTYName() string {
	b.runMutex.RLock()
	defer b.runMutex.RUnlock()

	if b.ptySlave != nil {
		return b.ptySlave.Name()
	}
	return ""
}

// Stop stops the PTY bridge.
func (b *Bridge) Stop() error {
	b.runMutex.Lock()
	defer b.runMutex.Unlock()

	if !b.isRunning {
		return fmt.Errorf("bridge is not running")
	}

	b.logger.Info("raw bridge: stopping")

	close(b.stopChan)
	// Closing the master wakes a readFromPTY blocked in Read.
	if b.ptyMaster != nil {
		b.ptyMaster.Close()
	}
	<-b.stoppedChan
	b.ptyMaster = nil

	if b.ptySlave != nil {
		b.ptySlave.Close()
		b.ptySlave = nil
	}

	b.isRunning = false
	b.writeFunc = nil

	b.stopChan = make(chan struct{})
	b.stoppedChan = make(chan struct{})

	b.logger.Info("raw bridge: stopped")
	return nil
}

// Stats returns bridge diagnostics for status reporting.
func (b *Bridge) Stats() map[string]interface{} {
	b.runMutex.RLock()
	defer b.runMutex.RUnlock()

	stats := map[string]interface{}{
		"running": b.isRunning,
	}

	if b.ptySlave != nil {
		stats["pty_name"] = b.ptySlave.Name()
	}

	return stats
}
