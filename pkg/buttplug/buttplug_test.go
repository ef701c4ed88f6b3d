package buttplug

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/buttplug/internal/deviceconfig"
)

// rwcPipe adapts a reader plus a buffer into an io.ReadWriteCloser for
// Serve, so the test can feed input and inspect written output.
func newRWC(in io.Reader) *rwcPipe {
	r, w := io.Pipe()
	go func() {
		_, _ = io.Copy(w, in)
		w.Close()
	}()
	return &rwcPipe{r: r, out: &bytes.Buffer{}}
}

type rwcPipe struct {
	r   *io.PipeReader
	out *bytes.Buffer
}

func (p *rwcPipe) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *rwcPipe) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *rwcPipe) Close() error                { return p.r.Close() }

func TestNewServer_RequiresConfig(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func TestNewServer_DefaultsApplied(t *testing.T) {
	cfg := deviceconfig.NewBuilder(nil).Build()
	s, err := NewServer(Options{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, "buttplugd", s.opts.ServerName)
	assert.NotNil(t, s.Devices())
}

func TestServer_Serve_HandshakeRoundTrip(t *testing.T) {
	cfg := deviceconfig.NewBuilder(nil).Build()
	s, err := NewServer(Options{Config: cfg, ServerName: "integration-test"})
	require.NoError(t, err)

	conn := newRWC(bytes.NewBufferString(`[{"RequestServerInfo":{"Id":1,"ClientName":"itest","MessageVersion":4}}]` + "\n"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, conn) }()

	// newRWC's feeder goroutine closes the pipe's write end once the input
	// buffer is drained, which surfaces as io.EOF to Serve's read loop.
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after input closed")
	}

	assert.Contains(t, conn.out.String(), "ServerInfo")
	assert.Contains(t, conn.out.String(), "integration-test")
}
