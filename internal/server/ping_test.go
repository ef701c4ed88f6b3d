package server

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPingTimer_FiresOnTimeout(t *testing.T) {
	var fired int32
	p := newPingTimer(20*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) })
	p.start()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&fired) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, p.expired())
}

func TestPingTimer_ResetPreventsTimeout(t *testing.T) {
	var fired int32
	p := newPingTimer(40*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) })
	p.start()

	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		p.reset()
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestPingTimer_StopPreventsTimeout(t *testing.T) {
	var fired int32
	p := newPingTimer(10*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) })
	p.start()
	p.stop()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestPingTimer_DisabledNeverStarts(t *testing.T) {
	var fired int32
	p := newPingTimer(0, func() { atomic.StoreInt32(&fired, 1) })
	p.start()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.False(t, p.expired())
}
