package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/buttplug/internal/checker"
	"github.com/srg/buttplug/internal/deviceconfig"
	"github.com/srg/buttplug/internal/devicemanager"
	"github.com/srg/buttplug/internal/versionconvert"
	"github.com/srg/buttplug/internal/wire"
)

// sink collects every message emitted by a Frontend for assertions.
type sink struct {
	mu  sync.Mutex
	out []wire.Message
}

func (s *sink) send(msg wire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, msg)
}

func (s *sink) last() wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.out) == 0 {
		return nil
	}
	return s.out[len(s.out)-1]
}

func newTestFrontend(maxPing time.Duration) (*Frontend, *sink) {
	cfgMgr := deviceconfig.NewBuilder(nil).Build()
	mgr := devicemanager.New(nil, cfgMgr, nil, nil)
	lookup := func(uint32) (*deviceconfig.DeviceDefinition, bool) { return nil, false }
	s := &sink{}
	f := New(Config{
		ServerName:  "test-server",
		MaxPingTime: maxPing,
		Devices:     mgr,
		Converter:   versionconvert.New(lookup),
		Checker:     checker.New(lookup),
		Names:       NewNameRegistry(),
		Send:        s.send,
	})
	return f, s
}

func TestFrontend_Handshake_V4(t *testing.T) {
	f, s := newTestFrontend(0)
	f.HandleMessage(nil, wire.RequestServerInfo{Id: 1, ClientName: "alice", MessageVersion: wire.SpecV4})

	info, ok := s.last().(wire.ServerInfo)
	require.True(t, ok)
	assert.Equal(t, wire.Id(1), info.Id)
	assert.Equal(t, "test-server", info.ServerName)
	assert.Equal(t, wire.SpecV4, info.MessageVersion)
}

func TestFrontend_Handshake_MajorVersionCompatQuirk(t *testing.T) {
	f, s := newTestFrontend(0)
	f.HandleMessage(nil, wire.RequestServerInfo{Id: 1, ClientName: "alice", MessageVersion: wire.SpecV2})

	info := s.last().(wire.ServerInfo)
	assert.Equal(t, wire.SpecV2, info.MessageVersion)
}

func TestFrontend_Handshake_Twice_Fails(t *testing.T) {
	f, s := newTestFrontend(0)
	f.HandleMessage(nil, wire.RequestServerInfo{Id: 1, ClientName: "alice", MessageVersion: wire.SpecV4})
	f.HandleMessage(nil, wire.RequestServerInfo{Id: 2, ClientName: "alice", MessageVersion: wire.SpecV4})

	errMsg, ok := s.last().(wire.Error)
	require.True(t, ok)
	assert.Equal(t, wire.ErrorInit, errMsg.ErrorCode)
}

func TestFrontend_MessageBeforeHandshake_RequestServerInfoExpected(t *testing.T) {
	f, s := newTestFrontend(0)
	f.HandleMessage(nil, wire.Ping{Id: 5})

	errMsg, ok := s.last().(wire.Error)
	require.True(t, ok)
	assert.Equal(t, wire.ErrorInit, errMsg.ErrorCode)
	assert.Contains(t, errMsg.ErrorMessage, "RequestServerInfoExpected")
}

func TestFrontend_Reconnect_SameName_Denied(t *testing.T) {
	f1, _ := newTestFrontend(0)
	f1.HandleMessage(nil, wire.RequestServerInfo{Id: 1, ClientName: "alice", MessageVersion: wire.SpecV4})

	cfgMgr := deviceconfig.NewBuilder(nil).Build()
	mgr := devicemanager.New(nil, cfgMgr, nil, nil)
	lookup := func(uint32) (*deviceconfig.DeviceDefinition, bool) { return nil, false }
	s2 := &sink{}
	f2 := New(Config{
		Devices:   mgr,
		Converter: versionconvert.New(lookup),
		Checker:   checker.New(lookup),
		Names:     f1.cfg.Names, // shared registry, as pkg/buttplug.Server would provide
		Send:      s2.send,
	})
	f2.HandleMessage(nil, wire.RequestServerInfo{Id: 1, ClientName: "alice", MessageVersion: wire.SpecV4})

	errMsg, ok := s2.last().(wire.Error)
	require.True(t, ok)
	assert.Contains(t, errMsg.ErrorMessage, "ReconnectDenied")
}

func TestFrontend_Ping_NotRunningWhenDisabled(t *testing.T) {
	f, s := newTestFrontend(0)
	f.HandleMessage(nil, wire.RequestServerInfo{Id: 1, ClientName: "alice", MessageVersion: wire.SpecV4})
	f.HandleMessage(nil, wire.Ping{Id: 2})

	errMsg, ok := s.last().(wire.Error)
	require.True(t, ok)
	assert.Equal(t, wire.ErrorPing, errMsg.ErrorCode)
}

func TestFrontend_Ping_RepliesOkWhileTimerRunning(t *testing.T) {
	f, s := newTestFrontend(30 * time.Millisecond)
	f.HandleMessage(nil, wire.RequestServerInfo{Id: 1, ClientName: "alice", MessageVersion: wire.SpecV4})
	f.HandleMessage(nil, wire.Ping{Id: 2})

	ok, isOk := s.last().(wire.Ok)
	require.True(t, isOk)
	assert.Equal(t, wire.Id(2), ok.Id)
}

func TestFrontend_RequestDeviceList_Empty(t *testing.T) {
	f, s := newTestFrontend(0)
	f.HandleMessage(nil, wire.RequestServerInfo{Id: 1, ClientName: "alice", MessageVersion: wire.SpecV4})
	f.HandleMessage(nil, wire.RequestDeviceList{Id: 2})

	list, ok := s.last().(wire.DeviceList)
	require.True(t, ok)
	assert.Empty(t, list.Devices)
}

func TestFrontend_StopDeviceCmd_UnknownDevice(t *testing.T) {
	f, s := newTestFrontend(0)
	f.HandleMessage(nil, wire.RequestServerInfo{Id: 1, ClientName: "alice", MessageVersion: wire.SpecV4})
	f.HandleMessage(nil, wire.StopDeviceCmd{Id: 2, DeviceIndex: 9})

	errMsg, ok := s.last().(wire.Error)
	require.True(t, ok)
	assert.Equal(t, wire.ErrorDevice, errMsg.ErrorCode)
}
