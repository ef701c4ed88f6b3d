// Package devicetask runs the per-device command loop: one goroutine per
// connected device that intakes output commands, batches them over the
// device's configured message gap with overlap deduplication against a
// real hardware-command deque, applies the protocol's keepalive strategy
// when idle, and drains the precomputed per-feature stop commands on
// request (spec §4.5).
package devicetask

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/buttplug/internal/feature"
	"github.com/srg/buttplug/internal/groutine"
	"github.com/srg/buttplug/internal/hardware"
	"github.com/srg/buttplug/internal/protocol"
)

// DefaultMessageGap is used when a device has no configured message gap
// (spec §4.5's default batching window).
const DefaultMessageGap = 100 * time.Millisecond

// DefaultKeepaliveCheckInterval is how often the task checks whether the
// protocol's KeepaliveStrategy has anything to send.
const DefaultKeepaliveCheckInterval = 1 * time.Second

// SubscribableInput names one input feature the protocol lets a client
// subscribe to, so Stop can unsubscribe it (spec §4.5 step 4).
type SubscribableInput struct {
	Ref  protocol.FeatureRef
	Kind feature.InputType
}

// outputIntake is one queued output command, keyed by feature+kind so a
// later intake for the same pair supersedes an earlier one still waiting
// in the batch window.
type outputIntake struct {
	ref   protocol.FeatureRef
	kind  feature.OutputType
	value int32
}

// Task owns one device's command loop for the lifetime of its connection.
// Output commands batch over the message gap; Input and Stop requests run
// synchronously in the caller's goroutine, flushing any already-batched
// output first so that commands reach the hardware in the order the
// client issued them (spec §5's single-device ordering guarantee).
type Task struct {
	logger *logrus.Logger

	hw      hardware.Hardware
	handler protocol.Handler

	messageGap time.Duration
	prefilter  protocol.ValueCommandPrefilterStrategy
	keepalive  protocol.KeepaliveStrategy

	stopCommands []hardware.Command
	inputs       []SubscribableInput

	mu           sync.Mutex
	pendingOrder []string
	pendingByKey map[string]outputIntake
	lastAccepted map[string]int32

	// execMu serializes every path that touches the hardware-command
	// deque and hw.Execute: the run loop's gap-timer flush and the
	// synchronous Input/Stop calls from the server goroutine.
	execMu sync.Mutex

	intake chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// Config collects everything needed to run a Task, resolved by the
// device manager from the device's DeviceDefinition and ProtocolHandler.
type Config struct {
	Logger     *logrus.Logger
	Hardware   hardware.Hardware
	Handler    protocol.Handler
	MessageGap time.Duration

	// StopCommands is the set of per-feature zero-valued commands
	// precomputed once at bring-up (spec §4.5 "Stop-command
	// precomputation"), drained whenever Stop runs.
	StopCommands []hardware.Command

	// Inputs lists the subscribable input features Stop must unsubscribe.
	Inputs []SubscribableInput

	// Prefilter and Keepalive are optional; a protocol.Handler that also
	// implements these interfaces activates them automatically via New.
	Prefilter protocol.ValueCommandPrefilterStrategy
	Keepalive protocol.KeepaliveStrategy
}

// New constructs and starts a Task's goroutine.
func New(cfg Config) *Task {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	gap := cfg.MessageGap
	if gap <= 0 {
		gap = DefaultMessageGap
	}

	prefilter := cfg.Prefilter
	if prefilter == nil {
		if p, ok := cfg.Handler.(protocol.ValueCommandPrefilterStrategy); ok {
			prefilter = p
		}
	}
	keepalive := cfg.Keepalive
	if keepalive == nil {
		if k, ok := cfg.Handler.(protocol.KeepaliveStrategy); ok {
			keepalive = k
		}
	}

	t := &Task{
		logger:       logger,
		hw:           cfg.Hardware,
		handler:      cfg.Handler,
		messageGap:   gap,
		prefilter:    prefilter,
		keepalive:    keepalive,
		stopCommands: cfg.StopCommands,
		inputs:       cfg.Inputs,
		pendingByKey: make(map[string]outputIntake),
		lastAccepted: make(map[string]int32),
		intake:       make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	groutine.GoSupervised(context.Background(), logger, "devicetask", t.run)
	return t
}

func outputKey(ref protocol.FeatureRef, kind feature.OutputType) string {
	return ref.FeatureID + "\x00" + string(kind)
}

// SendOutput queues an output command. If an earlier, not-yet-flushed
// command for the same feature+kind is still pending, it is replaced
// rather than both being sent (spec §4.5, testable property 5). If value
// exactly matches the last command actually flushed for this feature+kind,
// it is dropped without ever reaching the handler or the hardware: true
// idempotent no-op across flush boundaries (testable property 3).
func (t *Task) SendOutput(ref protocol.FeatureRef, kind feature.OutputType, value int32) {
	key := outputKey(ref, kind)

	t.mu.Lock()
	if last, ok := t.lastAccepted[key]; ok && last == value {
		t.mu.Unlock()
		return
	}
	if _, exists := t.pendingByKey[key]; !exists {
		t.pendingOrder = append(t.pendingOrder, key)
	}
	t.pendingByKey[key] = outputIntake{ref: ref, kind: kind, value: value}
	t.mu.Unlock()

	select {
	case t.intake <- struct{}{}:
	default:
	}
}

// Input runs a read or subscription-change request against the device,
// flushing any already-batched output first so this request lands after
// everything the client queued before it (spec §5).
func (t *Task) Input(ctx context.Context, ref protocol.FeatureRef, kind feature.InputType, cmd feature.InputCommandType) error {
	t.execMu.Lock()
	defer t.execMu.Unlock()

	t.flushLocked(ctx)

	cmds, err := t.handler.HandleInputCommand(ctx, ref, kind, cmd)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		if err := t.hw.Execute(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Stop flushes any already-batched output, then drains the precomputed
// stop commands, clears the idempotency cache so a repeated command after
// Stop is not mistaken for a no-op, and unsubscribes every subscribable
// input (spec §4.5 step 4). It does not tear down the task's goroutine;
// Close does that.
func (t *Task) Stop(ctx context.Context) {
	t.execMu.Lock()
	defer t.execMu.Unlock()

	t.flushLocked(ctx)

	var deque []hardware.Command
	for _, c := range t.stopCommands {
		deque = hardware.MergeCommand(deque, c)
	}
	t.drain(ctx, deque)

	t.mu.Lock()
	t.lastAccepted = make(map[string]int32)
	t.mu.Unlock()

	for _, in := range t.inputs {
		if _, err := t.handler.HandleInputCommand(ctx, in.Ref, in.Kind, feature.InputCommandUnsubscribe); err != nil {
			t.logger.WithFields(logrus.Fields{
				"feature": in.Ref.FeatureID, "error": err,
			}).Warn("devicetask: input unsubscribe on stop failed")
		}
	}
}

// Close requests the run goroutine to exit, best-effort flushing the last
// batch and sending the precomputed stop commands first, and blocks until
// it has. Used when the device disconnects or is replaced.
func (t *Task) Close(ctx context.Context) {
	t.Stop(ctx)
	close(t.stop)
	<-t.done
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(DefaultKeepaliveCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-t.intake:
			t.flushAfterGap(ctx)
		case <-ticker.C:
			t.checkKeepalive(ctx)
		}
	}
}

// flushAfterGap waits the configured message gap from the first intake in
// this batch, absorbing any further intakes that arrive during the
// window, then flushes the deduplicated set.
func (t *Task) flushAfterGap(ctx context.Context) {
	timer := time.NewTimer(t.messageGap)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			t.execMu.Lock()
			t.flushLocked(ctx)
			t.execMu.Unlock()
			return
		case <-t.intake:
			// Another command arrived inside the gap window; it's already
			// merged into t.pendingByKey by SendOutput, just keep waiting.
			continue
		case <-t.stop:
			t.execMu.Lock()
			t.flushLocked(ctx)
			t.execMu.Unlock()
			return
		}
	}
}

// flushLocked drains the pending output batch into hardware Commands and
// executes them. Callers must hold execMu.
func (t *Task) flushLocked(ctx context.Context) {
	t.mu.Lock()
	order := t.pendingOrder
	byKey := t.pendingByKey
	t.pendingOrder = nil
	t.pendingByKey = make(map[string]outputIntake)
	t.mu.Unlock()

	if len(order) == 0 {
		return
	}

	var deque []hardware.Command
	accepted := make(map[string]int32, len(order))
	for _, key := range order {
		intake := byKey[key]
		cmds, err := t.handler.HandleOutputCommand(ctx, intake.ref, intake.kind, intake.value)
		if err != nil {
			t.logger.WithFields(logrus.Fields{
				"feature": intake.ref.FeatureID, "kind": intake.kind, "error": err,
			}).Warn("devicetask: output command translation failed")
			continue
		}
		for _, c := range cmds {
			deque = hardware.MergeCommand(deque, c)
		}
		accepted[key] = intake.value
	}

	if t.prefilter != nil {
		deque = t.prefilter.Prefilter(deque)
	}
	t.drain(ctx, deque)

	t.mu.Lock()
	for key, value := range accepted {
		t.lastAccepted[key] = value
	}
	t.mu.Unlock()
}

// drain executes deque's commands strictly front-to-back (spec §5).
// Callers must hold execMu.
func (t *Task) drain(ctx context.Context, deque []hardware.Command) {
	for _, cmd := range deque {
		if err := t.hw.Execute(ctx, cmd); err != nil {
			t.logger.WithFields(logrus.Fields{
				"endpoint": cmd.Endpoint, "error": err,
			}).Warn("devicetask: hardware command failed")
		}
	}
}

func (t *Task) checkKeepalive(ctx context.Context) {
	if t.keepalive == nil {
		return
	}
	idle := time.Since(t.hw.LastActivity())
	cmd, ok := t.keepalive.KeepaliveCommand(idle)
	if !ok {
		return
	}
	t.execMu.Lock()
	defer t.execMu.Unlock()
	if err := t.hw.Execute(ctx, cmd); err != nil {
		t.logger.WithField("error", err).Warn("devicetask: keepalive command failed")
	}
}
