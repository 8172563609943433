// Package core wires the depth pipeline into a running service: simulated
// sensor, interaction bridge, gesture latch, skeleton join and publishing,
// restarted with backoff whenever the sensor fails.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/orion-depth/internal/config"
	"github.com/e7canasta/orion-depth/internal/emitter"
	"github.com/e7canasta/orion-depth/internal/reconnect"
	"github.com/e7canasta/orion-depth/internal/simulator"
	"github.com/e7canasta/orion-depth/internal/warmup"
	"github.com/e7canasta/orion-depth/modules/framefusion"
	"github.com/e7canasta/orion-depth/modules/framejoin"
	"github.com/e7canasta/orion-depth/modules/framestream"
	"github.com/e7canasta/orion-depth/modules/gesturelatch"
	"github.com/e7canasta/orion-depth/modules/interaction"
	"github.com/e7canasta/orion-depth/modules/sensor"
)

// ErrAlreadyRunning is returned by Run on a running service.
var ErrAlreadyRunning = errors.New("core: service already running")

// Publisher sends pipeline messages somewhere.
type Publisher interface {
	Publish(msg emitter.Message) error
	PublishHealth(doc any) error
	Stats() emitter.Stats
}

// Option configures a Service.
type Option func(*Service)

// WithWarmup overrides the warm-up window from the config.
func WithWarmup(d time.Duration) Option {
	return func(s *Service) { s.warmupFor = d }
}

// WithHealthInterval sets how often health is published (default 10s).
func WithHealthInterval(d time.Duration) Option {
	return func(s *Service) { s.healthEvery = d }
}

// WithDeviceConfig adjusts the simulator config of every session.
func WithDeviceConfig(fn func(*simulator.Config)) Option {
	return func(s *Service) { s.tweakDevice = fn }
}

// Service is the depthd orchestrator
type Service struct {
	cfg *config.Config
	pub Publisher

	warmupFor   time.Duration
	healthEvery time.Duration
	tweakDevice func(*simulator.Config)

	restarts reconnect.State
	join     framejoin.Counters

	// Lifecycle management
	mu        sync.RWMutex
	started   time.Time
	isRunning bool
	current   *session
	warm      *warmup.Stats
}

// session is one device lifetime.
type session struct {
	device *simulator.Device
	proc   *simulator.Processor
	fuser  *framefusion.Fuser
	table  *gesturelatch.Table

	mu      sync.Mutex // bridge and mailbox are set after warm-up
	bridge  *interaction.Bridge
	mailbox *framestream.Mailbox[handsFrame]
}

func (ss *session) bridgeRef() *interaction.Bridge {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.bridge
}

func (ss *session) mailboxRef() *framestream.Mailbox[handsFrame] {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.mailbox
}

// New creates a service. pub may be nil, in which case messages are only logged.
func New(cfg *config.Config, pub Publisher, opts ...Option) *Service {
	if pub == nil {
		pub = &logPublisher{}
	}
	s := &Service{
		cfg:         cfg,
		pub:         pub,
		warmupFor:   time.Duration(cfg.Sensor.WarmupSeconds) * time.Second,
		healthEvery: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the pipeline and blocks until ctx is cancelled or the sensor
// keeps failing past the reconnect budget.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.isRunning = true
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.current = nil
		s.mu.Unlock()
	}()

	slog.Info("depthd service starting", "instance_id", s.cfg.InstanceID)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reconnect.Run(gctx, s.runSession, s.reconnectConfig(), &s.restarts)
	})
	g.Go(func() error {
		s.publishHealth(gctx)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	slog.Info("depthd service stopped", "restarts", s.restarts.Restarts.Load(), "error", err)
	return err
}

func (s *Service) reconnectConfig() reconnect.Config {
	return reconnect.Config{
		MaxRetries:    s.cfg.Reconnect.MaxRetries,
		RetryDelay:    time.Duration(s.cfg.Reconnect.InitialDelayMs) * time.Millisecond,
		MaxRetryDelay: time.Duration(s.cfg.Reconnect.MaxDelayMs) * time.Millisecond,
	}
}

func (s *Service) deviceConfig() (simulator.Config, error) {
	color, err := s.cfg.Sensor.Color()
	if err != nil {
		return simulator.Config{}, err
	}
	depth, err := s.cfg.Sensor.Depth()
	if err != nil {
		return simulator.Config{}, err
	}
	dc := simulator.Config{
		FPS:         s.cfg.Sensor.FPS,
		ColorFormat: color,
		DepthFormat: depth,
		Skeletons:   s.cfg.Sensor.Skeletons,
		DropRate:    s.cfg.Sensor.DropRate,
		FailAfter:   time.Duration(s.cfg.Sensor.FailAfterS) * time.Second,
		GripPeriod:  time.Duration(s.cfg.Sensor.GripPeriodS * float64(time.Second)),
		Seed:        uint64(time.Now().UnixNano()),
	}
	if s.tweakDevice != nil {
		s.tweakDevice(&dc)
	}
	return dc, nil
}

// runSession runs one device from start to failure.
func (s *Service) runSession(ctx context.Context, ready func()) error {
	dc, err := s.deviceConfig()
	if err != nil {
		return fmt.Errorf("core: device config: %w", err)
	}

	sess := &session{
		device: simulator.NewDevice(dc),
		proc:   simulator.NewProcessor(),
		fuser:  framefusion.New(),
		table:  gesturelatch.NewTable(),
	}

	if err := sess.device.Start(ctx); err != nil {
		return fmt.Errorf("core: start device: %w", err)
	}
	defer sess.device.Stop()

	s.setSession(sess)

	if err := s.warmup(ctx, sess); err != nil {
		return err
	}

	hands, err := s.pipeline(sess)
	if err != nil {
		return err
	}

	mailbox := framestream.Latest(hands)
	defer mailbox.Close()

	sess.mu.Lock()
	sess.mailbox = mailbox
	sess.mu.Unlock()

	ready()
	slog.Info("depthd pipeline running", "session", sess.device.SessionID())

	return s.consume(ctx, mailbox)
}

func (s *Service) warmup(ctx context.Context, sess *session) error {
	all, err := sensor.AllFrames(sess.device)
	if err != nil {
		return err
	}
	composites, err := sess.fuser.Streams(all)
	if err != nil {
		return err
	}

	stats, err := warmup.Measure(ctx, composites, func(c framefusion.Composite) time.Time {
		return time.UnixMilli(c.Timestamps.Depth)
	}, s.warmupFor)

	switch {
	case errors.Is(err, warmup.ErrUnstable):
		slog.Warn("fused stream unstable, continuing", "error", err)
	case err != nil:
		return fmt.Errorf("core: warm-up: %w", err)
	}

	s.mu.Lock()
	s.warm = &stats
	s.mu.Unlock()
	return nil
}

// pipeline builds bridge → latch, joined with the skeleton stream.
func (s *Service) pipeline(sess *session) (framestream.Stream[handsFrame], error) {
	var zero framestream.Stream[handsFrame]

	bridge, err := interaction.NewBridge(sess.device, sess.proc, interaction.WithFuser(sess.fuser))
	if err != nil {
		return zero, fmt.Errorf("core: bridge: %w", err)
	}
	sess.mu.Lock()
	sess.bridge = bridge
	sess.mu.Unlock()

	latched, err := gesturelatch.ContinuousGrippedState(bridge.Stream(),
		gesturelatch.WithEvictAfter(s.cfg.Pipeline.LatchEvictTicks),
		gesturelatch.WithTable(sess.table),
	)
	if err != nil {
		return zero, fmt.Errorf("core: latch: %w", err)
	}

	frames, err := sensor.SkeletonFrames(sess.device)
	if err != nil {
		return zero, err
	}
	skeletons, err := framefusion.Skeletons(frames)
	if err != nil {
		return zero, err
	}

	return framejoin.CombineLatestWithExpiry(latched, skeletons, joinHands,
		s.cfg.Pipeline.JoinTolerance(),
		framejoin.WithCounters(&s.join),
	)
}

// consume publishes the newest joined frame and any grip changes until the
// pipeline terminates.
func (s *Service) consume(ctx context.Context, mailbox *framestream.Mailbox[handsFrame]) error {
	tracker := newGripTracker()

	for {
		f, err := mailbox.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("core: pipeline terminated: %w", err)
		}

		if err := s.pub.Publish(snapshot(s.cfg.InstanceID, f)); err != nil {
			slog.Debug("hands publish failed", "error", err)
		}
		for _, c := range tracker.update(s.cfg.InstanceID, f) {
			slog.Info("grip state changed",
				"tracking_id", c.TrackingID,
				"hand", c.Hand,
				"gripped", c.Gripped,
			)
			if err := s.pub.Publish(c); err != nil {
				slog.Warn("grip publish failed", "error", err)
			}
		}
	}
}

func (s *Service) publishHealth(ctx context.Context) {
	ticker := time.NewTicker(s.healthEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.pub.PublishHealth(s.HealthCheck()); err != nil {
				slog.Debug("health publish failed", "error", err)
			}
		}
	}
}

func (s *Service) setSession(sess *session) {
	s.mu.Lock()
	s.current = sess
	s.warm = nil
	s.mu.Unlock()
}

// logPublisher is used when no broker is configured.
type logPublisher struct {
	mu        sync.Mutex
	published map[string]uint64
}

func (p *logPublisher) Publish(msg emitter.Message) error {
	p.count(msg.Type())
	slog.Debug("message (no broker)", "type", msg.Type(), "message", msg)
	return nil
}

func (p *logPublisher) PublishHealth(doc any) error {
	p.count("health")
	return nil
}

func (p *logPublisher) count(kind string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.published == nil {
		p.published = make(map[string]uint64)
	}
	p.published[kind]++
}

func (p *logPublisher) Stats() emitter.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return emitter.Stats{Published: published}
}
