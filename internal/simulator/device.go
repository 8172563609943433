// Package simulator provides a synthetic depth sensor and interaction
// processor so the pipeline can run without hardware.
//
// Device raises frame-ready ticks from a ticker goroutine at the configured
// rate, drops modalities at random to produce skew, moves its skeletons
// around, and raises and lowers their hands on a fixed period. Processor
// turns those hand heights into grip and release events.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-depth/modules/sensor"
	"github.com/google/uuid"
)

// SkeletonSlots is the number of skeleton records per frame.
const SkeletonSlots = 6

var (
	// ErrDeviceLost is delivered to every handler when the device fails.
	ErrDeviceLost = errors.New("simulator: device lost")

	// ErrAlreadyRunning is returned by Start on a running device.
	ErrAlreadyRunning = errors.New("simulator: device already running")
)

// Config configures a Device
type Config struct {
	FPS         int
	ColorFormat sensor.ColorImageFormat
	DepthFormat sensor.DepthImageFormat
	Skeletons   int     // tracked skeletons, 0..SkeletonSlots
	DropRate    float64 // per-modality drop probability
	FailAfter   time.Duration
	GripPeriod  time.Duration // hand raise/lower period
	Seed        uint64
}

// Stats is a snapshot of device counters.
type Stats struct {
	SessionID       string
	Ticks           uint64
	DroppedColor    uint64
	DroppedDepth    uint64
	DroppedSkeleton uint64
	Opened          uint64
	Released        uint64
	Failed          bool
}

// Device is a synthetic sensor.Device.
type Device struct {
	cfg     Config
	session string

	all      sensor.Handlers[sensor.AllFramesReady]
	color    sensor.Handlers[sensor.ColorFrameReady]
	depth    sensor.Handlers[sensor.DepthFrameReady]
	skeleton sensor.Handlers[sensor.SkeletonFrameReady]

	mu      sync.Mutex
	rng     *rand.Rand
	number  int
	running bool
	failed  bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	gen          atomic.Uint64
	ticks        atomic.Uint64
	dropColor    atomic.Uint64
	dropDepth    atomic.Uint64
	dropSkeleton atomic.Uint64
	opened       atomic.Uint64
	released     atomic.Uint64
}

var _ sensor.Device = (*Device)(nil)

// NewDevice creates a stopped device with a fresh session id.
func NewDevice(cfg Config) *Device {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	cfg.Skeletons = min(max(cfg.Skeletons, 0), SkeletonSlots)
	if cfg.GripPeriod <= 0 {
		cfg.GripPeriod = 3 * time.Second
	}
	return &Device{
		cfg:     cfg,
		session: uuid.NewString(),
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// SessionID identifies this device instance in logs and health output.
func (d *Device) SessionID() string { return d.session }

// Start begins raising ticks at the configured rate until Stop, ctx end,
// or FailAfter elapses.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	slog.Info("simulator: device starting",
		"session", d.session,
		"fps", d.cfg.FPS,
		"color", d.cfg.ColorFormat,
		"depth", d.cfg.DepthFormat,
		"skeletons", d.cfg.Skeletons,
		"drop_rate", d.cfg.DropRate,
	)

	d.wg.Add(1)
	go d.run(ctx, d.stopCh)
	return nil
}

// Stop halts the tick goroutine. Registered handlers stay registered.
func (d *Device) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()

	s := d.Stats()
	slog.Info("simulator: device stopped",
		"session", d.session,
		"ticks", s.Ticks,
		"opened", s.Opened,
		"released", s.Released,
	)
}

func (d *Device) run(ctx context.Context, stop <-chan struct{}) {
	defer d.wg.Done()

	period := time.Second / time.Duration(d.cfg.FPS)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var failAt <-chan time.Time
	if d.cfg.FailAfter > 0 {
		timer := time.NewTimer(d.cfg.FailAfter)
		defer timer.Stop()
		failAt = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-failAt:
			d.Fail(fmt.Errorf("%w: session %s after %s", ErrDeviceLost, d.session, d.cfg.FailAfter))
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Tick raises one synchronized instant on every registered handler.
// The tick goroutine calls it; tests call it directly on a stopped device.
func (d *Device) Tick() {
	t, ok := d.next()
	if !ok {
		return
	}

	d.all.Dispatch(t)
	if !t.dropColor {
		d.color.Dispatch(t)
	}
	if !t.dropDepth {
		d.depth.Dispatch(t)
	}
	if !t.dropSkeleton {
		d.skeleton.Dispatch(t)
	}
}

func (d *Device) next() (*tick, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failed {
		return nil, false
	}

	number := d.number
	d.number++

	t := &tick{
		dev:      d,
		gen:      d.gen.Add(1),
		number:   number,
		ts:       int64(number) * 1000 / int64(d.cfg.FPS),
		colorFmt: d.cfg.ColorFormat,
		depthFmt: d.cfg.DepthFormat,
	}
	if d.cfg.DropRate > 0 {
		t.dropColor = d.rng.Float64() < d.cfg.DropRate
		t.dropDepth = d.rng.Float64() < d.cfg.DropRate
		t.dropSkeleton = d.rng.Float64() < d.cfg.DropRate
	}
	t.skeletons = d.pose(time.Duration(t.ts) * time.Millisecond)

	d.ticks.Add(1)
	if t.dropColor {
		d.dropColor.Add(1)
	}
	if t.dropDepth {
		d.dropDepth.Add(1)
	}
	if t.dropSkeleton {
		d.dropSkeleton.Add(1)
		slog.Debug("simulator: skeleton dropped", "frame", number)
	}
	return t, true
}

// Fail delivers err to every handler and stops producing ticks.
func (d *Device) Fail(err error) {
	d.mu.Lock()
	if d.failed {
		d.mu.Unlock()
		return
	}
	d.failed = true
	d.mu.Unlock()

	slog.Warn("simulator: device failed", "session", d.session, "error", err)

	d.all.Fail(err)
	d.color.Fail(err)
	d.depth.Fail(err)
	d.skeleton.Fail(err)
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	failed := d.failed
	d.mu.Unlock()

	return Stats{
		SessionID:       d.session,
		Ticks:           d.ticks.Load(),
		DroppedColor:    d.dropColor.Load(),
		DroppedDepth:    d.dropDepth.Load(),
		DroppedSkeleton: d.dropSkeleton.Load(),
		Opened:          d.opened.Load(),
		Released:        d.released.Load(),
		Failed:          failed,
	}
}

func (d *Device) open(t *tick) *handle {
	d.opened.Add(1)
	return &handle{dev: d, ts: t.ts, number: t.number}
}

// pose places the tracked skeletons at elapsed device time.
//
// Skeleton i walks a slow horizontal sine and raises its right hand above
// its head for every other GripPeriod, offset by i periods so users alternate.
func (d *Device) pose(elapsed time.Duration) []sensor.Skeleton {
	out := make([]sensor.Skeleton, SkeletonSlots)
	for i := 0; i < d.cfg.Skeletons; i++ {
		phase := elapsed.Seconds()/4 + float64(i)
		x := float32(0.8 * math.Sin(phase))
		z := float32(2.0 + 0.4*float64(i))

		window := int(elapsed/d.cfg.GripPeriod) + i
		raised := window%2 == 1

		out[i] = body(i+1, sensor.SkeletonPoint{X: x, Y: 0, Z: z}, raised)
	}
	return out
}

// body builds a standing skeleton with its hip centre at hip.
func body(id int, hip sensor.SkeletonPoint, rightRaised bool) sensor.Skeleton {
	s := sensor.Skeleton{
		TrackingID:    id,
		TrackingState: sensor.SkeletonTracked,
		Position:      hip,
	}

	offsets := [sensor.JointCount]sensor.SkeletonPoint{
		sensor.HipCenter:      {},
		sensor.Spine:          {Y: 0.2},
		sensor.ShoulderCenter: {Y: 0.45},
		sensor.Head:           {Y: 0.65},
		sensor.ShoulderLeft:   {X: -0.18, Y: 0.42},
		sensor.ElbowLeft:      {X: -0.22, Y: 0.18},
		sensor.WristLeft:      {X: -0.24, Y: 0.0},
		sensor.HandLeft:       {X: -0.25, Y: -0.06},
		sensor.ShoulderRight:  {X: 0.18, Y: 0.42},
		sensor.ElbowRight:     {X: 0.22, Y: 0.18},
		sensor.WristRight:     {X: 0.24, Y: 0.0},
		sensor.HandRight:      {X: 0.25, Y: -0.06},
		sensor.HipLeft:        {X: -0.1, Y: -0.05},
		sensor.KneeLeft:       {X: -0.1, Y: -0.45},
		sensor.AnkleLeft:      {X: -0.1, Y: -0.85},
		sensor.FootLeft:       {X: -0.1, Y: -0.9, Z: -0.1},
		sensor.HipRight:       {X: 0.1, Y: -0.05},
		sensor.KneeRight:      {X: 0.1, Y: -0.45},
		sensor.AnkleRight:     {X: 0.1, Y: -0.85},
		sensor.FootRight:      {X: 0.1, Y: -0.9, Z: -0.1},
	}
	if rightRaised {
		offsets[sensor.ElbowRight] = sensor.SkeletonPoint{X: 0.25, Y: 0.6, Z: -0.1}
		offsets[sensor.WristRight] = sensor.SkeletonPoint{X: 0.26, Y: 0.78, Z: -0.15}
		offsets[sensor.HandRight] = sensor.SkeletonPoint{X: 0.26, Y: 0.85, Z: -0.2}
	}

	for j := range s.Joints {
		o := offsets[j]
		s.Joints[j] = sensor.Joint{
			Type:          sensor.JointType(j),
			Position:      sensor.SkeletonPoint{X: hip.X + o.X, Y: hip.Y + o.Y, Z: hip.Z + o.Z},
			TrackingState: sensor.JointTracked,
		}
	}
	return s
}

// AccelerometerReading returns gravity with the sensor tilted slightly down.
func (d *Device) AccelerometerReading() sensor.Vector4 {
	return sensor.Vector4{X: 0, Y: -0.98, Z: -0.17, W: 0}
}

func (d *Device) AddAllFramesReady(next func(sensor.AllFramesReady), fail func(error)) (sensor.HandlerID, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	return d.all.Add(next, fail), nil
}

func (d *Device) RemoveAllFramesReady(id sensor.HandlerID) { d.all.Remove(id) }

func (d *Device) AddColorFrameReady(next func(sensor.ColorFrameReady), fail func(error)) (sensor.HandlerID, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	return d.color.Add(next, fail), nil
}

func (d *Device) RemoveColorFrameReady(id sensor.HandlerID) { d.color.Remove(id) }

func (d *Device) AddDepthFrameReady(next func(sensor.DepthFrameReady), fail func(error)) (sensor.HandlerID, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	return d.depth.Add(next, fail), nil
}

func (d *Device) RemoveDepthFrameReady(id sensor.HandlerID) { d.depth.Remove(id) }

func (d *Device) AddSkeletonFrameReady(next func(sensor.SkeletonFrameReady), fail func(error)) (sensor.HandlerID, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	return d.skeleton.Add(next, fail), nil
}

func (d *Device) RemoveSkeletonFrameReady(id sensor.HandlerID) { d.skeleton.Remove(id) }

// Handlers returns the number of registered handlers across all events.
func (d *Device) Handlers() int {
	return d.all.Len() + d.color.Len() + d.depth.Len() + d.skeleton.Len()
}

func (d *Device) checkAlive() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failed {
		return fmt.Errorf("%w: session %s", ErrDeviceLost, d.session)
	}
	return nil
}
