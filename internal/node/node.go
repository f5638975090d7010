package node

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"plantlab/internal/models"
	"plantlab/internal/sampling"
)

// Options tune a Node.
type Options struct {
	SensorID       string
	SamplePeriod   time.Duration
	SendPeriod     time.Duration
	ConnectTimeout time.Duration
	Window         int
	Calibration    sampling.Calibration
	// SendTimestamp sends the node clock as ts; otherwise ts is 0 and the
	// service assigns its receive time.
	SendTimestamp bool
}

// Node samples an ADC into a smoothing window and periodically sends the
// calibrated mean over an Uplink.
type Node struct {
	opts   Options
	adc    ADC
	uplink Uplink
	ring   *sampling.Ring
	logger *zap.Logger

	started    bool
	lastSample time.Time
	lastSend   time.Time
}

// New creates a Node.
func New(opts Options, adc ADC, uplink Uplink, logger *zap.Logger) *Node {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}
	if err := opts.Calibration.Validate(); err != nil {
		logger.Warn("calibration misconfigured, readings will report 0%", zap.Error(err))
	}
	return &Node{
		opts:   opts,
		adc:    adc,
		uplink: uplink,
		ring:   sampling.NewRing(opts.Window),
		logger: logger,
	}
}

// Samples returns the smoothing window, oldest first.
func (n *Node) Samples() []int {
	return n.ring.Samples()
}

// Step runs one loop iteration at now. The first call takes a sample; the
// first send happens one send period later.
func (n *Node) Step(ctx context.Context, now time.Time) {
	if !n.started {
		n.started = true
		n.lastSample = now.Add(-n.opts.SamplePeriod)
		n.lastSend = now
	}

	if now.Sub(n.lastSample) >= n.opts.SamplePeriod {
		n.lastSample = now
		n.sample()
	}
	if now.Sub(n.lastSend) >= n.opts.SendPeriod {
		n.lastSend = now
		n.send(ctx, now)
	}
}

// Run drives Step until ctx is done, then closes the uplink.
func (n *Node) Run(ctx context.Context) error {
	tick := max(min(n.opts.SamplePeriod, n.opts.SendPeriod)/10, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	defer n.uplink.Close()

	n.logger.Info("sensor node started",
		zap.String("sensor_id", n.opts.SensorID),
		zap.Duration("sample_period", n.opts.SamplePeriod),
		zap.Duration("send_period", n.opts.SendPeriod),
		zap.Int("window", n.ring.Cap()))

	n.Step(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case now := <-ticker.C:
			n.Step(ctx, now)
		}
	}
}

func (n *Node) sample() {
	raw, err := n.adc.Read()
	if err != nil {
		n.logger.Warn("adc read failed, sample skipped", zap.Error(err))
		return
	}
	n.ring.Add(raw)
}

func (n *Node) send(ctx context.Context, now time.Time) {
	if !n.uplink.Connected() {
		connectCtx, cancel := context.WithTimeout(ctx, n.opts.ConnectTimeout)
		err := n.uplink.Connect(connectCtx)
		cancel()
		if err != nil {
			n.logger.Warn("uplink unavailable, send skipped", zap.Error(err))
			return
		}
		n.logger.Info("uplink connected")
	}

	mean, ok := n.ring.Mean()
	if !ok {
		n.logger.Warn("no samples yet, send skipped")
		return
	}
	adc := int(math.Round(mean))
	percent := math.Round(n.opts.Calibration.Percent(mean)*10) / 10
	ts := int64(0)
	if n.opts.SendTimestamp {
		ts = now.Unix()
	}

	req := models.IngestRequest{
		SensorID: n.opts.SensorID,
		ADC:      &adc,
		Percent:  &percent,
		TS:       &ts,
	}
	if err := n.uplink.Send(ctx, req); err != nil {
		n.logger.Warn("send failed", zap.Error(err))
		return
	}
	n.logger.Debug("reading sent",
		zap.Int("adc", adc),
		zap.Float64("percent", percent),
		zap.Int("samples", n.ring.Len()))
}
