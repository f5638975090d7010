package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"plantlab/internal/config"
	"plantlab/internal/logger"
	"plantlab/internal/node"
	"plantlab/internal/sampling"
)

func main() {
	cfg, err := config.LoadNodeConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "plantlab-node")
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer zl.Sync()
	zl = zl.With(zap.String("sensor_id", cfg.SensorID))

	var adc node.ADC
	if cfg.ADCPath != "" {
		adc = node.SysfsADC{Path: cfg.ADCPath}
	} else {
		zl.Info("no NODE_ADC_PATH set, using simulated ADC")
		adc = node.NewSimulatedADC(cfg.DryADC, cfg.WetADC, time.Now().UnixNano())
	}

	var uplink node.Uplink
	switch cfg.Transport {
	case config.TransportMQTT:
		uplink = node.NewMQTTUplink(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix, cfg.SensorID, cfg.ConnectTimeout, cfg.RequestTimeout)
	default:
		uplink = node.NewHTTPUplink(cfg.BackendURL, cfg.RequestTimeout)
	}

	n := node.New(node.Options{
		SensorID:       cfg.SensorID,
		SamplePeriod:   cfg.SamplePeriod,
		SendPeriod:     cfg.SendPeriod,
		ConnectTimeout: cfg.ConnectTimeout,
		Window:         cfg.Window,
		Calibration:    sampling.Calibration{DryADC: cfg.DryADC, WetADC: cfg.WetADC},
		SendTimestamp:  cfg.SendTimestamp,
	}, adc, uplink, zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Run(ctx); err != nil {
		zl.Error("sensor node stopped", zap.Error(err))
	}
}
