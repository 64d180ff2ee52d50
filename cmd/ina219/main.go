package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikesmitty/ina219"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

func main() {
	cfgPath := flag.String("config", "", "Path to a YAML configuration file")
	flags := defaultConfig()
	bindFlags(flag.CommandLine, &flags)
	flag.Parse()

	cfg := defaultConfig()
	if *cfgPath != "" {
		if err := loadConfig(*cfgPath, &cfg); err != nil {
			log.Fatal(err)
		}
	}
	override(flag.CommandLine, flags, &cfg)

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(logger.Sugar(), cfg); err != nil {
		logger.Sugar().Fatal(err)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(logger *zap.SugaredLogger, cfg config) (err error) {
	opts, gain, err := cfg.options()
	if err != nil {
		return err
	}
	opts.Logger = logger

	if _, err := host.Init(); err != nil {
		return err
	}

	b, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return err
	}

	dev, err := ina219.New(b, opts)
	if err != nil {
		return multierr.Append(err, b.Close())
	}
	defer func() {
		// Power down before releasing the bus.
		err = multierr.Combine(err, dev.Halt(), b.Close())
	}()

	if err := dev.SetBusRange(cfg.BusRange); err != nil {
		return err
	}
	if err := dev.SetGain(gain); err != nil {
		return err
	}
	logger.Infow("configured", "device", dev.String(), "mode", opts.Mode, "gain", gain,
		"maxCurrent", dev.MaxCurrent(), "currentLSB", dev.CurrentLSB())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		if err := sample(logger, dev, opts.Mode); err != nil {
			logger.Errorw("sampling failed", "error", err)
		}
		select {
		case <-sig:
			return nil
		case <-ticker.C:
		}
	}
}

// sample performs one conversion in triggered modes, then reports the
// overflow flag and the measurements.
func sample(logger *zap.SugaredLogger, dev *ina219.Dev, mode ina219.Mode) error {
	if mode.Triggered() {
		if _, err := dev.Trigger(false); err != nil {
			return err
		}
	}
	overflow, err := dev.IsOverflow()
	if err != nil {
		return err
	}
	var p ina219.PowerMonitor
	if err := dev.Sense(&p); err != nil {
		return err
	}
	supply := p.Bus + p.Shunt
	logger.Infow("reading",
		"bus", p.Bus.String(),
		"shunt", p.Shunt.String(),
		"supply", supply.String(),
		"current", p.Current.String(),
		"power", p.Power.String(),
		"overflow", overflow)
	return nil
}
