package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mikesmitty/ina219"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/i2c"
)

// config is the command configuration, read from an optional YAML file and
// then overridden by flags.
type config struct {
	Bus       string        `yaml:"bus"`
	Addr      uint          `yaml:"addr"`
	ShuntOhms float64       `yaml:"shunt_ohms"`
	Mode      string        `yaml:"mode"`
	ADC       uint          `yaml:"adc"`
	GainMV    int           `yaml:"gain_mv"`
	BusRange  int           `yaml:"bus_range"`
	Interval  time.Duration `yaml:"interval"`
	Verbose   bool          `yaml:"verbose"`
}

func defaultConfig() config {
	d := ina219.DefaultOptions()
	return config{
		Addr:      uint(d.Addr),
		ShuntOhms: d.ShuntResistance,
		Mode:      d.Mode.String(),
		ADC:       uint(d.ADC),
		GainMV:    ina219.Gain320mV.RangeMilliVolts(),
		BusRange:  ina219.BusRange32V,
		Interval:  time.Second,
	}
}

// decodeConfig overlays the YAML document in r on c. Unknown keys are
// rejected.
func decodeConfig(r io.Reader, c *config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func loadConfig(path string, c *config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return decodeConfig(f, c)
}

// bindFlags registers one flag per config field on fs, with c as defaults.
func bindFlags(fs *flag.FlagSet, c *config) {
	fs.StringVar(&c.Bus, "bus", c.Bus, "Name of the I²C bus")
	fs.UintVar(&c.Addr, "addr", c.Addr, "Device address (0x40-0x4F)")
	fs.Float64Var(&c.ShuntOhms, "shunt", c.ShuntOhms, "Shunt resistance in ohms")
	fs.StringVar(&c.Mode, "mode", c.Mode, "Operating mode, e.g. shunt-bus-continuous or shunt-bus-triggered")
	fs.UintVar(&c.ADC, "adc", c.ADC, "ADC resolution/averaging code for both channels")
	fs.IntVar(&c.GainMV, "gain", c.GainMV, "Shunt range in millivolts (40, 80, 160 or 320)")
	fs.IntVar(&c.BusRange, "range", c.BusRange, "Bus voltage range in volts (16 or 32)")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "Sampling interval")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "Verbose logging")
}

// override copies the fields of flags that were set on fs into c.
func override(fs *flag.FlagSet, flags config, c *config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bus":
			c.Bus = flags.Bus
		case "addr":
			c.Addr = flags.Addr
		case "shunt":
			c.ShuntOhms = flags.ShuntOhms
		case "mode":
			c.Mode = flags.Mode
		case "adc":
			c.ADC = flags.ADC
		case "gain":
			c.GainMV = flags.GainMV
		case "range":
			c.BusRange = flags.BusRange
		case "interval":
			c.Interval = flags.Interval
		case "v":
			c.Verbose = flags.Verbose
		}
	})
}

// options validates c and converts it to driver options.
func (c config) options() (*ina219.Opts, ina219.Gain, error) {
	mode, err := ina219.ParseMode(c.Mode)
	if err != nil {
		return nil, 0, err
	}
	gain, err := ina219.GainForRange(c.GainMV)
	if err != nil {
		return nil, 0, err
	}
	if c.Addr > 0x7F {
		return nil, 0, fmt.Errorf("invalid address %#x", c.Addr)
	}
	if c.ADC > 0xF {
		return nil, 0, fmt.Errorf("invalid ADC code %#x", c.ADC)
	}
	if c.Interval <= 0 {
		return nil, 0, fmt.Errorf("invalid interval %v", c.Interval)
	}
	return &ina219.Opts{
		Addr:            i2c.Addr(c.Addr),
		ShuntResistance: c.ShuntOhms,
		Mode:            mode,
		ADC:             ina219.ADCCode(c.ADC),
	}, gain, nil
}
