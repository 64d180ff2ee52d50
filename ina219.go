// Package ina219 controls a Texas Instruments INA219 current, voltage and
// power monitor over an I²C bus.
//
// The driver programs the calibration register from the shunt resistance
// and the shunt gain, and converts the measurement registers to physical
// units. Dev is not safe for concurrent use.
//
// # Datasheet
//
// https://www.ti.com/lit/ds/symlink/ina219.pdf
package ina219

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

var (
	ErrFieldOverflow   = errors.New("value does not fit in field")
	ErrInvalidBusRange = errors.New("bus range must be 16 or 32 volts")
	ErrInvalidMode     = errors.New("invalid mode")
	ErrInvalidADCCode  = errors.New("invalid ADC code")
	ErrInvalidGain     = errors.New("invalid gain")
	ErrInvalidShunt    = errors.New("shunt resistance must be positive")
	ErrInvalidAddress  = errors.New("address must be within 0x40-0x4F")
)

// Opts holds various configuration options for the sensor
type Opts struct {
	Addr i2c.Addr
	// ShuntResistance is the value of the shunt resistor in ohms.
	ShuntResistance float64
	// Mode is restored after every reset.
	Mode Mode
	// ADC is applied to both the bus and the shunt channel.
	ADC ADCCode
	// Logger receives anomaly and timeout reports. Nil disables logging.
	Logger *zap.SugaredLogger
}

func DefaultOptions() *Opts {
	return &Opts{
		Addr:            DefaultAddress,
		ShuntResistance: 0.1,
		Mode:            ShuntBusContinuous,
		ADC:             ADC12Bit,
	}
}

// New binds to the chip at opts.Addr on b, resets it and programs the
// calibration for opts.ShuntResistance.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Addr < minAddress || opts.Addr > maxAddress {
		return nil, fmt.Errorf("ina219: %w: %#x", ErrInvalidAddress, uint16(opts.Addr))
	}
	if err := checkShunt(opts.ShuntResistance); err != nil {
		return nil, err
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("ina219: %w: %d", ErrInvalidMode, opts.Mode)
	}
	if !opts.ADC.Valid() {
		return nil, fmt.Errorf("ina219: %w: %#x", ErrInvalidADCCode, uint8(opts.ADC))
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := &Dev{
		d:     &i2c.Dev{Bus: b, Addr: uint16(opts.Addr)},
		name:  fmt.Sprintf("ina219-%#x", uint16(opts.Addr)),
		log:   log,
		shunt: opts.ShuntResistance,
		mode:  opts.Mode,
		sleep: time.Sleep,
	}

	// Reset also calibrates, with the chip's power-on gain.
	if err := d.Reset(); err != nil {
		return nil, err
	}
	if err := d.SetBusADC(opts.ADC); err != nil {
		return nil, err
	}
	if err := d.SetShuntADC(opts.ADC); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is a handle to an INA219.
type Dev struct {
	d    conn.Conn
	name string
	log  *zap.SugaredLogger

	// mode is the last mode written; Reset restores it.
	mode Mode

	shunt      float64
	gain       Gain
	currentLSB float64
	powerLSB   float64
	maxCurrent float64

	sleep func(time.Duration)
}

// PowerMonitor is one set of readings.
type PowerMonitor struct {
	Shunt   physic.ElectricPotential
	Bus     physic.ElectricPotential
	Current physic.ElectricCurrent
	Power   physic.Power
}

func (p PowerMonitor) String() string {
	return fmt.Sprintf("shunt %s, bus %s, current %s, power %s", p.Shunt, p.Bus, p.Current, p.Power)
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.name, d.d)
}

// Reset pulses the reset bit, then restores the last mode written and
// recalibrates. Other configuration fields return to power-on defaults.
func (d *Dev) Reset() error {
	if err := d.writeField(configReg, fieldReset, 1); err != nil {
		return err
	}
	if err := d.writeMode(d.mode); err != nil {
		return err
	}
	return d.calibrate()
}

// Halt powers the chip down. Any later Trigger or SetMode wakes it up.
func (d *Dev) Halt() error {
	return d.SetMode(PowerDown)
}

// Mode returns the operating mode stored in the chip.
func (d *Dev) Mode() (Mode, error) {
	v, err := d.readField(configReg, fieldMode, false)
	if err != nil {
		return 0, err
	}
	return Mode(v), nil
}

// SetMode changes the operating mode. Writing the mode starts a new
// conversion even when m equals the current mode.
func (d *Dev) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("ina219: %w: %d", ErrInvalidMode, m)
	}
	if err := d.writeMode(m); err != nil {
		return err
	}
	d.mode = m
	return nil
}

func (d *Dev) writeMode(m Mode) error {
	return d.writeField(configReg, fieldMode, uint16(m))
}

// BusRange returns the bus voltage full-scale range in volts, 16 or 32.
func (d *Dev) BusRange() (int, error) {
	v, err := d.readField(configReg, fieldBusRange, false)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return BusRange16V, nil
	}
	return BusRange32V, nil
}

// SetBusRange sets the bus voltage full-scale range. Only 16 and 32 volts
// are accepted.
func (d *Dev) SetBusRange(volts int) error {
	var v uint16
	switch volts {
	case BusRange16V:
		v = 0
	case BusRange32V:
		v = 1
	default:
		return fmt.Errorf("ina219: %w: %d", ErrInvalidBusRange, volts)
	}
	return d.writeField(configReg, fieldBusRange, v)
}

// Gain returns the shunt gain stored in the chip.
func (d *Dev) Gain() (Gain, error) {
	v, err := d.readField(configReg, fieldGain, false)
	if err != nil {
		return 0, err
	}
	return d.decodeGain(Gain(v)), nil
}

// SetGain changes the shunt gain and recalibrates.
func (d *Dev) SetGain(g Gain) error {
	if !g.Valid() {
		return fmt.Errorf("ina219: %w: %d", ErrInvalidGain, g)
	}
	if err := d.writeField(configReg, fieldGain, uint16(g)); err != nil {
		return err
	}
	return d.calibrate()
}

// BusADC returns the bus channel ADC setting.
func (d *Dev) BusADC() (ADCCode, error) {
	return d.readADC(fieldBusADC, "bus")
}

// SetBusADC changes the bus channel ADC setting.
func (d *Dev) SetBusADC(c ADCCode) error {
	return d.writeADC(fieldBusADC, c)
}

// ShuntADC returns the shunt channel ADC setting.
func (d *Dev) ShuntADC() (ADCCode, error) {
	return d.readADC(fieldShuntADC, "shunt")
}

// SetShuntADC changes the shunt channel ADC setting.
func (d *Dev) SetShuntADC(c ADCCode) error {
	return d.writeADC(fieldShuntADC, c)
}

func (d *Dev) readADC(f field, channel string) (ADCCode, error) {
	v, err := d.readField(configReg, f, false)
	if err != nil {
		return 0, err
	}
	return d.decodeADC(ADCCode(v), channel), nil
}

func (d *Dev) writeADC(f field, c ADCCode) error {
	if !c.Valid() {
		return fmt.Errorf("ina219: %w: %#x", ErrInvalidADCCode, uint8(c))
	}
	return d.writeField(configReg, f, uint16(c))
}

// decodeADC maps codes unknown to the driver to the slowest setting.
func (d *Dev) decodeADC(c ADCCode, channel string) ADCCode {
	if c.Valid() {
		return c
	}
	d.log.Warnw("unexpected ADC code", "device", d.name, "channel", channel, "code", uint8(c), "assumed", fallbackADC)
	return fallbackADC
}

// decodeGain maps codes unknown to the driver to the widest range.
func (d *Dev) decodeGain(g Gain) Gain {
	if g.Valid() {
		return g
	}
	d.log.Warnw("unexpected gain code", "device", d.name, "code", uint8(g), "assumed", fallbackGain)
	return fallbackGain
}

// ShuntVoltage returns the voltage across the shunt in volts.
func (d *Dev) ShuntVoltage() (float64, error) {
	v, err := d.readField(shuntVoltageReg, fieldWhole, true)
	if err != nil {
		return 0, err
	}
	return float64(v) * shuntVoltageLSB, nil
}

// BusVoltage returns the voltage between the load side of the shunt and
// ground in volts. It does not clear the conversion ready flag.
func (d *Dev) BusVoltage() (float64, error) {
	v, err := d.readField(busVoltageReg, fieldBusVoltage, false)
	if err != nil {
		return 0, err
	}
	return float64(v) * busVoltageLSB, nil
}

// SupplyVoltage returns the voltage on the supply side of the shunt.
func (d *Dev) SupplyVoltage() (float64, error) {
	bus, err := d.BusVoltage()
	if err != nil {
		return 0, err
	}
	shunt, err := d.ShuntVoltage()
	if err != nil {
		return 0, err
	}
	return bus + shunt, nil
}

// Current returns the current through the shunt in amperes.
func (d *Dev) Current() (float64, error) {
	v, err := d.readField(currentReg, fieldWhole, true)
	if err != nil {
		return 0, err
	}
	return float64(v) * d.currentLSB, nil
}

// Power returns the load power in watts. Reading it clears the conversion
// ready flag.
func (d *Dev) Power() (float64, error) {
	v, err := d.readField(powerReg, fieldWhole, false)
	if err != nil {
		return 0, err
	}
	return float64(v) * d.powerLSB, nil
}

// Sense reads all measurement registers. The power register is read last
// since it clears the conversion ready flag.
func (d *Dev) Sense(p *PowerMonitor) error {
	shunt, err := d.ShuntVoltage()
	if err != nil {
		return err
	}
	bus, err := d.BusVoltage()
	if err != nil {
		return err
	}
	current, err := d.Current()
	if err != nil {
		return err
	}
	power, err := d.Power()
	if err != nil {
		return err
	}
	p.Shunt = physic.ElectricPotential(math.Round(shunt * float64(physic.Volt)))
	p.Bus = physic.ElectricPotential(math.Round(bus * float64(physic.Volt)))
	p.Current = physic.ElectricCurrent(math.Round(current * float64(physic.Ampere)))
	p.Power = physic.Power(math.Round(power * float64(physic.Watt)))
	return nil
}

func (d *Dev) wrap(err error) error {
	return fmt.Errorf("%s: %w", strings.ToLower(d.name), err)
}

var _ conn.Resource = &Dev{}
