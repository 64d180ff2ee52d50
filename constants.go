package ina219

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/i2c"
)

// DefaultAddress is the address with both A0 and A1 tied to ground.
const DefaultAddress i2c.Addr = 0x40

// Valid addresses selectable through the A0/A1 pins.
const (
	minAddress i2c.Addr = 0x40
	maxAddress i2c.Addr = 0x4F
)

const (
	configReg uint8 = iota
	shuntVoltageReg
	busVoltageReg
	powerReg
	currentReg
	calibrationReg
)

// Magic numbers for computing calibration
const (
	// calibrationScale is the fixed internal scaling constant of the chip.
	calibrationScale float64 = 0.04096
	// powerLSBRatio is the fixed ratio between power and current LSBs.
	powerLSBRatio float64 = 20
	// currentSteps is the largest positive count of the current register.
	currentSteps float64 = 32767

	minCalibration = 1
	maxCalibration = 0xFFFF
)

// Fixed LSBs of the voltage registers.
const (
	shuntVoltageLSB float64 = 10e-6
	busVoltageLSB   float64 = 4e-3
)

// Configuration register fields.
var (
	fieldReset    = newField(0x8000)
	fieldBusRange = newField(0x2000)
	fieldGain     = newField(0x1800)
	fieldBusADC   = newField(0x0780)
	fieldShuntADC = newField(0x0078)
	fieldMode     = newField(0x0007)
)

// Bus voltage register fields.
var (
	fieldOverflow   = newField(0x0001)
	fieldReady      = newField(0x0002)
	fieldBusVoltage = newField(0xFFF8)
)

// fieldWhole addresses the full 16 bits of a register.
var fieldWhole = newField(0xFFFF)

// Mode selects which channels are converted and whether conversions run
// continuously or once per trigger.
type Mode uint8

const (
	PowerDown          Mode = 0
	ShuntTriggered     Mode = 1
	BusTriggered       Mode = 2
	ShuntBusTriggered  Mode = 3
	modeReserved       Mode = 4
	ShuntContinuous    Mode = 5
	BusContinuous      Mode = 6
	ShuntBusContinuous Mode = 7
)

const (
	modeShuntBit      Mode = 0x1
	modeBusBit        Mode = 0x2
	modeContinuousBit Mode = 0x4
)

var modeNames = [...]string{
	PowerDown:          "power-down",
	ShuntTriggered:     "shunt-triggered",
	BusTriggered:       "bus-triggered",
	ShuntBusTriggered:  "shunt-bus-triggered",
	modeReserved:       "reserved",
	ShuntContinuous:    "shunt-continuous",
	BusContinuous:      "bus-continuous",
	ShuntBusContinuous: "shunt-bus-continuous",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Valid reports whether m may be written to the chip.
func (m Mode) Valid() bool {
	return m <= ShuntBusContinuous && m != modeReserved
}

// Shunt reports whether m converts the shunt channel.
func (m Mode) Shunt() bool {
	return m.Valid() && m&modeShuntBit != 0
}

// Bus reports whether m converts the bus channel.
func (m Mode) Bus() bool {
	return m.Valid() && m&modeBusBit != 0
}

// Triggered reports whether m performs a single conversion per trigger.
func (m Mode) Triggered() bool {
	return m.Valid() && m != PowerDown && m&modeContinuousBit == 0
}

// Continuous reports whether m converts repeatedly.
func (m Mode) Continuous() bool {
	return m.Valid() && m&modeContinuousBit != 0
}

// ParseMode returns the Mode named s, as printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range modeNames {
		if Mode(i) != modeReserved && n == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("ina219: unknown mode %q", s)
}

// ADCCode selects the resolution or the number of averaged samples of one
// ADC channel.
type ADCCode uint8

const (
	ADC9Bit       ADCCode = 0x0 // 9 bit, 1 sample, 84us
	ADC10Bit      ADCCode = 0x1 // 10 bit, 1 sample, 148us
	ADC11Bit      ADCCode = 0x2 // 11 bit, 1 sample, 276us
	ADC12Bit      ADCCode = 0x3 // 12 bit, 1 sample, 532us -- default
	ADC12BitAlias ADCCode = 0x8 // same as ADC12Bit
	ADCSamples2   ADCCode = 0x9 // 12 bit, 2 samples, 1.06ms
	ADCSamples4   ADCCode = 0xA // 12 bit, 4 samples, 2.13ms
	ADCSamples8   ADCCode = 0xB // 12 bit, 8 samples, 4.26ms
	ADCSamples16  ADCCode = 0xC // 12 bit, 16 samples, 8.51ms
	ADCSamples32  ADCCode = 0xD // 12 bit, 32 samples, 17.02ms
	ADCSamples64  ADCCode = 0xE // 12 bit, 64 samples, 34.05ms
	ADCSamples128 ADCCode = 0xF // 12 bit, 128 samples, 68.10ms
)

// Gain selects the shunt voltage full-scale range.
type Gain uint8

const (
	Gain40mV  Gain = 0x0 // gain 1, 40mV range
	Gain80mV  Gain = 0x1 // gain /2, 80mV range
	Gain160mV Gain = 0x2 // gain /4, 160mV range
	Gain320mV Gain = 0x3 // gain /8, 320mV range -- default
)

// Bus voltage full-scale ranges accepted by SetBusRange.
const (
	BusRange16V = 16
	BusRange32V = 32
)
