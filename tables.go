package ina219

import (
	"fmt"
	"time"
)

// Conservative decodings used when the chip reports a code this driver does
// not know: the slowest timing and the widest shunt range.
const (
	fallbackADC  = ADCSamples128
	fallbackGain = Gain320mV
)

// conversion returns the conversion time in microseconds and the number of
// averaged samples for c. ok is false for the unused codes 4-7 and anything
// wider than 4 bits, in which case the slowest entry is returned.
func (c ADCCode) conversion() (us, samples int, ok bool) {
	switch c {
	case ADC9Bit:
		return 84, 1, true
	case ADC10Bit:
		return 148, 1, true
	case ADC11Bit:
		return 276, 1, true
	case ADC12Bit, ADC12BitAlias:
		return 532, 1, true
	case ADCSamples2:
		return 1060, 2, true
	case ADCSamples4:
		return 2130, 4, true
	case ADCSamples8:
		return 4260, 8, true
	case ADCSamples16:
		return 8510, 16, true
	case ADCSamples32:
		return 17020, 32, true
	case ADCSamples64:
		return 34050, 64, true
	case ADCSamples128:
		return 68100, 128, true
	}
	us, samples, _ = fallbackADC.conversion()
	return us, samples, false
}

// Valid reports whether c is one of the 12 codes defined by the chip.
func (c ADCCode) Valid() bool {
	_, _, ok := c.conversion()
	return ok
}

// ConversionTime returns the time needed to produce one averaged result.
func (c ADCCode) ConversionTime() time.Duration {
	us, _, _ := c.conversion()
	return time.Duration(us) * time.Microsecond
}

// Samples returns the number of samples averaged per result.
func (c ADCCode) Samples() int {
	_, n, _ := c.conversion()
	return n
}

func (c ADCCode) String() string {
	us, n, ok := c.conversion()
	if !ok {
		return fmt.Sprintf("ADCCode(%#x)", uint8(c))
	}
	return fmt.Sprintf("%dx%dus", n, us/n)
}

// rangeMilliVolts returns the full-scale shunt voltage and the PGA divisor
// for g. ok is false for codes wider than 2 bits, in which case the widest
// range is returned.
func (g Gain) rangeMilliVolts() (mV, div int, ok bool) {
	switch g {
	case Gain40mV:
		return 40, 1, true
	case Gain80mV:
		return 80, 2, true
	case Gain160mV:
		return 160, 4, true
	case Gain320mV:
		return 320, 8, true
	}
	mV, div, _ = fallbackGain.rangeMilliVolts()
	return mV, div, false
}

// Valid reports whether g is a gain setting of the chip.
func (g Gain) Valid() bool {
	_, _, ok := g.rangeMilliVolts()
	return ok
}

// RangeMilliVolts returns the shunt voltage full-scale range.
func (g Gain) RangeMilliVolts() int {
	mV, _, _ := g.rangeMilliVolts()
	return mV
}

// Divisor returns the PGA divisor, 1 to 8.
func (g Gain) Divisor() int {
	_, div, _ := g.rangeMilliVolts()
	return div
}

func (g Gain) String() string {
	mV, div, ok := g.rangeMilliVolts()
	if !ok {
		return fmt.Sprintf("Gain(%d)", uint8(g))
	}
	return fmt.Sprintf("/%d %dmV", div, mV)
}

// GainForRange returns the Gain whose full-scale range is mV millivolts.
func GainForRange(mV int) (Gain, error) {
	for g := Gain40mV; g <= Gain320mV; g++ {
		if g.RangeMilliVolts() == mV {
			return g, nil
		}
	}
	return 0, fmt.Errorf("ina219: no gain with a %dmV range", mV)
}
