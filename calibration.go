package ina219

import (
	"fmt"
	"math"
)

// calibration holds the calibration register value and the scaling factors
// derived from one shunt resistance and gain.
type calibration struct {
	value      uint16
	currentLSB float64
	powerLSB   float64
	maxCurrent float64
}

// calibrationFor computes the calibration for a shunt of ohms at gain g. The
// current LSB is chosen so that the full shunt range maps onto the positive
// half of the current register.
func calibrationFor(ohms float64, g Gain) calibration {
	maxCurrent := float64(g.RangeMilliVolts()) / 1000 / ohms
	currentLSB := maxCurrent / currentSteps
	raw := math.Round(calibrationScale / (currentLSB * ohms))
	return calibration{
		value:      clampCalibration(raw),
		currentLSB: currentLSB,
		powerLSB:   powerLSBRatio * currentLSB,
		maxCurrent: maxCurrent,
	}
}

// clampCalibration keeps v in the register range. Zero would turn the
// current and power registers off.
func clampCalibration(v float64) uint16 {
	switch {
	case math.IsNaN(v), v < minCalibration:
		return minCalibration
	case v > maxCalibration:
		return maxCalibration
	}
	return uint16(v)
}

func checkShunt(ohms float64) error {
	if !(ohms > 0) || math.IsInf(ohms, 0) {
		return fmt.Errorf("ina219: %w: %v", ErrInvalidShunt, ohms)
	}
	return nil
}

// calibrate reads the gain from the chip, writes the matching calibration
// register and refreshes the cached scaling factors.
func (d *Dev) calibrate() error {
	g, err := d.Gain()
	if err != nil {
		return err
	}
	c := calibrationFor(d.shunt, g)
	if err := d.writeReg(calibrationReg, c.value); err != nil {
		return err
	}
	d.gain = g
	d.currentLSB = c.currentLSB
	d.powerLSB = c.powerLSB
	d.maxCurrent = c.maxCurrent
	d.log.Debugw("calibrated", "device", d.name, "shunt", d.shunt, "gain", g, "calibration", c.value,
		"currentLSB", c.currentLSB, "powerLSB", c.powerLSB, "maxCurrent", c.maxCurrent)
	return nil
}

// SetShuntResistance changes the shunt resistance in ohms and recalibrates.
func (d *Dev) SetShuntResistance(ohms float64) error {
	if err := checkShunt(ohms); err != nil {
		return err
	}
	prev := d.shunt
	d.shunt = ohms
	if err := d.calibrate(); err != nil {
		d.shunt = prev
		return err
	}
	return nil
}

// ShuntResistance returns the shunt resistance in ohms.
func (d *Dev) ShuntResistance() float64 {
	return d.shunt
}

// CurrentLSB returns the current represented by one count of the current
// register, in amperes.
func (d *Dev) CurrentLSB() float64 {
	return d.currentLSB
}

// PowerLSB returns the power represented by one count of the power
// register, in watts.
func (d *Dev) PowerLSB() float64 {
	return d.powerLSB
}

// MaxCurrent returns the largest current measurable at the configured gain,
// in amperes.
func (d *Dev) MaxCurrent() float64 {
	return d.maxCurrent
}

// GainRange returns the shunt full-scale range used by the last
// calibration.
func (d *Dev) GainRange() Gain {
	return d.gain
}

// Calibration reads back the calibration register.
func (d *Dev) Calibration() (uint16, error) {
	return d.readReg(calibrationReg)
}
