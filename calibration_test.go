package ina219

import (
	"errors"
	"math"
	"testing"
)

func TestCalibrationDefaultShunt(t *testing.T) {
	c := calibrationFor(0.1, Gain320mV)
	if math.Abs(c.maxCurrent-3.2) > 1e-12 {
		t.Errorf("maxCurrent = %v, want 3.2", c.maxCurrent)
	}
	if math.Abs(c.currentLSB-97.66e-6) > 0.01e-6 {
		t.Errorf("currentLSB = %v, want ~97.66e-6", c.currentLSB)
	}
	if c.value != 4194 {
		t.Errorf("calibration = %d, want 4194", c.value)
	}
	if math.Abs(c.powerLSB-20*c.currentLSB) > 1e-15 {
		t.Errorf("powerLSB = %v, want 20 x currentLSB", c.powerLSB)
	}
}

func TestCalibrationWithinOneCount(t *testing.T) {
	for g := Gain40mV; g <= Gain320mV; g++ {
		full := float64(g.RangeMilliVolts()) / 1000
		for _, frac := range []float64{1e-6, 1e-3, 0.01, 0.1, 0.25, 0.5, 0.9, 1} {
			ohms := full * frac
			c := calibrationFor(ohms, g)
			if c.value < minCalibration {
				t.Fatalf("%v, %v ohm: calibration %d below 1", g, ohms, c.value)
			}
			ideal := calibrationScale / (c.currentLSB * ohms)
			if diff := math.Abs(ideal - float64(c.value)); diff > 1 {
				t.Errorf("%v, %v ohm: calibration %d is %v counts from %v", g, ohms, c.value, diff, ideal)
			}
			if got := c.currentLSB * float64(c.value) * ohms; math.Abs(got-calibrationScale) > c.currentLSB*ohms {
				t.Errorf("%v, %v ohm: currentLSB x cal x R = %v", g, ohms, got)
			}
		}
	}
}

func TestClampCalibration(t *testing.T) {
	tests := []struct {
		in   float64
		want uint16
	}{
		{0, 1},
		{-5, 1},
		{math.NaN(), 1},
		{1, 1},
		{4194, 4194},
		{65535, 65535},
		{70000, 65535},
		{math.Inf(1), 65535},
	}
	for _, tt := range tests {
		if got := clampCalibration(tt.in); got != tt.want {
			t.Errorf("clampCalibration(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewCalibrates(t *testing.T) {
	td := newTestDev(t, nil)
	if got := td.bus.regs[calibrationReg]; got != 4194 {
		t.Errorf("calibration register = %d, want 4194", got)
	}
	cal, err := td.Calibration()
	if err != nil || cal != 4194 {
		t.Errorf("Calibration() = %d, %v", cal, err)
	}
	if td.GainRange() != Gain320mV {
		t.Errorf("GainRange() = %v", td.GainRange())
	}
}

func TestSetGainRecalibrates(t *testing.T) {
	td := newTestDev(t, nil)
	if err := td.SetGain(Gain40mV); err != nil {
		t.Fatal(err)
	}
	want := calibrationFor(0.1, Gain40mV)
	if got := td.bus.regs[calibrationReg]; got != want.value {
		t.Errorf("calibration register = %d, want %d", got, want.value)
	}
	if math.Abs(td.MaxCurrent()-0.4) > 1e-12 {
		t.Errorf("MaxCurrent() = %v, want 0.4", td.MaxCurrent())
	}
	if td.CurrentLSB() != want.currentLSB || td.PowerLSB() != want.powerLSB {
		t.Errorf("LSBs = %v, %v, want %v, %v", td.CurrentLSB(), td.PowerLSB(), want.currentLSB, want.powerLSB)
	}
	if td.GainRange() != Gain40mV {
		t.Errorf("GainRange() = %v", td.GainRange())
	}
}

func TestSetGainInvalid(t *testing.T) {
	td := newTestDev(t, nil)
	if err := td.SetGain(4); !errors.Is(err, ErrInvalidGain) {
		t.Errorf("SetGain(4) = %v, want ErrInvalidGain", err)
	}
	if len(td.rec.Ops) != 0 {
		t.Errorf("%d bus transactions, want none", len(td.rec.Ops))
	}
}

func TestSetShuntResistance(t *testing.T) {
	td := newTestDev(t, nil)
	if err := td.SetShuntResistance(0.01); err != nil {
		t.Fatal(err)
	}
	want := calibrationFor(0.01, Gain320mV)
	if td.ShuntResistance() != 0.01 {
		t.Errorf("ShuntResistance() = %v", td.ShuntResistance())
	}
	if math.Abs(td.MaxCurrent()-32) > 1e-9 {
		t.Errorf("MaxCurrent() = %v, want 32", td.MaxCurrent())
	}
	if td.CurrentLSB() != want.currentLSB {
		t.Errorf("CurrentLSB() = %v, want %v", td.CurrentLSB(), want.currentLSB)
	}
	if got := td.bus.regs[calibrationReg]; got != want.value {
		t.Errorf("calibration register = %d, want %d", got, want.value)
	}
}

func TestSetShuntResistanceInvalid(t *testing.T) {
	for _, ohms := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		td := newTestDev(t, nil)
		if err := td.SetShuntResistance(ohms); !errors.Is(err, ErrInvalidShunt) {
			t.Errorf("SetShuntResistance(%v) = %v, want ErrInvalidShunt", ohms, err)
		}
		if len(td.rec.Ops) != 0 {
			t.Errorf("SetShuntResistance(%v): %d bus transactions, want none", ohms, len(td.rec.Ops))
		}
		if td.ShuntResistance() != 0.1 {
			t.Errorf("SetShuntResistance(%v) changed the shunt to %v", ohms, td.ShuntResistance())
		}
	}
}

func TestSetShuntResistanceBusError(t *testing.T) {
	td := newTestDev(t, nil)
	lsb := td.CurrentLSB()
	td.bus.err = errBus
	if err := td.SetShuntResistance(0.5); !errors.Is(err, errBus) {
		t.Fatalf("got %v, want %v", err, errBus)
	}
	if td.ShuntResistance() != 0.1 || td.CurrentLSB() != lsb {
		t.Errorf("failed calibration changed the caches: %v ohm, %v A", td.ShuntResistance(), td.CurrentLSB())
	}
}
