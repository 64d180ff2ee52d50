package ina219

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

const porConfig uint16 = 0x399F

// fakeBus simulates the register file of one INA219.
type fakeBus struct {
	addr uint16
	regs [6]uint16

	// readyAfter sets the ready flag on the n-th following bus voltage
	// read; zero leaves the flag alone.
	readyAfter int
	resets     int
	err        error
}

func newFakeBus() *fakeBus {
	f := &fakeBus{addr: uint16(DefaultAddress)}
	f.powerOn()
	return f
}

func (f *fakeBus) powerOn() {
	f.regs = [6]uint16{}
	f.regs[configReg] = porConfig
}

func (f *fakeBus) String() string { return "fakebus" }

func (f *fakeBus) SetSpeed(physic.Frequency) error { return nil }

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	if addr != f.addr {
		return fmt.Errorf("no device at %#x", addr)
	}
	switch {
	case len(w) == 1 && len(r) == 2:
		v, err := f.read(w[0])
		if err != nil {
			return err
		}
		r[0], r[1] = byte(v>>8), byte(v)
		return nil
	case len(w) == 3 && len(r) == 0:
		return f.write(w[0], uint16(w[1])<<8|uint16(w[2]))
	}
	return fmt.Errorf("unexpected transaction w=%x r=%d", w, len(r))
}

func (f *fakeBus) read(reg uint8) (uint16, error) {
	if int(reg) >= len(f.regs) {
		return 0, fmt.Errorf("no register %#x", reg)
	}
	v := f.regs[reg]
	switch reg {
	case busVoltageReg:
		if f.readyAfter > 0 {
			f.readyAfter--
			if f.readyAfter == 0 {
				f.regs[busVoltageReg] |= fieldReady.mask
			}
			v = f.regs[reg]
		}
	case powerReg:
		f.regs[busVoltageReg] &^= fieldReady.mask
	}
	return v, nil
}

func (f *fakeBus) write(reg uint8, v uint16) error {
	switch reg {
	case configReg:
		if v&fieldReset.mask != 0 {
			f.resets++
			f.powerOn()
			return nil
		}
		f.regs[configReg] = v
		if v&fieldMode.mask != uint16(PowerDown) {
			f.regs[busVoltageReg] &^= fieldReady.mask
		}
	case calibrationReg:
		f.regs[calibrationReg] = v
	default:
		return fmt.Errorf("register %#x is read only", reg)
	}
	return nil
}

func (f *fakeBus) setReady(on bool) {
	if on {
		f.regs[busVoltageReg] |= fieldReady.mask
	} else {
		f.regs[busVoltageReg] &^= fieldReady.mask
	}
}

func (f *fakeBus) ready() bool {
	return f.regs[busVoltageReg]&fieldReady.mask != 0
}

// sleeper records the sleeps of WaitReady instead of sleeping.
type sleeper struct {
	calls []time.Duration
}

func (s *sleeper) sleep(d time.Duration) {
	s.calls = append(s.calls, d)
}

func (s *sleeper) total() time.Duration {
	var t time.Duration
	for _, d := range s.calls {
		t += d
	}
	return t
}

type testDev struct {
	*Dev
	bus   *fakeBus
	rec   *i2ctest.Record
	logs  *observer.ObservedLogs
	slept *sleeper
}

// newTestDev returns a Dev bound to a fresh fakeBus. The recorded traffic
// of New is discarded.
func newTestDev(t *testing.T, opts *Opts) *testDev {
	t.Helper()
	f := newFakeBus()
	rec := &i2ctest.Record{Bus: f}
	core, logs := observer.New(zapcore.DebugLevel)
	if opts == nil {
		opts = DefaultOptions()
	}
	opts.Logger = zap.New(core).Sugar()
	d, err := New(rec, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := &sleeper{}
	d.sleep = s.sleep
	rec.Ops = nil
	return &testDev{Dev: d, bus: f, rec: rec, logs: logs, slept: s}
}

// writes counts the register writes recorded since the last reset of rec.
func (td *testDev) writes() int {
	n := 0
	for _, op := range td.rec.Ops {
		if len(op.W) == 3 {
			n++
		}
	}
	return n
}

// reads counts the reads of reg recorded since the last reset of rec.
func (td *testDev) reads(reg uint8) int {
	n := 0
	for _, op := range td.rec.Ops {
		if len(op.W) == 1 && op.W[0] == reg && len(op.R) == 2 {
			n++
		}
	}
	return n
}

func (td *testDev) warnings(msg string) int {
	return td.logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage(msg).Len()
}

var errBus = errors.New("bus fault")

var _ i2c.Bus = &fakeBus{}
