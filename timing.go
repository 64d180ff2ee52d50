package ina219

import (
	"time"
)

// conversionMillis estimates the time of one conversion cycle from the
// per-channel conversion times, with a 10% margin. The result is rounded up
// to whole milliseconds and is at least 1.
func conversionMillis(m Mode, busUS, shuntUS int) int {
	us := 0
	if m.Bus() {
		us += busUS
	}
	if m.Shunt() {
		us += shuntUS
	}
	// ceil(us * 1.1 / 1000) in integers.
	ms := (us*11 + 9999) / 10000
	if ms < 1 {
		ms = 1
	}
	return ms
}

// EstimateConversion returns a worst case duration of one conversion cycle
// under the configuration stored in the chip.
func (d *Dev) EstimateConversion() (time.Duration, error) {
	m, err := d.Mode()
	if err != nil {
		return 0, err
	}
	bus, err := d.BusADC()
	if err != nil {
		return 0, err
	}
	shunt, err := d.ShuntADC()
	if err != nil {
		return 0, err
	}
	busUS, _, _ := bus.conversion()
	shuntUS, _, _ := shunt.conversion()
	return time.Duration(conversionMillis(m, busUS, shuntUS)) * time.Millisecond, nil
}

// IsReady reports whether the last conversion, including averaging, has
// completed. It does not clear the flag.
func (d *Dev) IsReady() (bool, error) {
	v, err := d.readField(busVoltageReg, fieldReady, false)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ClearReady clears the conversion ready flag by reading the power
// register.
func (d *Dev) ClearReady() error {
	_, err := d.readReg(powerReg)
	return err
}

// IsOverflow reports whether the current or power computation overflowed.
// It clears the conversion ready flag.
func (d *Dev) IsOverflow() (bool, error) {
	v, err := d.readField(busVoltageReg, fieldOverflow, false)
	if err != nil {
		return false, err
	}
	if err := d.ClearReady(); err != nil {
		return false, err
	}
	return v != 0, nil
}

// WaitReady polls the conversion ready flag until it is set or maxWait has
// elapsed. maxWait <= 0 uses EstimateConversion. The flag is polled ten
// times over maxWait, at most once per millisecond. A timeout is logged
// and is not an error; the measurement registers keep their previous
// values. The flag is cleared on return.
//
// It returns whether the flag was seen set.
func (d *Dev) WaitReady(maxWait time.Duration) (bool, error) {
	if maxWait <= 0 {
		est, err := d.EstimateConversion()
		if err != nil {
			return false, err
		}
		maxWait = est
	}
	interval := maxWait / 10
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	var waited time.Duration
	ready := false
	for {
		var err error
		if ready, err = d.IsReady(); err != nil {
			return false, err
		}
		if ready || waited >= maxWait {
			break
		}
		d.sleep(interval)
		waited += interval
	}
	if !ready {
		d.log.Warnw("conversion not ready", "device", d.name, "waited", waited)
	}
	if err := d.ClearReady(); err != nil {
		return false, err
	}
	return ready, nil
}

// Trigger starts a new conversion cycle. In a triggered mode, or when wait
// is true, it blocks until the conversion completes or times out, and
// reports whether it completed.
func (d *Dev) Trigger(wait bool) (bool, error) {
	if err := d.ClearReady(); err != nil {
		return false, err
	}
	m, err := d.restartConversion()
	if err != nil {
		return false, err
	}
	if !m.Triggered() && !wait {
		return false, nil
	}
	return d.WaitReady(0)
}

// restartConversion writes the current mode back to the chip, which starts
// a new conversion cycle.
func (d *Dev) restartConversion() (Mode, error) {
	m, err := d.Mode()
	if err != nil {
		return 0, err
	}
	if err := d.writeMode(m); err != nil {
		return 0, err
	}
	return m, nil
}
