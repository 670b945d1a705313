//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"

	"sparkbox/core"
)

var errADCChannel = errors.New("unsupported ADC channel")

// RPADCDriver implements core.ADCDriver using TinyGo's machine.ADC.
type RPADCDriver struct {
	channels [4]*machine.ADC
}

// NewRPADCDriver powers up the ADC
func NewRPADCDriver() *RPADCDriver {
	machine.InitADC()
	return &RPADCDriver{}
}

// ConfigureChannel sets up one of the external channels ADC0-ADC3.
func (d *RPADCDriver) ConfigureChannel(ch core.ADCChannel) error {
	if int(ch) >= len(d.channels) {
		return errADCChannel
	}
	if d.channels[ch] != nil {
		// already configured
		return nil
	}

	var adc machine.ADC
	switch ch {
	case 0:
		adc = machine.ADC{Pin: machine.ADC0}
	case 1:
		adc = machine.ADC{Pin: machine.ADC1}
	case 2:
		adc = machine.ADC{Pin: machine.ADC2}
	case 3:
		adc = machine.ADC{Pin: machine.ADC3}
	}
	if err := adc.Configure(machine.ADCConfig{}); err != nil {
		return err
	}
	d.channels[ch] = &adc
	return nil
}

// ReadRaw returns a 12-bit reading (0-4095).
func (d *RPADCDriver) ReadRaw(ch core.ADCChannel) (core.ADCValue, error) {
	if int(ch) >= len(d.channels) {
		return 0, errADCChannel
	}
	adc := d.channels[ch]
	if adc == nil {
		if err := d.ConfigureChannel(ch); err != nil {
			return 0, err
		}
		adc = d.channels[ch]
	}

	// TinyGo scales readings to 16 bits
	return core.ADCValue(adc.Get() >> 4), nil
}
