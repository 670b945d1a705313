package core

// ADCChannel identifies an analog input channel.
type ADCChannel uint8

// ADCValue is a raw 12-bit reading (0..ADCMax).
type ADCValue uint16

// ADCMax is the full-scale reading.
const ADCMax = 4095

// ADCDriver is the abstract ADC interface that core code uses.
type ADCDriver interface {
	// ConfigureChannel prepares a channel for analog input.
	// For pin-muxed channels, this should set pin to analog mode.
	ConfigureChannel(ch ADCChannel) error

	// ReadRaw performs a one-shot sample from the given channel.
	ReadRaw(ch ADCChannel) (ADCValue, error)
}
