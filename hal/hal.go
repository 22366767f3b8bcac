// Package hal defines the narrow hardware-abstraction surface the motion
// controller consumes. Two implementations exist: Real (bcm283x GPIO +
// ADS1015 over I2C) and Sim (synthetic counts for bench testing).
package hal

// Pin identifies one of the four BCM GPIO lines driving a relay.
type Pin int

// BCM pin numbers for the four active-high relay outputs.
const (
	PinAzCW   Pin = 25
	PinAzCCW  Pin = 8
	PinElUp   Pin = 7
	PinElDown Pin = 1
)

// Channel identifies one of the ADS1015's four input channels.
type Channel int

// The three channels this design reads.
const (
	ChannelAz Channel = iota
	ChannelEl
	ChannelPower
)

// HAL is the capability set the motion controller requires. counts
// returned by ReadADC are the 12-bit ADS1015 result, clamped to [0, 2047];
// negative conversions are clamped to 0 rather than returned as an error.
type HAL interface {
	// Init opens the GPIO and I2C devices. Called once at startup.
	Init() error

	// Shutdown releases all four pins to low and closes any open handles.
	Shutdown() error

	// ReadADC samples one channel. ok is false (with reason populated) on
	// a communication failure; counts is meaningless in that case.
	ReadADC(ch Channel) (counts uint16, ok bool, reason string)

	// SetPin drives pin high or low. Idempotent.
	SetPin(pin Pin, high bool) error
}
