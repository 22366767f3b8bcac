package hal

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"
)

// ads1015Addr is the ADS1015's I2C address per spec.md §6.
const ads1015Addr = 0x48

const (
	ads1015RegConversion = 0x00
	ads1015RegConfig     = 0x01
)

// ads1015 config register bitfields, PGA +-4.096V, 1600SPS, single-shot.
const (
	cfgOS          = 1 << 15 // start a single conversion
	cfgPGA4096     = 0x01 << 9
	cfgModeSingle  = 1 << 8
	cfgDR1600      = 0x04 << 5
	cfgCompDisable = 0x03
)

var bcmPins = map[Pin]gpio.PinIO{
	PinAzCW:   bcm283x.GPIO25,
	PinAzCCW:  bcm283x.GPIO8,
	PinElUp:   bcm283x.GPIO7,
	PinElDown: bcm283x.GPIO1,
}

// muxBits selects the single-ended input for each ADS1015 channel, per the
// ADS1015 datasheet's MUX field (AINx vs GND).
var muxBits = map[Channel]uint16{
	ChannelAz:    0x04 << 12,
	ChannelEl:    0x05 << 12,
	ChannelPower: 0x06 << 12,
}

// Real drives the actual Raspberry Pi hardware: bcm283x GPIO for the relay
// outputs, and the ADS1015 over /dev/i2c-1 for the ADC channels.
type Real struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// NewReal constructs a Real HAL. Init must be called before use.
func NewReal() *Real {
	return &Real{}
}

// Init opens the I2C bus (with a short exponential backoff — the bus can be
// transiently busy immediately after boot) and registers bcm283x as the
// platform's pin driver.
func (r *Real) Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("hal: host.Init: %w", err)
	}

	op := func() error {
		bus, err := i2creg.Open("")
		if err != nil {
			return err
		}
		r.bus = bus
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 1 * time.Second
	b.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("hal: opening i2c bus: %w", err)
	}
	r.dev = &i2c.Dev{Addr: ads1015Addr, Bus: r.bus}

	for pin, io := range bcmPins {
		if err := io.Out(gpio.Low); err != nil {
			return fmt.Errorf("hal: configuring pin %d: %w", pin, err)
		}
	}
	return nil
}

// Shutdown de-energizes every relay line and closes the I2C bus.
func (r *Real) Shutdown() error {
	var firstErr error
	for _, io := range bcmPins {
		if err := io.Out(gpio.Low); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.bus != nil {
		if err := r.bus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetPin drives the relay line for pin high or low.
func (r *Real) SetPin(pin Pin, high bool) error {
	io, ok := bcmPins[pin]
	if !ok {
		return fmt.Errorf("hal: unknown pin %d", pin)
	}
	lvl := gpio.Low
	if high {
		lvl = gpio.High
	}
	return io.Out(lvl)
}

// ReadADC issues a single-shot conversion on ch and reads the 12-bit
// result, right-shifted from the ADS1015's left-justified 16-bit reply.
func (r *Real) ReadADC(ch Channel) (uint16, bool, string) {
	mux, ok := muxBits[ch]
	if !ok {
		return 0, false, "unknown channel"
	}
	cfg := cfgOS | mux | cfgPGA4096 | cfgModeSingle | cfgDR1600 | cfgCompDisable

	var cfgBytes [2]byte
	binary.BigEndian.PutUint16(cfgBytes[:], cfg)
	write := []byte{ads1015RegConfig, cfgBytes[0], cfgBytes[1]}
	if err := r.dev.Tx(write, nil); err != nil {
		return 0, false, fmt.Sprintf("config write failed: %s", err)
	}

	time.Sleep(1 * time.Millisecond)

	var result [2]byte
	if err := r.dev.Tx([]byte{ads1015RegConversion}, result[:]); err != nil {
		return 0, false, fmt.Sprintf("conversion read failed: %s", err)
	}
	raw := int16(binary.BigEndian.Uint16(result[:]))
	counts := raw >> 4
	if counts < 0 {
		counts = 0
	}
	return uint16(counts), true, ""
}
