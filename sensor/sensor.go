// Package sensor describes the ADC channels the rotator daemon reads from
// the ADS1015 converter.
package sensor

// Channel identifies one of the four ADS1015 input channels.
type Channel int

// The three channels wired on the G-5500 interface board. Channel 3 is
// unused by this design and reserved.
const (
	ChannelAz Channel = iota
	ChannelEl
	ChannelPower
)

// Info describes a single ADC channel: which physical quantity it reports
// and how to interpret raw counts.
type Info struct {
	// Name is a human label, e.g. "azimuth potentiometer"
	Name string `yaml:"name"`

	// Channel is the ADS1015 input channel (0-3) wired to this signal
	Channel Channel `yaml:"channel"`

	// Role distinguishes position feedback from the health channel
	Role string `yaml:"role"`
}

// Registry is the fixed set of channels this daemon reads every tick.
var Registry = []Info{
	{Name: "azimuth potentiometer", Channel: ChannelAz, Role: "position"},
	{Name: "elevation potentiometer", Channel: ChannelEl, Role: "position"},
	{Name: "power ok rail", Channel: ChannelPower, Role: "health"},
}
