package enums

import "fmt"

// Channel identifies which delivery path produced an event log entry.
type Channel string

const (
	// ChannelPixel is the simulated client-side beacon.
	ChannelPixel Channel = "pixel"
	// ChannelCAPI is the server-side conversion API call.
	ChannelCAPI Channel = "capi"
	// ChannelApp is used for internal bookkeeping rows (dry runs, automation
	// errors) that belong to neither delivery path.
	ChannelApp Channel = "app"
)

var validChannels = []Channel{ChannelPixel, ChannelCAPI, ChannelApp}

// String implements fmt.Stringer.
func (c Channel) String() string {
	return string(c)
}

// IsValid reports whether the channel is recognized.
func (c Channel) IsValid() bool {
	for _, candidate := range validChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// Other returns the opposite delivery channel, used for dedup lookups.
// App rows have no counterpart.
func (c Channel) Other() (Channel, bool) {
	switch c {
	case ChannelPixel:
		return ChannelCAPI, true
	case ChannelCAPI:
		return ChannelPixel, true
	}
	return "", false
}

// ParseChannel converts a raw string into a Channel.
func ParseChannel(value string) (Channel, error) {
	for _, candidate := range validChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid channel %q", value)
}
