package dispatch

import "github.com/jdgallegos/beaconshop-backend/pkg/enums"

// Outcome is the terminal result of one channel-send attempt. Every attempt
// produces exactly one Outcome; nothing here triggers a retry.
type Outcome struct {
	Status    enums.DeliveryStatus `json:"status"`
	LatencyMS int64                `json:"latency_ms"`
	Detail    string               `json:"detail,omitempty"`
}

func dropped(detail string) Outcome {
	return Outcome{Status: enums.StatusDropped, Detail: detail}
}

func failed(latencyMS int64, detail string) Outcome {
	return Outcome{Status: enums.StatusError, LatencyMS: latencyMS, Detail: detail}
}
