package settings

// Keys of the runtime-tunable configuration store. The admin settings
// endpoint accepts arbitrary keys; these are the ones the core reads.
const (
	KeyAutomationPixel = "automation_pixel"
	KeyAutomationCAPI  = "automation_capi"

	KeyChaosDrop         = "chaos_drop"
	KeyChaosOmit         = "chaos_omit"
	KeyChaosOmitUserData = "chaos_omit_ud"
	KeyChaosMalformed    = "chaos_malformed"

	KeyPctProfitMargin = "pct_profit_margin"
	KeyMarginMin       = "margin_min"
	KeyMarginMax       = "margin_max"
	KeyPctPLTV         = "pct_pltv"
	KeyPLTVMin         = "pltv_min"
	KeyPLTVMax         = "pltv_max"
	KeyValueMin        = "value_min"
	KeyValueMax        = "value_max"

	KeyPixelID          = "pixel_id"
	KeyAccessToken      = "access_token"
	KeyTestEventCode    = "test_event_code"
	KeyUseTestEventCode = "use_test_event_code"
	KeyGraphVer         = "graph_ver"

	KeyQPSPixel = "qps_pixel"
	KeyQPSCAPI  = "qps_capi"

	KeyDefaultEmail = "default_em"
	KeyDefaultPhone = "default_ph"

	// Per-event automation intervals are stored as interval_<EventName>.
	intervalKeyPrefix = "interval_"
)

// IntervalKey returns the settings key holding the tick interval for one
// automated event name.
func IntervalKey(eventName string) string {
	return intervalKeyPrefix + eventName
}
