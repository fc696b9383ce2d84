package enums

import "fmt"

// EventName is the canonical conversion event vocabulary shared by both
// delivery channels.
type EventName string

const (
	EventPageView             EventName = "PageView"
	EventViewContent          EventName = "ViewContent"
	EventAddToCart            EventName = "AddToCart"
	EventInitiateCheckout     EventName = "InitiateCheckout"
	EventAddPaymentInfo       EventName = "AddPaymentInfo"
	EventPurchase             EventName = "Purchase"
	EventContact              EventName = "Contact"
	EventSearch               EventName = "Search"
	EventCompleteRegistration EventName = "CompleteRegistration"
)

var validEventNames = []EventName{
	EventPageView,
	EventViewContent,
	EventAddToCart,
	EventInitiateCheckout,
	EventAddPaymentInfo,
	EventPurchase,
	EventContact,
	EventSearch,
	EventCompleteRegistration,
}

// StandardEventNames returns the funnel events the automation scheduler
// drives by default.
func StandardEventNames() []EventName {
	return []EventName{
		EventPageView,
		EventViewContent,
		EventAddToCart,
		EventInitiateCheckout,
		EventAddPaymentInfo,
		EventPurchase,
	}
}

// String implements fmt.Stringer.
func (e EventName) String() string {
	return string(e)
}

// IsValid reports whether the event name is recognized.
func (e EventName) IsValid() bool {
	for _, candidate := range validEventNames {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventName converts a raw string into an EventName.
func ParseEventName(value string) (EventName, error) {
	for _, candidate := range validEventNames {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event name %q", value)
}
