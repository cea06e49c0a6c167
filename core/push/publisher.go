// Package push defines the fire-and-forget real-time transport used to reach
// drivers and riders on logical channels.
package push

import "fmt"

// Publisher delivers an event to every subscriber of a logical channel.
// Delivery is at-most-once-effort: a nil error means the message was handed
// to the transport, not that anyone received it.
type Publisher interface {
	Publish(channel, event string, payload any) error
}

// DriverChannel is the logical channel of a driver account.
func DriverChannel(userID string) string { return fmt.Sprintf("driver/%s", userID) }

// RiderChannel is the logical channel of a passenger account.
func RiderChannel(passengerID string) string { return fmt.Sprintf("rider/%s", passengerID) }

// Event names pushed by the dispatch core.
const (
	EventRideOffer      = "ride_offer"
	EventOfferWithdrawn = "ride_offer_withdrawn"
	EventSearchProgress = "dispatch_progress"
	EventSearchReset    = "dispatch_waiting"
	EventNoDriverFound  = "no_driver_found"
)
