package model

import (
	"fmt"
	"time"
)

// RideStatus is the lifecycle state of a ride as stored by the ride service.
type RideStatus string

const (
	StatusPending   RideStatus = "pending"
	StatusAccepted  RideStatus = "accepted"
	StatusOngoing   RideStatus = "ongoing"
	StatusCompleted RideStatus = "completed"
	StatusCancelled RideStatus = "cancelled"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ride carries the fields of a pending ride needed to run a dispatch.
type Ride struct {
	ID              string
	PassengerID     string
	Status          RideStatus
	PickupAddress   string
	PickupPoint     Point
	DropoffAddress  string
	DropoffPoint    Point
	FareEstimate    float64
	Currency        string
	VehicleType     string
	FuelType        string
	PetFriendly     bool
	ExtraPassengers bool
	Note            string
	PhotoURL        string
	RequestedAt     time.Time
}

// Validate checks that the ride can be dispatched at all.
func (r Ride) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("ride id is required")
	}
	if r.PassengerID == "" {
		return fmt.Errorf("passenger id is required")
	}
	return nil
}

// RideOffer is the immutable snapshot pushed to every candidate driver. It is
// built once per dispatch session and never mutated afterwards.
type RideOffer struct {
	RideID          string  `json:"ride_id"`
	PickupAddress   string  `json:"pickup_address"`
	PickupPoint     Point   `json:"pickup_point"`
	DropoffAddress  string  `json:"dropoff_address"`
	DropoffPoint    Point   `json:"dropoff_point"`
	FareEstimate    float64 `json:"fare_estimate"`
	Currency        string  `json:"currency"`
	VehicleType     string  `json:"vehicle_type"`
	Note            string  `json:"note,omitempty"`
	PhotoURL        string  `json:"photo_url,omitempty"`
	ExtraPassengers bool    `json:"extra_passengers"`
}

// NewRideOffer snapshots the offer payload for a ride.
func NewRideOffer(r Ride) RideOffer {
	return RideOffer{
		RideID:          r.ID,
		PickupAddress:   r.PickupAddress,
		PickupPoint:     r.PickupPoint,
		DropoffAddress:  r.DropoffAddress,
		DropoffPoint:    r.DropoffPoint,
		FareEstimate:    r.FareEstimate,
		Currency:        r.Currency,
		VehicleType:     r.VehicleType,
		Note:            r.Note,
		PhotoURL:        r.PhotoURL,
		ExtraPassengers: r.ExtraPassengers,
	}
}

// DriverFilters narrows the candidate pool. Zero values mean "no constraint"
// and are forwarded verbatim to the matching service.
type DriverFilters struct {
	VehicleType     string `json:"vehicle_type,omitempty"`
	FuelType        string `json:"fuel_type,omitempty"`
	PetFriendly     bool   `json:"pet_friendly"`
	ExtraPassengers bool   `json:"extra_passengers"`
}

// FiltersFor derives the matching filters from the ride request.
func FiltersFor(r Ride) DriverFilters {
	return DriverFilters{
		VehicleType:     r.VehicleType,
		FuelType:        r.FuelType,
		PetFriendly:     r.PetFriendly,
		ExtraPassengers: r.ExtraPassengers,
	}
}
