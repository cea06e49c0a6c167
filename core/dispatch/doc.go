// Package dispatch matches a pending ride to a driver through a sequential
// waterfall of offers. Each ride owns an independent, timer-driven session:
// rounds escalate the search radius, every candidate gets a bounded window to
// respond, and exhausted cycles retry from round zero until either a driver
// accepts or the global time budget runs out and the ride is cancelled.
//
// Sessions live in process memory; only the notified-driver list is mirrored
// to the ride repository so a restarted process never re-offers a ride to a
// driver who already saw it.
package dispatch
