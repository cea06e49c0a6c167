package mqtt

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/pmallet07/rideflow/infra/logger"
)

// Driver actions accepted on the response topic.
const (
	ActionAccept = "accept"
	ActionSkip   = "skip"
	ActionAck    = "ack"
	ActionCancel = "cancel"
)

// DispatchResponse is what the driver app publishes back about an offer.
type DispatchResponse struct {
	RideID   string `json:"ride_id"`
	UserID   string `json:"user_id"`
	DriverID string `json:"driver_id"`
	Action   string `json:"action"`
}

// DispatchHandler is the slice of the orchestrator and penalty tracker the
// response intake needs.
type DispatchHandler interface {
	MarkDriverSkipped(rideID, userID string)
	ResetDriverTimer(rideID, userID string) bool
	CancelDispatch(rideID, acceptedUserID string)
}

// CancellationRecorder penalizes a driver cancelling an accepted ride.
type CancellationRecorder interface {
	RecordCancellation(ctx context.Context, driverID string) error
}

// ResponseHandler routes driver responses onto the dispatch core.
func ResponseHandler(h DispatchHandler, cr CancellationRecorder, log logger.Logger) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		var resp DispatchResponse
		if err := json.Unmarshal(msg.Payload(), &resp); err != nil {
			log.Errorf("invalid dispatch response: %v", err)
			return
		}
		switch resp.Action {
		case ActionAccept:
			h.CancelDispatch(resp.RideID, resp.UserID)
		case ActionSkip:
			h.MarkDriverSkipped(resp.RideID, resp.UserID)
		case ActionAck:
			if !h.ResetDriverTimer(resp.RideID, resp.UserID) {
				log.Debugf("stale ack from %s for ride %s", resp.UserID, resp.RideID)
			}
		case ActionCancel:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := cr.RecordCancellation(ctx, resp.DriverID); err != nil {
				log.Errorf("record cancellation for driver %s: %v", resp.DriverID, err)
			}
		default:
			log.Warnf("unknown dispatch response action %q", resp.Action)
		}
	}
}

// SubscribeResponses attaches the response handler to the configured topic.
func (p *PahoPublisher) SubscribeResponses(topic string, handler paho.MessageHandler) error {
	token := p.cli.Subscribe(topic, p.qos, handler)
	token.Wait()
	return token.Error()
}
