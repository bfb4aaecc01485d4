package geofence

import (
	"context"

	"github.com/rs/zerolog"

	"soar/internal/metrics"
	"soar/internal/model"
)

// Notifier delivers an exit-event notification to one subscriber. Email
// templating and SMTP delivery are external collaborators; the
// interface exists so the detector can call out to them without owning
// that concern.
type Notifier interface {
	Notify(ctx context.Context, event *model.GeofenceExitEvent, subscriber model.GeofenceSubscriber) error
}

// LoggingNotifier is the notifier shipped with this module: it logs the
// notification at info level for subscribers with SendEmail set and
// always returns nil. The exit-event row has already been persisted by
// the time Notify is called.
type LoggingNotifier struct {
	Log zerolog.Logger
}

func (n LoggingNotifier) Notify(ctx context.Context, event *model.GeofenceExitEvent, sub model.GeofenceSubscriber) error {
	if !sub.SendEmail {
		return nil
	}
	n.Log.Info().
		Int64("geofence_id", event.GeofenceID).
		Int64("aircraft_id", event.AircraftID).
		Int64("user_id", sub.UserID).
		Msg("geofence exit notification")
	return nil
}

// NotifyAll sends one notification per subscriber with SendEmail set and
// returns the delivered count; storing that count on the event row is
// left to the caller. Failures increment
// metrics.NotificationsFailed but never block the event row's
// persistence, which must already have happened before NotifyAll runs.
func NotifyAll(ctx context.Context, n Notifier, event *model.GeofenceExitEvent, subs []model.GeofenceSubscriber) int {
	delivered := 0
	for _, sub := range subs {
		if !sub.SendEmail {
			continue
		}
		if err := n.Notify(ctx, event, sub); err != nil {
			metrics.NotificationsFailed.Inc()
			continue
		}
		delivered++
	}
	return delivered
}
