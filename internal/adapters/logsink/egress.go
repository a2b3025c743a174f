package logsink

import (
	"context"

	"fxcalc/internal/domain"

	"github.com/sirupsen/logrus"
)

// Egress writes outcomes to the log. It is used when no message bus is configured;
// HTTP callers still poll results through the result cache.
type Egress struct{}

func (Egress) Deliver(_ context.Context, o domain.Outcome) error {
	entry := logrus.WithFields(logrus.Fields{"request_id": o.RequestID, "state": o.State})
	if o.Succeeded() {
		entry.WithFields(logrus.Fields{
			"value":    o.Result.Value.String(),
			"target":   o.Result.Target,
			"snapshot": o.Result.SnapshotVersion,
		}).Info("Conversion outcome")
		return nil
	}
	if o.Failure != nil {
		entry = entry.WithField("reason", o.Failure.Reason)
	}
	entry.Info("Conversion outcome")
	return nil
}
