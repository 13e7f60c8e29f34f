package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/kafka"
	"github.com/emergency-vehicle-system/service-dispatch/internal/proto/events"
)

// eventPublisher wraps a kafka.Publisher. Publishing is best effort: a
// failure is logged and never fails the use case.
type eventPublisher struct {
	producer kafka.Publisher
	logger   *zap.Logger
}

func (p eventPublisher) publishEvent(ctx context.Context, topic, eventType string, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent(events.Source, eventType, data)
	if err != nil {
		p.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := p.producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
