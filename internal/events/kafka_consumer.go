package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/emergency-vehicle-system/service-dispatch/internal/application"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/kafka"
	"github.com/emergency-vehicle-system/service-dispatch/internal/proto/events"
)

// StationEventConsumer listens to station change events and reloads the
// local directory, so every replica converges on the same station set.
type StationEventConsumer struct {
	consumer *kafka.Consumer
	stations *application.StationService
	logger   *zap.Logger
}

// NewStationEventConsumer creates a new StationEventConsumer.
func NewStationEventConsumer(
	brokers []string,
	groupID string,
	stations *application.StationService,
	logger *zap.Logger,
) *StationEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicStationEvents, logger)
	return &StationEventConsumer{
		consumer: consumer,
		stations: stations,
		logger:   logger,
	}
}

// Start begins consuming station events. This blocks until the context is cancelled.
func (c *StationEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *StationEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *StationEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from station topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.StationUpdated, events.StationDeleted:
		return c.handleStationChanged(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled station event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *StationEventConsumer) handleStationChanged(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.StationChangedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse StationChangedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing station change",
		zap.String("type", cloudEvent.Type),
		zap.String("station_id", evt.StationID),
	)

	dir, err := c.stations.Refresh(ctx)
	if err != nil {
		c.logger.Error("failed to refresh directory after station change",
			zap.String("station_id", evt.StationID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("directory refreshed after station change",
		zap.String("station_id", evt.StationID),
		zap.Int("stations", dir.Len()),
	)
	return nil
}
