package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"chart-analysis-be/internal/dto"
	"chart-analysis-be/internal/entity"
	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/internal/repository/memory"
	"chart-analysis-be/pkg/embedding"
	"chart-analysis-be/pkg/similarity"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the embed-chart work queue: for each registered
// chart it computes (or restores from cache) the embedding and upserts it
// into the similarity index so later analyses can retrieve it.
type consumerService struct {
	pubSub             *gochannel.GoChannel
	topicName          string
	chartRepo          *memory.ChartRepository
	embeddingGenerator *embedding.Generator
	index              *similarity.Index
	logger             logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	chartRepo *memory.ChartRepository,
	embeddingGenerator *embedding.Generator,
	index *similarity.Index,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:             pubSub,
		topicName:          topicName,
		chartRepo:          chartRepo,
		embeddingGenerator: embeddingGenerator,
		index:              index,
		logger:             log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedChartMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("consumer_service", "Failed to unmarshal message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // malformed payloads would fail forever
		return
	}

	chart, found := cs.chartRepo.Get(payload.ChartId)
	if !found {
		cs.logger.Warn("consumer_service", "Chart not found, dropping message", map[string]interface{}{
			"chart_id": payload.ChartId,
		})
		msg.Ack()
		return
	}

	imageData, err := os.ReadFile(chart.ImagePath)
	if err != nil {
		cs.logger.Error("consumer_service", "Failed to read chart image", map[string]interface{}{
			"chart_id": chart.Id, "path": chart.ImagePath, "error": err.Error(),
		})
		msg.Nack()
		return
	}

	vec, err := cs.embeddingGenerator.Embed(ctx, imageData)
	if err != nil {
		if errors.Is(err, embedding.ErrDimensionMismatch) {
			// The provider is misconfigured; retrying the same bytes cannot
			// change the outcome.
			cs.logger.Error("consumer_service", "Embedding rejected, dropping message", map[string]interface{}{
				"chart_id": chart.Id, "error": err.Error(),
			})
			msg.Ack()
			return
		}
		cs.logger.Error("consumer_service", "Embedding failed", map[string]interface{}{
			"chart_id": chart.Id, "error": err.Error(),
		})
		msg.Nack()
		return
	}

	err = cs.index.Upsert(similarity.Record{
		ChartId: chart.Id,
		Vector:  vec,
		Metadata: similarity.RecordMetadata{
			Filename:   chart.Filename,
			Instrument: chart.Instrument,
			Timeframe:  chart.Timeframe,
			MapPaths:   chart.MapPaths,
		},
	})
	if err != nil {
		cs.logger.Error("consumer_service", "Index upsert rejected", map[string]interface{}{
			"chart_id": chart.Id, "error": err.Error(),
		})
		msg.Ack()
		return
	}

	now := time.Now()
	cs.chartRepo.Update(chart.Id, func(c *entity.Chart) {
		c.Embedded = true
		c.UpdatedAt = &now
	})

	cs.logger.Info("consumer_service", "Chart embedded and indexed", map[string]interface{}{
		"chart_id": chart.Id, "index_size": cs.index.Size(),
	})
	msg.Ack()
}
