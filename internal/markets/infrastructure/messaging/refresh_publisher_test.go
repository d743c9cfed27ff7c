package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/mq"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestPublishRefreshCompleted(t *testing.T) {
	w := &captureWriter{}
	pub := NewRefreshPublisher(mq.NewProducerWithWriter(w), "coinboard.refresh.completed")

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	run := domain.NewRefreshRun(domain.TriggerScheduled, "coingecko", start)
	run.Fetched, run.Inserted, run.Updated = 3, 1, 2
	run.Finish(domain.StatusSucceeded, nil, start.Add(time.Second))

	require.NoError(t, pub.PublishRefreshCompleted(context.Background(), domain.NewRefreshCompletedEvent(run)))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "coinboard.refresh.completed", msg.Topic)
	assert.Equal(t, run.RunID, string(msg.Key))

	var evt domain.RefreshCompletedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	assert.Equal(t, "succeeded", evt.Status)
	assert.Equal(t, "scheduled", evt.Trigger)
	assert.Equal(t, 3, evt.Fetched)
	assert.Empty(t, evt.Error)
}
