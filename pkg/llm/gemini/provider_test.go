package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, pubSub *gochannel.GoChannel) *Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), Config{
		ApiKey:            "test-key",
		ChatModel:         "gemini-2.0-flash",
		EmbeddingModel:    "gemini-embedding-001",
		JobTopic:          "jobs",
		NotificationTopic: "notifications",
	}, pubSub, logger.NewNopLogger())
	require.NoError(t, err)
	return p
}

func completedEnvelope(t *testing.T, jobId string, results ...batchResult) []byte {
	t.Helper()
	payload, err := json.Marshal(batchEnvelope{
		Type:     eventBatchCompleted,
		Provider: ProviderName,
		JobId:    jobId,
		Results:  results,
	})
	require.NoError(t, err)
	return payload
}

func TestIngestBatchResult(t *testing.T) {
	p := newTestProvider(t, nil)
	p.trackJob("job-1", []shopping.ProductText{{Id: 7, Name: "Milk"}, {Id: 8, Name: "Eggs"}})

	t.Run("completed envelope", func(t *testing.T) {
		payload := completedEnvelope(t, "job-1",
			batchResult{ProductId: 7, Embedding: []float32{0.1, 0.2}},
			batchResult{ProductId: 8, Embedding: []float32{0.3, 0.4}},
		)

		records, err := p.IngestBatchResult(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, []shopping.EmbeddingRecord{
			{ProductId: 7, Embedding: []float32{0.1, 0.2}},
			{ProductId: 8, Embedding: []float32{0.3, 0.4}},
		}, records)
	})

	t.Run("redelivered envelope", func(t *testing.T) {
		payload := completedEnvelope(t, "job-1", batchResult{ProductId: 7, Embedding: []float32{0.1, 0.2}})

		records, err := p.IngestBatchResult(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("products outside the job are dropped", func(t *testing.T) {
		payload := completedEnvelope(t, "job-1",
			batchResult{ProductId: 7, Embedding: []float32{0.1, 0.2}},
			batchResult{ProductId: 99, Embedding: []float32{1, 0}},
		)

		records, err := p.IngestBatchResult(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, []shopping.EmbeddingRecord{{ProductId: 7, Embedding: []float32{0.1, 0.2}}}, records)
	})

	unmatched := map[string][]byte{
		"never submitted job": completedEnvelope(t, "never-submitted", batchResult{ProductId: 7, Embedding: []float32{1, 0, 0}}),
		"missing job id":      completedEnvelope(t, "", batchResult{ProductId: 7, Embedding: []float32{1, 0, 0}}),
	}
	for name, payload := range unmatched {
		t.Run(name, func(t *testing.T) {
			records, err := p.IngestBatchResult(context.Background(), payload, nil)
			assert.NoError(t, err)
			assert.Nil(t, records)
		})
	}

	notApplicable := map[string]string{
		"openai event":   `{"id":"evt_1","object":"event","type":"batch.completed","data":{"id":"batch_1"}}`,
		"failed job":     `{"type":"batch.failed","provider":"gemini","job_id":"job-1"}`,
		"not json":       `hello`,
		"empty object":   `{}`,
		"other provider": `{"type":"batch.completed","provider":"openai","job_id":"job-1","results":[]}`,
	}
	for name, payload := range notApplicable {
		t.Run(name, func(t *testing.T) {
			records, err := p.IngestBatchResult(context.Background(), []byte(payload), nil)
			assert.NoError(t, err)
			assert.Nil(t, records)
		})
	}
}

func TestParseTurnText(t *testing.T) {
	t.Run("fenced action", func(t *testing.T) {
		text := "Sure, I can do that.\n```json\n{\"reply\":\"Want me to build carts for lasagna?\",\"action\":{\"type\":\"suggest_carts\",\"payload\":{\"input\":\"lasagna for six\"}}}\n```"
		result, err := parseTurnText(text)
		require.NoError(t, err)
		require.NotNil(t, result.Action)
		assert.Equal(t, llm.ActionSuggestCarts, result.Action.Type)
		assert.JSONEq(t, `{"input":"lasagna for six"}`, string(result.Action.Payload))
	})

	t.Run("plain reply", func(t *testing.T) {
		result, err := parseTurnText(`{"reply":"Hi! What are you shopping for?","action":null}`)
		require.NoError(t, err)
		assert.Equal(t, "Hi! What are you shopping for?", result.Reply)
		assert.Nil(t, result.Action)
	})

	t.Run("prose only", func(t *testing.T) {
		_, err := parseTurnText("Hello there, how can I help?")
		assert.True(t, errors.Is(err, llm.ErrSchemaInvalid))
	})
}

func TestSubmitBatchEmbedding_QueuesJob(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs, err := pubSub.Subscribe(ctx, "jobs")
	require.NoError(t, err)

	p := newTestProvider(t, pubSub)
	products := []shopping.ProductText{{Id: 1, Name: "Basmati rice"}, {Id: 2, Name: "Chickpeas"}}
	require.NoError(t, p.SubmitBatchEmbedding(ctx, products))

	msg := <-jobs
	msg.Ack()

	var job batchJob
	require.NoError(t, json.Unmarshal(msg.Payload, &job))
	assert.NotEmpty(t, job.JobId)
	assert.Equal(t, products, job.Products)

	tracked, ok := p.submittedProducts(job.JobId)
	require.True(t, ok)
	assert.Len(t, tracked, 2)
}

func TestSubmitBatchEmbedding_EmptyIsNoop(t *testing.T) {
	p := newTestProvider(t, nil)
	assert.NoError(t, p.SubmitBatchEmbedding(context.Background(), nil))
}
