package gemini

import (
	"context"
	"encoding/json"
	"time"

	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/patrickmn/go-cache"
)

// Gemini has no batch webhook, so batch embedding runs as an in-process job
// queue that reports back in the same shape a webhook would.

const eventBatchCompleted = "batch.completed"

const chunkTimeout = 2 * time.Minute

// jobTTL bounds how long a submitted job can still report results. Entries are
// kept after ingestion so a redelivered result is still accepted.
const jobTTL = 48 * time.Hour

type batchJob struct {
	JobId    string                 `json:"job_id"`
	Products []shopping.ProductText `json:"products"`
}

type batchEnvelope struct {
	Type     string        `json:"type"`
	Provider string        `json:"provider"`
	JobId    string        `json:"job_id"`
	Results  []batchResult `json:"results"`
}

type batchResult struct {
	ProductId int64     `json:"product_id"`
	Embedding []float32 `json:"embedding"`
}

func (p *Provider) SubmitBatchEmbedding(_ context.Context, products []shopping.ProductText) error {
	if len(products) == 0 {
		return nil
	}

	job := batchJob{JobId: watermill.NewUUID(), Products: products}
	payload, err := json.Marshal(job)
	if err != nil {
		return llm.Wrap(ProviderName, "submit_batch_embedding", err)
	}

	p.trackJob(job.JobId, products)
	msg := message.NewMessage(job.JobId, payload)
	if err := p.publisher.Publish(p.jobTopic, msg); err != nil {
		p.jobs.Delete(job.JobId)
		return llm.Wrap(ProviderName, "submit_batch_embedding", err)
	}

	p.logger.Info("llm", "Gemini embedding job queued", map[string]interface{}{
		"job_id":   job.JobId,
		"products": len(products),
	})
	return nil
}

func (p *Provider) trackJob(jobId string, products []shopping.ProductText) {
	ids := make(map[int64]struct{}, len(products))
	for _, product := range products {
		ids[product.Id] = struct{}{}
	}
	p.jobs.Set(jobId, ids, cache.DefaultExpiration)
}

func (p *Provider) submittedProducts(jobId string) (map[int64]struct{}, bool) {
	if jobId == "" {
		return nil, false
	}
	v, ok := p.jobs.Get(jobId)
	if !ok {
		return nil, false
	}
	return v.(map[int64]struct{}), true
}

// RunBatchWorker consumes queued jobs until ctx is done.
func (p *Provider) RunBatchWorker(ctx context.Context, subscriber message.Subscriber) error {
	messages, err := subscriber.Subscribe(ctx, p.jobTopic)
	if err != nil {
		return err
	}

	for msg := range messages {
		p.processJob(ctx, msg)
	}
	return nil
}

func (p *Provider) processJob(ctx context.Context, msg *message.Message) {
	var job batchJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		p.logger.Error("llm", "Invalid Gemini batch job", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	results := make([]batchResult, 0, len(job.Products))
	for start := 0; start < len(job.Products); start += p.chunkSize {
		end := start + p.chunkSize
		if end > len(job.Products) {
			end = len(job.Products)
		}
		chunk := job.Products[start:end]

		texts := make([]string, len(chunk))
		for i, product := range chunk {
			texts[i] = product.Name
		}

		chunkCtx, cancel := context.WithTimeout(ctx, chunkTimeout)
		vectors, err := p.embed(chunkCtx, texts, taskRetrievalDocument)
		cancel()
		if err != nil {
			// Products of a failed chunk stay without embedding and are
			// picked up by the next submission.
			p.logger.Error("llm", "Gemini batch chunk failed", map[string]interface{}{
				"job_id": job.JobId,
				"offset": start,
				"error":  err.Error(),
			})
			continue
		}
		for i, product := range chunk {
			results = append(results, batchResult{ProductId: product.Id, Embedding: vectors[i]})
		}
	}

	envelope := batchEnvelope{
		Type:     eventBatchCompleted,
		Provider: ProviderName,
		JobId:    job.JobId,
		Results:  results,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Error("llm", "Failed to encode Gemini batch result", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	out := message.NewMessage(watermill.NewUUID(), payload)
	out.Metadata.Set("provider", ProviderName)
	if err := p.publisher.Publish(p.notificationTopic, out); err != nil {
		p.logger.Error("llm", "Failed to publish Gemini batch result", map[string]interface{}{
			"job_id": job.JobId,
			"error":  err.Error(),
		})
		msg.Nack()
		return
	}

	p.logger.Info("llm", "Gemini embedding job finished", map[string]interface{}{
		"job_id":   job.JobId,
		"embedded": len(results),
		"products": len(job.Products),
	})
	msg.Ack()
}
