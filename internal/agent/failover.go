package agent

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/soyeahso/agentloop/internal/llm"
	"github.com/soyeahso/agentloop/internal/logging"
)

// FailoverClient is an llm.Client that walks a list of models. Each model
// gets its own retry budget with exponential backoff; errors that
// llm.ShouldFailover accepts move on to the next model, anything else is
// returned at once.
type FailoverClient struct {
	registry *llm.Registry
	models   []string
	retries  uint64
	backoff  func() backoff.BackOff
	log      *logging.Logger
}

// NewFailoverClient tries primary first, then fallbacks in order. retries
// counts extra attempts per model; negative means none.
func NewFailoverClient(registry *llm.Registry, primary string, fallbacks []string, retries int, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry: registry,
		models:   append([]string{primary}, fallbacks...),
		retries:  uint64(max(retries, 0)),
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
		log: log.Sub("failover"),
	}
}

// Name identifies the client by its primary model.
func (f *FailoverClient) Name() string { return "failover:" + f.models[0] }

func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for i, model := range f.models {
		client, err := f.registry.Resolve(model)
		if err != nil {
			f.log.Debug().Err(err).Str("model", model).Msg("skipping unresolvable model")
			lastErr = err
			continue
		}

		req.Model = model
		resp, err := f.retry(ctx, client, req)
		switch {
		case err == nil:
			if i > 0 {
				f.log.Info().Str("model", model).Str("primary", f.models[0]).Msg("served by fallback model")
			}
			return resp, nil
		case ctx.Err() != nil, !llm.ShouldFailover(err):
			return nil, err
		}
		f.log.Warn().Err(err).Str("model", model).Msg("model failed, trying next")
		lastErr = err
	}
	return nil, lastErr
}

// retry calls client until it succeeds, fails permanently or the retry
// budget runs out.
func (f *FailoverClient) retry(ctx context.Context, client llm.Client, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	op := func() error {
		r, err := client.Complete(ctx, req)
		if err != nil && !llm.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		resp = r
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.log.Debug().Err(err).Str("model", req.Model).Dur("wait", wait).Msg("retrying completion")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(f.backoff(), f.retries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return resp, nil
}
