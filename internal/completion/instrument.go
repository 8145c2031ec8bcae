package completion

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type instruments struct {
	duration         metric.Float64Histogram
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	totalTokens      metric.Int64Counter
	failures         metric.Int64Counter
}

func newInstruments(m metric.Meter) (*instruments, error) {
	var (
		inst instruments
		err  error
	)

	inst.duration, err = m.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&inst.promptTokens, "llm.usage.prompt_tokens", "LLM usage metric: prompt_tokens"},
		{&inst.completionTokens, "llm.usage.completion_tokens", "LLM usage metric: completion_tokens"},
		{&inst.totalTokens, "llm.usage.total_tokens", "LLM usage metric: total_tokens"},
		{&inst.failures, "llm.request.failures", "Failed remote calls"},
	}
	for _, ct := range counters {
		*ct.dst, err = m.Int64Counter(ct.name, metric.WithDescription(ct.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", ct.name, err)
		}
	}

	return &inst, nil
}

// call is the single boundary every remote operation passes through: it opens
// the span, times the call, records metrics, wraps failures in ServiceError
// and notifies the recorder.
func (c *Client) call(ctx context.Context, op, model string, input []string, fn func(context.Context) (Usage, error)) error {
	ctx, span := c.tracer.Start(ctx, "completion."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.operation", op),
			attribute.String("llm.model", model),
		),
	)
	defer span.End()

	start := time.Now()
	usage, err := fn(ctx)
	duration := time.Since(start)

	attrs := metric.WithAttributes(attribute.String("llm.operation", op), attribute.String("llm.model", model))
	c.inst.duration.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		err = &ServiceError{Op: op, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.inst.failures.Add(ctx, 1, attrs)
		c.logger.Error("completion call failed",
			"op", op,
			"model", model,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
	} else {
		c.inst.promptTokens.Add(ctx, int64(usage.PromptTokens), attrs)
		c.inst.completionTokens.Add(ctx, int64(usage.CompletionTokens), attrs)
		c.inst.totalTokens.Add(ctx, int64(usage.TotalTokens), attrs)
		span.SetAttributes(
			attribute.Int("llm.usage.prompt_tokens", usage.PromptTokens),
			attribute.Int("llm.usage.completion_tokens", usage.CompletionTokens),
		)
		c.logger.Info("completion call finished",
			"op", op,
			"model", model,
			"duration_ms", duration.Milliseconds(),
			"total_tokens", usage.TotalTokens,
		)
	}

	if c.recorder != nil {
		c.recorder.Record(ctx, CallRecord{
			Op:       op,
			Model:    model,
			Input:    input,
			Usage:    usage,
			Duration: duration,
			Err:      err,
		})
	}

	return err
}
