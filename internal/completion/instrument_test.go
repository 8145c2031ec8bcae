package completion

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"OpenAIApp/internal/session"
)

type fakeAPI struct {
	chatResp   openai.ChatCompletionResponse
	chatErr    error
	chatCalls  int
	imageCalls int
}

func (f *fakeAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.chatCalls++
	return f.chatResp, f.chatErr
}

func (f *fakeAPI) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	return nil, errors.New("streaming not faked")
}

func (f *fakeAPI) CreateCompletion(ctx context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error) {
	return openai.CompletionResponse{}, nil
}

func (f *fakeAPI) CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error) {
	f.imageCalls++
	return openai.ImageResponse{}, nil
}

func (f *fakeAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return openai.EmbeddingResponse{}, nil
}

type recorderFunc func(ctx context.Context, rec CallRecord)

func (f recorderFunc) Record(ctx context.Context, rec CallRecord) { f(ctx, rec) }

func okChat(content string, prompt, completion int) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
		Usage: openai.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
	}
}

func TestChatComplete_EmptyTranscriptNeverSent(t *testing.T) {
	fake := &fakeAPI{chatResp: okChat("x", 1, 1)}
	c, err := New(Config{APIKey: "test-key"}, withAPI(fake))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.ChatComplete(context.Background(), nil, Params{Model: "gpt-3.5-turbo"})
	if !IsServiceError(err) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("expected ErrEmptyTranscript, got %v", err)
	}
	if fake.chatCalls != 0 {
		t.Errorf("expected no remote calls, got %d", fake.chatCalls)
	}
}

func TestChatComplete_NoChoices(t *testing.T) {
	fake := &fakeAPI{}
	c, err := New(Config{APIKey: "test-key"}, withAPI(fake))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.ChatComplete(context.Background(),
		[]session.Turn{{Role: session.RoleUser, Content: "hi"}}, Params{Model: "m"})
	if !errors.Is(err, errNoChoices) {
		t.Errorf("expected errNoChoices, got %v", err)
	}
}

func TestRecorder_ReceivesEveryCall(t *testing.T) {
	fake := &fakeAPI{chatResp: okChat("hello", 10, 5)}
	var records []CallRecord
	c, err := New(Config{APIKey: "test-key"},
		withAPI(fake),
		WithRecorder(recorderFunc(func(ctx context.Context, rec CallRecord) {
			records = append(records, rec)
		})),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	turns := []session.Turn{
		{Role: session.RoleSystem, Content: "sys"},
		{Role: session.RoleUser, Content: "hi"},
	}
	if _, err := c.ChatComplete(context.Background(), turns, Params{Model: "gpt-3.5-turbo"}); err != nil {
		t.Fatalf("ChatComplete: %v", err)
	}

	fake.chatErr = errors.New("boom")
	if _, err := c.ChatComplete(context.Background(), turns, Params{Model: "gpt-3.5-turbo"}); err == nil {
		t.Fatal("expected error")
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	ok := records[0]
	if ok.Op != OpChat || ok.Model != "gpt-3.5-turbo" || ok.Err != nil {
		t.Errorf("unexpected success record %+v", ok)
	}
	if ok.Usage.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", ok.Usage.TotalTokens)
	}
	if len(ok.Input) != 2 || ok.Input[1] != "hi" {
		t.Errorf("unexpected input %v", ok.Input)
	}
	if !IsServiceError(records[1].Err) {
		t.Errorf("expected ServiceError in failure record, got %v", records[1].Err)
	}
}

func TestCall_RecordsMetricsAndSpans(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	fake := &fakeAPI{chatResp: okChat("hello", 10, 5)}
	c, err := New(Config{APIKey: "test-key"},
		withAPI(fake),
		WithMeter(mp.Meter("test")),
		WithTracer(tp.Tracer("test")),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	turns := []session.Turn{{Role: session.RoleUser, Content: "hi"}}
	if _, err := c.ChatComplete(ctx, turns, Params{Model: "gpt-3.5-turbo"}); err != nil {
		t.Fatalf("ChatComplete: %v", err)
	}
	fake.chatErr = errors.New("quota exceeded")
	_, _ = c.ChatComplete(ctx, turns, Params{Model: "gpt-3.5-turbo"})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	sums := map[string]int64{}
	histogramCount := uint64(0)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					histogramCount += dp.Count
				}
			}
		}
	}
	if sums["llm.usage.total_tokens"] != 15 {
		t.Errorf("expected 15 total tokens, got %d", sums["llm.usage.total_tokens"])
	}
	if sums["llm.request.failures"] != 1 {
		t.Errorf("expected 1 failure, got %d", sums["llm.request.failures"])
	}
	if histogramCount != 2 {
		t.Errorf("expected 2 duration samples, got %d", histogramCount)
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "completion.chat" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("expected first span to succeed")
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("expected error status on failed span, got %v", spans[1].Status().Code)
	}
}
