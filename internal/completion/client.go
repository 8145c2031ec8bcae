package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"OpenAIApp/internal/session"
)

// Operation names used in errors, spans, logs and call records
const (
	OpChat       = "chat"
	OpCompletion = "completion"
	OpImage      = "image"
	OpEmbedding  = "embedding"
)

const instrumentationName = "OpenAIApp/internal/completion"

var (
	errNoChoices = errors.New("response contained no choices")
	errNoData    = errors.New("response contained no data")

	// ErrInvalidRequest marks requests rejected before they were sent
	ErrInvalidRequest = errors.New("invalid request")
)

// apiClient is the subset of *openai.Client the wrapper needs
type apiClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
	CreateCompletion(ctx context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error)
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Recorder receives a record for every finished call, successful or not
type Recorder interface {
	Record(ctx context.Context, rec CallRecord)
}

// Config holds what the client needs to reach the service
type Config struct {
	APIKey  string
	BaseURL string        // empty uses the public OpenAI endpoint
	Timeout time.Duration // 0 means no client-side timeout
}

// Client is a thin typed wrapper over the hosted completion service
type Client struct {
	api        apiClient
	httpClient *http.Client
	recorder   Recorder
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	inst       *instruments
}

// Option customizes a Client
type Option func(*Client)

// WithRecorder reports every call to r
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithLogger sets the logger used for call logging
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithMeter overrides the global meter
func WithMeter(m metric.Meter) Option {
	return func(c *Client) { c.meter = m }
}

// WithHTTPClient sets the HTTP client used by the transport
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func withAPI(api apiClient) Option {
	return func(c *Client) { c.api = api }
}

// CheckAPIKey returns the *ConfigurationError New would return for key
func CheckAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return &ConfigurationError{
			Field:  "api_key",
			Reason: "is required: set OPENAI_API_KEY or pass it explicitly",
		}
	}
	return nil
}

// New creates a client. A missing API key yields a *ConfigurationError.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := CheckAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}

	c := &Client{
		logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
		hc := c.httpClient
		if hc == nil {
			hc = &http.Client{Timeout: cfg.Timeout}
		}
		oc.HTTPClient = hc
		c.api = openai.NewClientWithConfig(oc)
	}

	inst, err := newInstruments(c.meter)
	if err != nil {
		return nil, &ConfigurationError{Field: "meter", Reason: err.Error()}
	}
	c.inst = inst

	return c, nil
}

// ChatComplete sends the whole transcript and returns the top-ranked reply as
// an assistant turn. With p.Stream set, the stream is drained into one turn.
func (c *Client) ChatComplete(ctx context.Context, turns []session.Turn, p Params) (session.Turn, error) {
	input := make([]string, len(turns))
	messages := make([]openai.ChatCompletionMessage, len(turns))
	for i, t := range turns {
		input[i] = t.Content
		messages[i] = openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Content}
	}

	req := openai.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    messages,
		MaxTokens:   p.MaxTokens,
		Temperature: wireTemperature(p.Temperature),
	}

	var reply session.Turn
	err := c.call(ctx, OpChat, p.Model, input, func(ctx context.Context) (Usage, error) {
		if len(turns) == 0 {
			return Usage{}, ErrEmptyTranscript
		}

		if p.Stream {
			content, err := c.drainChatStream(ctx, req)
			if err != nil {
				return Usage{}, err
			}
			reply = session.Turn{Role: session.RoleAssistant, Content: content}
			return Usage{}, nil
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return Usage{}, err
		}
		if len(resp.Choices) == 0 {
			return usageFrom(resp.Usage), errNoChoices
		}
		reply = session.Turn{Role: session.RoleAssistant, Content: resp.Choices[0].Message.Content}
		return usageFrom(resp.Usage), nil
	})
	return reply, err
}

func (c *Client) drainChatStream(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		if len(chunk.Choices) > 0 {
			b.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
}

// TextComplete runs a single prompt against the legacy completions endpoint
func (c *Client) TextComplete(ctx context.Context, prompt string, p Params) (string, error) {
	req := openai.CompletionRequest{
		Model:       p.Model,
		Prompt:      prompt,
		MaxTokens:   p.MaxTokens,
		Temperature: wireTemperature(p.Temperature),
	}

	var text string
	err := c.call(ctx, OpCompletion, p.Model, []string{prompt}, func(ctx context.Context) (Usage, error) {
		resp, err := c.api.CreateCompletion(ctx, req)
		if err != nil {
			return Usage{}, err
		}
		if len(resp.Choices) == 0 {
			return usageFrom(resp.Usage), errNoChoices
		}
		text = resp.Choices[0].Text
		return usageFrom(resp.Usage), nil
	})
	return text, err
}

// GenerateImage asks the image endpoint for opts.N images of the prompt
func (c *Client) GenerateImage(ctx context.Context, prompt string, opts ImageOptions) ([]ImageRef, error) {
	if opts.Model == "" {
		opts.Model = openai.CreateImageModelDallE3
	}
	if opts.Format == "" {
		opts.Format = ImageFormatURL
	}

	var refs []ImageRef
	err := c.call(ctx, OpImage, opts.Model, []string{prompt}, func(ctx context.Context) (Usage, error) {
		if opts.N < 1 {
			return Usage{}, fmt.Errorf("%w: image count must be at least 1, got %d", ErrInvalidRequest, opts.N)
		}
		if !validSize(opts.Size) {
			return Usage{}, fmt.Errorf("%w: unsupported image size %q", ErrInvalidRequest, opts.Size)
		}
		if !validQuality(opts.Quality) {
			return Usage{}, fmt.Errorf("%w: unsupported image quality %q", ErrInvalidRequest, opts.Quality)
		}

		resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
			Prompt:         prompt,
			Model:          opts.Model,
			N:              opts.N,
			Size:           string(opts.Size),
			Quality:        string(opts.Quality),
			ResponseFormat: string(opts.Format),
		})
		if err != nil {
			return Usage{}, err
		}
		if len(resp.Data) == 0 {
			return Usage{}, errNoData
		}

		refs = make([]ImageRef, len(resp.Data))
		for i, d := range resp.Data {
			refs[i] = ImageRef{URL: d.URL, B64JSON: d.B64JSON, RevisedPrompt: d.RevisedPrompt}
		}
		return Usage{}, nil
	})
	return refs, err
}

// Embed returns the embedding vector of text
func (c *Client) Embed(ctx context.Context, text, model string) ([]float32, error) {
	var vector []float32
	err := c.call(ctx, OpEmbedding, model, []string{text}, func(ctx context.Context) (Usage, error) {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			return Usage{}, err
		}
		if len(resp.Data) == 0 {
			return usageFrom(resp.Usage), errNoData
		}
		vector = resp.Data[0].Embedding
		return usageFrom(resp.Usage), nil
	})
	return vector, err
}
