// Package demo runs a fixed tour of the completion client.
package demo

import (
	"context"
	"fmt"
	"io"
	"strings"

	"OpenAIApp/internal/completion"
	"OpenAIApp/internal/console"
	"OpenAIApp/internal/ledger"
	"OpenAIApp/internal/session"
)

// Client is the part of *completion.Client the demonstration uses
type Client interface {
	ChatComplete(ctx context.Context, turns []session.Turn, p completion.Params) (session.Turn, error)
	TextComplete(ctx context.Context, prompt string, p completion.Params) (string, error)
	GenerateImage(ctx context.Context, prompt string, opts completion.ImageOptions) ([]completion.ImageRef, error)
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// UsageReporter summarizes the calls made during the run
type UsageReporter interface {
	Summary(ctx context.Context, sessionID string) (ledger.Summary, error)
}

// Options selects models and optional steps
type Options struct {
	Chat       completion.Params
	Completion completion.Params
	Embedding  string
	Image      completion.ImageOptions

	// WithImage enables the image example, which is billed per image
	WithImage bool

	Usage     UsageReporter
	SessionID string
}

const embedPreview = 5

// Run executes every example in order and stops at the first failure
func Run(ctx context.Context, client Client, out io.Writer, opts Options) error {
	c := console.New(out)
	c.Success("✅ OpenAI client initialized successfully!")
	c.Info("")

	steps := []struct {
		title string
		run   func(context.Context, Client, *console.Console, Options) error
		skip  bool
	}{
		{"🤖 Example 1: Simple Chat Completion", simpleChat, false},
		{"📝 Example 2: Creative Writing", creativeWriting, false},
		{"📄 Example 3: Text Completion", textCompletion, false},
		{"🔢 Example 4: Text Embeddings", embeddings, false},
		{"🎨 Example 5: Image Generation", imageGeneration, !opts.WithImage},
		{"💬 Example 6: Multi-turn Conversation", multiTurn, false},
	}

	for _, s := range steps {
		if s.skip {
			continue
		}
		c.Section(s.title)
		if err := s.run(ctx, client, c, opts); err != nil {
			return err
		}
	}

	c.Success("✅ All examples completed successfully!")

	if opts.Usage != nil && opts.SessionID != "" {
		sum, err := opts.Usage.Summary(ctx, opts.SessionID)
		if err != nil {
			return fmt.Errorf("failed to summarize usage: %w", err)
		}
		c.Muted(fmt.Sprintf("%d calls, %d tokens (%d prompt, %d completion)",
			sum.Calls, sum.TotalTokens(), sum.PromptTokens, sum.CompletionTokens))
	}
	return nil
}

// Fail reports a failed run with setup guidance
func Fail(out io.Writer, err error) {
	c := console.New(out)
	c.Error(err)
	c.Info("")
	c.Info("Make sure you have:")
	c.Info("1. Set your OpenAI API key in a .env file or the OPENAI_API_KEY environment variable")
	c.Info("2. Checked openaiapp.yaml (or the file passed with --config) for invalid values")
}

func simpleChat(ctx context.Context, client Client, c *console.Console, opts Options) error {
	reply, err := client.ChatComplete(ctx, []session.Turn{
		{Role: session.RoleSystem, Content: "You are a helpful assistant."},
		{Role: session.RoleUser, Content: "What is the capital of France?"},
	}, opts.Chat)
	if err != nil {
		return err
	}
	c.Info("Response: " + reply.Content)
	c.Info("")
	return nil
}

func creativeWriting(ctx context.Context, client Client, c *console.Console, opts Options) error {
	p := opts.Chat
	p.Temperature = 1.0
	p.MaxTokens = 200

	reply, err := client.ChatComplete(ctx, []session.Turn{
		{Role: session.RoleSystem, Content: "You are a creative storyteller."},
		{Role: session.RoleUser, Content: "Write a short story about a robot learning to paint."},
	}, p)
	if err != nil {
		return err
	}
	c.Info("Story: " + reply.Content)
	c.Info("")
	return nil
}

func textCompletion(ctx context.Context, client Client, c *console.Console, opts Options) error {
	p := opts.Completion
	p.MaxTokens = 100

	text, err := client.TextComplete(ctx, "The benefits of artificial intelligence include", p)
	if err != nil {
		return err
	}
	c.Info("Completion: " + strings.TrimSpace(text))
	c.Info("")
	return nil
}

func embeddings(ctx context.Context, client Client, c *console.Console, opts Options) error {
	vector, err := client.Embed(ctx, "OpenAI provides powerful AI models for various applications.", opts.Embedding)
	if err != nil {
		return err
	}
	c.Info(fmt.Sprintf("Embedding dimension: %d", len(vector)))
	c.Info(fmt.Sprintf("First %d values: %v", embedPreview, vector[:min(embedPreview, len(vector))]))
	c.Info("")
	return nil
}

func imageGeneration(ctx context.Context, client Client, c *console.Console, opts Options) error {
	img := opts.Image
	if img.N == 0 {
		img.N = 1
	}
	refs, err := client.GenerateImage(ctx,
		"A serene mountain landscape with a crystal clear lake reflecting the snow-capped peaks", img)
	if err != nil {
		return err
	}
	c.Info("Generated image URL: " + refs[0].URL)
	c.Info("")
	return nil
}

func multiTurn(ctx context.Context, client Client, c *console.Console, opts Options) error {
	t := session.NewTranscript("You are a knowledgeable tutor.")
	t.Append(session.Turn{Role: session.RoleUser, Content: "Can you explain what machine learning is?"})

	first, err := client.ChatComplete(ctx, t.Turns(), opts.Chat)
	if err != nil {
		return err
	}
	c.Info("Assistant: " + first.Content)

	t.Append(first)
	t.Append(session.Turn{Role: session.RoleUser, Content: "Can you give me a simple example?"})

	second, err := client.ChatComplete(ctx, t.Turns(), opts.Chat)
	if err != nil {
		return err
	}
	c.Info("Assistant: " + second.Content)
	c.Info("")
	return nil
}
