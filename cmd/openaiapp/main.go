// OpenAIApp
//
// A small command-line client for the OpenAI API: a guided tour of chat,
// completion, image and embedding calls, plus an interactive chat.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"OpenAIApp/internal/chatbot"
	"OpenAIApp/internal/demo"
)

var version = "dev"

// errReported marks failures already shown to the user
var errReported = errors.New("error already reported")

var (
	interactive bool
	withImage   bool
	configPath  string
	debug       bool
)

var rootCmd = &cobra.Command{
	Use:   "openaiapp",
	Short: "OpenAIApp - OpenAI API examples and interactive chat",
	Long: `OpenAIApp demonstrates the OpenAI API from the command line.

  openaiapp                   Run the examples (chat, completion, embeddings)
  openaiapp --with-image      Also generate an image
  openaiapp -i                Start an interactive chat

The API key is read from OPENAI_API_KEY, a .env file or openaiapp.yaml.`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if interactive {
			return runInteractive(ctx)
		}
		return runDemo(ctx)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&interactive, "interactive", "i", false, "Start an interactive chat session")
	flags.BoolVar(&interactive, "chat", false, "Alias for --interactive")
	_ = flags.MarkHidden("chat")
	flags.BoolVar(&withImage, "with-image", false, "Include the image generation example (billed per image)")
	flags.StringVar(&configPath, "config", "", "Path to a config file (default ./openaiapp.yaml)")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func runDemo(ctx context.Context) error {
	a, err := newApp(ctx, configPath, debug)
	if err != nil {
		demo.Fail(os.Stdout, err)
		return errReported
	}
	defer a.Close()

	opts := demo.Options{
		Chat:       a.chatParams(),
		Completion: a.completionParams(),
		Embedding:  a.cfg.Embedding.Model,
		Image:      a.imageOptions(),
		WithImage:  withImage,
		SessionID:  a.session.ID,
	}
	if a.ledger != nil {
		opts.Usage = a.ledger
	}

	if err := demo.Run(ctx, a.client, os.Stdout, opts); err != nil {
		a.logger.Error("demo failed", "error", err)
		demo.Fail(os.Stdout, err)
		return errReported
	}
	return nil
}

func runInteractive(ctx context.Context) error {
	a, err := newApp(ctx, configPath, debug)
	if err != nil {
		return fmt.Errorf("failed to initialize chat: %w", err)
	}
	defer a.Close()

	opts := chatbot.Options{
		SystemPrompt: a.cfg.Chat.SystemPrompt,
		Params:       a.chatParams(),
		Session:      a.session,
		Logger:       a.logger,
	}
	if a.ledger != nil {
		opts.Usage = a.ledger
	}

	bot := chatbot.NewChatBot(a.client, os.Stdout, opts)
	if err := bot.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
