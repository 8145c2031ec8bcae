package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"OpenAIApp/internal/completion"
	"OpenAIApp/internal/console"
	"OpenAIApp/internal/ledger"
	"OpenAIApp/internal/session"
)

// ErrTerminated is returned when input arrives after the session ended
var ErrTerminated = errors.New("session terminated")

// State of the conversation loop
type State int

const (
	StateActive State = iota
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Completer produces the assistant reply for a transcript
type Completer interface {
	ChatComplete(ctx context.Context, turns []session.Turn, p completion.Params) (session.Turn, error)
}

// UsageReporter summarizes the remote calls of a session
type UsageReporter interface {
	Summary(ctx context.Context, sessionID string) (ledger.Summary, error)
}

// Options configures a ChatBot
type Options struct {
	// SystemPrompt is the persona sent as the first turn. Empty means no system turn.
	SystemPrompt string

	// Params is used for every chat request
	Params completion.Params

	// DropUnansweredTurn commits the user turn only together with a successful
	// reply. By default a failed turn stays in the transcript without an answer.
	DropUnansweredTurn bool

	// Usage backs the "/usage" command; nil disables it
	Usage UsageReporter

	Session session.Session
	Logger  *slog.Logger
}

// ChatBot drives the interactive conversation
type ChatBot struct {
	client     Completer
	opts       Options
	session    session.Session
	transcript *session.Transcript
	state      State
	console    *console.Console
	logger     *slog.Logger
}

// NewChatBot creates an active chat bot writing to out
func NewChatBot(client Completer, out io.Writer, opts Options) *ChatBot {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sess := opts.Session
	if sess.ID == "" {
		sess = session.New(opts.Params.Model)
	}

	cb := &ChatBot{
		client:     client,
		opts:       opts,
		session:    sess,
		transcript: session.NewTranscript(opts.SystemPrompt),
		state:      StateActive,
		console:    console.New(out),
		logger:     logger.With("session_id", sess.ID),
	}
	cb.logger.Info("created new session", "model", opts.Params.Model)
	return cb
}

// State returns the current loop state
func (cb *ChatBot) State() State {
	return cb.state
}

// Transcript returns a copy of the current transcript
func (cb *ChatBot) Transcript() []session.Turn {
	return cb.transcript.Turns()
}

// Session returns the session identity
func (cb *ChatBot) Session() session.Session {
	return cb.session
}

// HandleLine processes one line of user input. Remote failures are reported
// to the console and do not end the session.
func (cb *ChatBot) HandleLine(ctx context.Context, line string) error {
	if cb.state == StateTerminated {
		return ErrTerminated
	}

	input := strings.TrimSpace(line)
	if input == "" {
		return nil
	}

	if cb.handleCommand(ctx, strings.ToLower(input)) {
		return nil
	}

	cb.sendMessage(ctx, input)
	return nil
}

// handleCommand reports whether input was a command
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) bool {
	switch cmd {
	case "quit", "exit", "q":
		cb.state = StateTerminated
		cb.logger.Info("session terminated", "turns", cb.transcript.Len())
		cb.console.Info("Goodbye! 👋")
		return true

	case "clear":
		cb.transcript.Reset()
		cb.logger.Info("conversation cleared")
		cb.console.Success("Conversation cleared! 🧹")
		cb.console.Info("")
		return true

	case "/help":
		cb.console.Info("Available commands:")
		cb.console.Info("  quit, exit, q  - Exit the chat")
		cb.console.Info("  clear          - Clear conversation history")
		if cb.opts.Usage != nil {
			cb.console.Info("  /usage         - Show token usage for this session")
		}
		cb.console.Info("  /help          - Show this help message")
		return true

	case "/usage":
		if cb.opts.Usage == nil {
			cb.console.Muted("Usage tracking is disabled (set ledger.path to enable it).")
			return true
		}
		s, err := cb.opts.Usage.Summary(ctx, cb.session.ID)
		if err != nil {
			cb.console.Error(err)
			cb.logger.Error("failed to summarize usage", "error", err)
			return true
		}
		cb.console.Info(fmt.Sprintf("Calls: %d (failed: %d), tokens: %d prompt + %d completion = %d",
			s.Calls, s.Failures, s.PromptTokens, s.CompletionTokens, s.TotalTokens()))
		return true
	}
	return false
}

// sendMessage dispatches the transcript plus the new user turn
func (cb *ChatBot) sendMessage(ctx context.Context, input string) {
	userTurn := session.Turn{Role: session.RoleUser, Content: input}

	var turns []session.Turn
	if cb.opts.DropUnansweredTurn {
		turns = append(cb.transcript.Turns(), userTurn)
	} else {
		cb.transcript.Append(userTurn)
		turns = cb.transcript.Turns()
	}

	reply, err := cb.client.ChatComplete(ctx, turns, cb.opts.Params)
	if err != nil {
		cb.console.Error(err)
		cb.logger.Error("failed to send message", "error", err, "turns", len(turns))
		return
	}

	if cb.opts.DropUnansweredTurn {
		cb.transcript.Append(userTurn)
	}
	cb.transcript.Append(session.Turn{Role: session.RoleAssistant, Content: reply.Content})
	cb.console.Reply(reply.Content)
}

// Run reads lines from in until a quit command, end of input or context
// cancellation. Cancellation also interrupts a pending read.
func (cb *ChatBot) Run(ctx context.Context, in io.Reader) error {
	cb.console.Banner("🤖 Interactive Chat with OpenAI",
		"Type 'quit' to exit, 'clear' to clear conversation history, '/help' for commands")

	// stops the reader on every return path
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines, readErr := readLines(ctx, in)
	for cb.state == StateActive {
		if err := ctx.Err(); err != nil {
			return err
		}

		cb.console.Prompt()
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			cb.console.Info("")
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			cb.console.Info("")
			cb.state = StateTerminated
			cb.logger.Info("input closed, session terminated")
			cb.console.Info("Goodbye! 👋")
			return <-readErr
		}

		if err := cb.HandleLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// readLines feeds scanned lines to the returned channel, which is closed at
// end of input. The scanner error is delivered after the close.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}
