package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/trailblazer/backend/internal/config"
	"github.com/zhouzirui/trailblazer/backend/internal/model/chat"
)

// Observer receives the outcome of every completion call.
type Observer interface {
	ObserveCompletion(status string, elapsed time.Duration)
}

// Options tunes a Service built around an existing chat model.
type Options struct {
	// Timeout bounds a single completion call. Zero relies on the caller's
	// context alone.
	Timeout  time.Duration
	Observer Observer
}

// Service is the completion client: one backend call per request, no retries.
type Service struct {
	chain    compose.Runnable[map[string]any, *schema.Message]
	timeout  time.Duration
	observer Observer
}

// NewService creates a completion client from configuration.
func NewService(ctx context.Context, cfg config.LLMConfig, observer Observer) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, Options{Timeout: cfg.Timeout, Observer: observer})
}

// NewServiceWithModel wires the prompt template and chatModel into a chain.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, opts Options) (*Service, error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(newPromptTemplate())
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chain:    runnable,
		timeout:  opts.Timeout,
		observer: opts.Observer,
	}, nil
}

// Complete sends systemPrompt followed by history and returns the trimmed reply.
func (s *Service) Complete(ctx context.Context, systemPrompt string, history []chat.Message) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	response, err := s.chain.Invoke(ctx, buildChainInput(systemPrompt, history))
	if err != nil {
		return "", s.fail("complete", start, err)
	}

	text, err := replyText(response)
	if err != nil {
		return "", s.fail("complete", start, err)
	}

	s.observe("ok", start)
	log.Printf("[ai] completion ok, history=%d, length=%d", len(history), len(text))
	return text, nil
}

// Stream behaves like Complete but hands every content delta to onDelta as it
// arrives. An error from onDelta aborts the stream and is returned unwrapped.
func (s *Service) Stream(ctx context.Context, systemPrompt string, history []chat.Message, onDelta func(string) error) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	stream, err := s.chain.Stream(ctx, buildChainInput(systemPrompt, history))
	if err != nil {
		return "", s.fail("stream", start, err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 16)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", s.fail("stream", start, recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				s.observe("aborted", start)
				return "", err
			}
		}
	}

	if len(chunks) == 0 {
		return "", s.fail("stream", start, errEmptyReply)
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", s.fail("stream", start, err)
	}

	text, err := replyText(response)
	if err != nil {
		return "", s.fail("stream", start, err)
	}

	s.observe("ok", start)
	log.Printf("[ai] stream ok, history=%d, chunks=%d, length=%d", len(history), len(chunks), len(text))
	return text, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) fail(op string, start time.Time, err error) error {
	s.observe("error", start)
	log.Printf("[ai] %s failed after %s: %v", op, time.Since(start).Round(time.Millisecond), err)
	return &BackendError{Op: op, Err: err}
}

func (s *Service) observe(status string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveCompletion(status, time.Since(start))
	}
}

func replyText(msg *schema.Message) (string, error) {
	if msg == nil {
		return "", errEmptyReply
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return "", errEmptyReply
	}
	return text, nil
}
