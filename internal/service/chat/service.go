package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zhouzirui/trailblazer/backend/internal/model/chat"
	"github.com/zhouzirui/trailblazer/backend/internal/model/persona"
	"github.com/zhouzirui/trailblazer/backend/internal/service/ai"
	"github.com/zhouzirui/trailblazer/backend/internal/service/session"
)

var ErrEmptyMessage = errors.New("empty message")

// Completer is the completion client contract.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []chat.Message) (string, error)
	Stream(ctx context.Context, systemPrompt string, history []chat.Message, onDelta func(string) error) (string, error)
}

// Recorder receives conversation events for instrumentation.
type Recorder interface {
	SessionCreated()
	ChatTurn(persona string)
	PersonaSwitched(persona string)
}

type noopRecorder struct{}

func (noopRecorder) SessionCreated()        {}
func (noopRecorder) ChatTurn(string)        {}
func (noopRecorder) PersonaSwitched(string) {}

// Service runs the start and chat exchanges on top of the session store.
type Service struct {
	store    *session.Store
	personas persona.Store
	llm      Completer
	recorder Recorder
}

// NewService wires the conversation flow. recorder may be nil.
func NewService(store *session.Store, personas persona.Store, llm Completer, recorder Recorder) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		store:    store,
		personas: personas,
		llm:      llm,
		recorder: recorder,
	}
}

// StartResult is the outcome of opening a session.
type StartResult struct {
	SessionID string
	Persona   persona.Persona
	Message   string
}

// ChatRequest carries one user message and an optional persona switch.
type ChatRequest struct {
	SessionID  string
	Message    string
	PersonaKey string
}

// ChatResult is the assistant's reply. Note is set after a persona switch.
type ChatResult struct {
	Persona persona.Persona
	Message string
	Note    string
}

// Start creates a session and asks the persona for a short greeting. The
// greeting exchange is not stored in the session history. If the greeting
// fails the session is discarded.
func (s *Service) Start(ctx context.Context, personaKey string) (StartResult, error) {
	sess, err := s.store.Create(ctx, personaKey)
	if err != nil {
		return StartResult{}, err
	}

	p, err := s.personas.Get(sess.PersonaKey)
	if err != nil {
		s.store.Delete(ctx, sess.ID)
		return StartResult{}, err
	}

	greeting, err := s.llm.Complete(ctx, p.SystemPrompt, []chat.Message{chat.UserMessage(ai.GreetingPrompt)})
	if err != nil {
		s.store.Delete(ctx, sess.ID)
		return StartResult{}, err
	}

	s.recorder.SessionCreated()
	log.Printf("[chat] session started id=%s persona=%s", sess.ID, p.Key)
	return StartResult{SessionID: sess.ID, Persona: p, Message: greeting}, nil
}

// Chat appends the user message, asks the active persona for a reply and
// stores it. On a backend failure the user turn stays in the history.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	return s.exchange(ctx, req, func(ctx context.Context, system string, history []chat.Message) (string, error) {
		return s.llm.Complete(ctx, system, history)
	})
}

// StreamChat is Chat with incremental delivery of the reply.
func (s *Service) StreamChat(ctx context.Context, req ChatRequest, onDelta func(string) error) (ChatResult, error) {
	return s.exchange(ctx, req, func(ctx context.Context, system string, history []chat.Message) (string, error) {
		return s.llm.Stream(ctx, system, history, onDelta)
	})
}

// History returns the session and its active persona.
func (s *Service) History(ctx context.Context, sessionID string) (chat.Session, persona.Persona, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return chat.Session{}, persona.Persona{}, err
	}
	p, err := s.personas.Get(sess.PersonaKey)
	if err != nil {
		return chat.Session{}, persona.Persona{}, err
	}
	return sess, p, nil
}

type completeFunc func(ctx context.Context, system string, history []chat.Message) (string, error)

func (s *Service) exchange(ctx context.Context, req ChatRequest, complete completeFunc) (ChatResult, error) {
	if _, err := s.store.Get(ctx, req.SessionID); err != nil {
		return ChatResult{}, err
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return ChatResult{}, ErrEmptyMessage
	}

	var target *persona.Persona
	if req.PersonaKey != "" {
		p, err := s.personas.Get(req.PersonaKey)
		if err != nil {
			return ChatResult{}, err
		}
		target = &p
	}

	release, err := s.store.Acquire(ctx, req.SessionID)
	if err != nil {
		return ChatResult{}, err
	}
	defer release()

	var note string
	if target != nil {
		if err := s.store.SetPersona(ctx, req.SessionID, target.Key); err != nil {
			return ChatResult{}, err
		}
		note = fmt.Sprintf("Switched to %s.", target.Display)
		s.recorder.PersonaSwitched(target.Key)
	}

	if err := s.store.AppendTurn(ctx, req.SessionID, chat.RoleUser, message); err != nil {
		return ChatResult{}, err
	}

	sess, err := s.store.Get(ctx, req.SessionID)
	if err != nil {
		return ChatResult{}, err
	}
	active, err := s.personas.Get(sess.PersonaKey)
	if err != nil {
		return ChatResult{}, err
	}

	reply, err := complete(ctx, active.SystemPrompt, sess.History)
	if err != nil {
		log.Printf("[chat] completion failed session=%s persona=%s: %v", sess.ID, active.Key, err)
		return ChatResult{}, err
	}

	if err := s.store.AppendTurn(ctx, req.SessionID, chat.RoleAssistant, reply); err != nil {
		return ChatResult{}, err
	}

	s.recorder.ChatTurn(active.Key)
	return ChatResult{Persona: active, Message: reply, Note: note}, nil
}
