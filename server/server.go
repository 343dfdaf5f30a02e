// Package server exposes the pipeline over HTTP: audio upload endpoints
// for transcription and voice chat, a websocket for streamed replies, and
// a retention-bounded audio file surface.
package server

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/monei-cc/voice-pipeline/llm"
	"github.com/monei-cc/voice-pipeline/pipeline"
)

// audioTTL bounds how long synthesized audio stays servable. Files older
// than this are purged the next time the sweep runs.
const audioTTL = 5 * time.Minute

// Server wires the pipeline and conversation provider into fiber routes.
type Server struct {
	app      *fiber.App
	pipe     *pipeline.Pipeline
	provider llm.Provider

	mu       sync.Mutex
	sessions map[string]*llm.Session
}

// New builds the server and registers all routes.
func New(pipe *pipeline.Pipeline, provider llm.Provider) *Server {
	s := &Server{
		app:      fiber.New(),
		pipe:     pipe,
		provider: provider,
		sessions: make(map[string]*llm.Session),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(cors.New())

	s.app.Get("/api/voices", s.handleVoices)
	s.app.Post("/api/transcribe", s.handleTranscribe)
	s.app.Post("/api/chat", s.handleChatVoice)
	s.app.Post("/api/chat/text", s.handleChatText)
	s.app.Get("/api/audio/:filename", s.handleAudio)

	s.app.Use("/api/chat/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/api/chat/stream", websocket.New(s.handleChatStream))
}

// App returns the underlying fiber app (used by tests to attach a
// listener).
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until the process exits.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// session returns the session for id, creating one (and an id) as needed.
func (s *Server) session(id string) (*llm.Session, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = newID()
	}
	sess, ok := s.sessions[id]
	if !ok {
		sess = llm.NewSession()
		s.sessions[id] = sess
	}
	return sess, id
}

// newID returns a short hex request/session identifier.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func safeBase(name string) string {
	return filepath.Base(filepath.Clean(name))
}
