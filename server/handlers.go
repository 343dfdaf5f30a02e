package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/monei-cc/voice-pipeline/collector"
	"github.com/monei-cc/voice-pipeline/llm"
	"github.com/monei-cc/voice-pipeline/tts"
)

type voiceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type chatResponse struct {
	UserText  string `json:"user_text"`
	AIText    string `json:"ai_text"`
	AudioURL  string `json:"audio_url"`
	SessionID string `json:"session_id"`
}

type textChatRequest struct {
	Text      string `json:"text"`
	Voice     string `json:"voice"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleVoices(c *fiber.Ctx) error {
	voices := make([]voiceInfo, 0, len(tts.Voices))
	for _, name := range tts.VoiceNames() {
		voices = append(voices, voiceInfo{Name: name, Description: tts.Voices[name]})
	}
	return c.JSON(fiber.Map{"voices": voices})
}

func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	inPath, cleanup, err := s.saveUpload(c)
	if err != nil {
		return badRequest(c, err)
	}
	defer cleanup()

	tr, err := s.pipe.TranscribeFile(c.UserContext(), inPath, c.Query("language"))
	if err != nil {
		slog.Error("transcription failed", "err", err)
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{"text": tr.Text, "language": tr.Language})
}

func (s *Server) handleChatVoice(c *fiber.Ctx) error {
	inPath, cleanup, err := s.saveUpload(c)
	if err != nil {
		return badRequest(c, err)
	}
	defer cleanup()

	voice := c.Query("voice", tts.DefaultVoice)
	sess, sessionID := s.session(c.Query("session_id"))
	id := newID()
	ctx := c.UserContext()

	slog.Info("stt started", "id", id)
	tr, err := s.pipe.TranscribeFile(ctx, inPath, "")
	if err != nil {
		slog.Error("voice chat failed", "id", id, "stage", "stt", "err", err)
		return apiError(c, err)
	}
	slog.Info("stt done", "id", id, "text", truncate(tr.Text, 80))

	return s.converse(c, ctx, id, sessionID, sess, tr.Text, voice)
}

func (s *Server) handleChatText(c *fiber.Ctx) error {
	var req textChatRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Errorf("invalid JSON: %w", err))
	}
	if req.Text == "" {
		return badRequest(c, errors.New("`text` field is required"))
	}
	if utf8.RuneCountInString(req.Text) > tts.MaxTextLen {
		return badRequest(c, tts.ErrTextTooLong)
	}
	voice := req.Voice
	if voice == "" {
		voice = tts.DefaultVoice
	}

	sess, sessionID := s.session(req.SessionID)
	return s.converse(c, c.UserContext(), newID(), sessionID, sess, req.Text, voice)
}

// converse runs the LLM and TTS stages shared by the voice and text chat
// endpoints.
func (s *Server) converse(c *fiber.Ctx, ctx context.Context, id, sessionID string, sess *llm.Session, userText, voice string) error {
	slog.Info("llm started", "id", id)
	reply, err := s.provider.Ask(ctx, userText, sess)
	if err != nil {
		slog.Error("chat failed", "id", id, "stage", "llm", "err", err)
		return apiError(c, err)
	}
	slog.Info("llm done", "id", id, "reply", truncate(reply, 80))

	filename := id + "_response.mp3"
	slog.Info("tts started", "id", id, "voice", voice)
	if _, err := s.pipe.Speak(ctx, reply, voice, "mp3", filename); err != nil {
		slog.Error("chat failed", "id", id, "stage", "tts", "err", err)
		return apiError(c, err)
	}
	slog.Info("tts done", "id", id)

	return c.JSON(chatResponse{
		UserText:  userText,
		AIText:    reply,
		AudioURL:  "/api/audio/" + filename,
		SessionID: sessionID,
	})
}

func (s *Server) handleAudio(c *fiber.Ctx) error {
	name := safeBase(c.Params("filename"))
	path := filepath.Join(s.pipe.TTSDir(), name)
	if _, err := os.Stat(path); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "audio not found"})
	}
	s.pipe.Sweep(audioTTL)
	c.Type("mp3")
	return c.SendFile(path)
}

type streamRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

type streamFrame struct {
	Event string `json:"event"` // "token", "complete", "error"
	Data  string `json:"data"`
}

// handleChatStream relays incremental reply tokens over a websocket. Each
// inbound message is one user turn; the reply is streamed as token frames
// and finished with a complete frame.
func (s *Server) handleChatStream(ws *websocket.Conn) {
	defer ws.Close()
	for {
		var req streamRequest
		if err := ws.ReadJSON(&req); err != nil {
			return
		}
		if req.Text == "" {
			_ = ws.WriteJSON(streamFrame{Event: "error", Data: "`text` field is required"})
			continue
		}
		sess, _ := s.session(req.SessionID)

		var reply string
		var err error
		if streamer, ok := s.provider.(llm.Streamer); ok {
			reply, err = streamer.AskStream(context.Background(), req.Text, sess, func(token string) {
				_ = ws.WriteJSON(streamFrame{Event: "token", Data: token})
			})
		} else {
			reply, err = s.provider.Ask(context.Background(), req.Text, sess)
		}
		if err != nil {
			_ = ws.WriteJSON(streamFrame{Event: "error", Data: err.Error()})
			continue
		}
		if err := ws.WriteJSON(streamFrame{Event: "complete", Data: reply}); err != nil {
			return
		}
	}
}

// saveUpload stores the uploaded audio file in the temp dir and returns a
// cleanup that removes it and any converted sibling.
func (s *Server) saveUpload(c *fiber.Ctx) (string, func(), error) {
	fh, err := c.FormFile("audio")
	if err != nil {
		return "", nil, errors.New("`audio` file is required")
	}
	ext := filepath.Ext(fh.Filename)
	if ext == "" {
		ext = ".webm"
	}
	path := filepath.Join(os.TempDir(), newID()+ext)
	if err := c.SaveFile(fh, path); err != nil {
		return "", nil, fmt.Errorf("save upload: %w", err)
	}
	cleanup := func() {
		_ = os.Remove(path)
		_ = os.Remove(strings.TrimSuffix(path, ext) + "_converted.wav")
	}
	return path, cleanup, nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// apiError maps error kinds to HTTP statuses: validation failures are the
// caller's fault, missing files are 404, everything else is a 500 with the
// provider's diagnostic text.
func apiError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, tts.ErrTextTooLong),
		errors.Is(err, tts.ErrUnknownVoice),
		errors.Is(err, tts.ErrInvalidFormat),
		errors.Is(err, collector.ErrUnsupportedFormat):
		return badRequest(c, err)
	case errors.Is(err, fs.ErrNotExist):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
