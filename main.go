package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/monei-cc/voice-pipeline/config"
	"github.com/monei-cc/voice-pipeline/llm"
	"github.com/monei-cc/voice-pipeline/pipeline"
	"github.com/monei-cc/voice-pipeline/server"
	"github.com/monei-cc/voice-pipeline/stt"
	"github.com/monei-cc/voice-pipeline/tts"
)

func main() {
	// Load .env if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to environment variables")
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	transcriber, err := stt.NewWhisper(cfg.WhisperModel, os.Getenv("WHISPER_MODEL_DIR"))
	if err != nil {
		log.Fatal(err)
	}

	provider, err := llm.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("using llm provider", "provider", cfg.LLMProvider)

	synth := tts.NewClient(cfg.YarnGPTAPIKey, "")

	pipe, err := pipeline.New(cfg.OutputDir, transcriber, synth)
	if err != nil {
		log.Fatal(err)
	}

	srv := server.New(pipe, provider)
	slog.Info("voice pipeline started", "addr", cfg.Addr, "model", cfg.WhisperModel)
	log.Fatal(srv.Listen(cfg.Addr))
}
