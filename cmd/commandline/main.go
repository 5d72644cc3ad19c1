package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethanbaker/voicechat/pkg/sdk"
	"github.com/ethanbaker/voicechat/pkg/utils"
	"github.com/gabriel-vasile/mimetype"
)

// session is the conversation state of the command line client
type session struct {
	client   *sdk.Client
	id       string
	replyDir string
	turns    int
}

func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	baseURL := cfg.GetWithDefault("BACKEND_BASE_URL", "http://localhost:8080")
	apiKey := cfg.Get("BACKEND_API_KEY")
	if apiKey == "" {
		log.Fatal("[COMMANDLINE]: BACKEND_API_KEY not set in config or environment")
	}

	replyDir := cfg.GetWithDefault("REPLY_DIR", ".")
	if err := os.MkdirAll(replyDir, 0o755); err != nil {
		log.Fatalf("[COMMANDLINE]: Failed to create reply directory: %v", err)
	}

	s := &session{
		client:   sdk.NewClient(baseURL, apiKey),
		replyDir: replyDir,
	}

	// Start interactive session
	if err := s.run(context.Background()); err != nil {
		log.Fatalf("[COMMANDLINE]: %v", err)
	}
}

// run reads commands until exit
func (s *session) run(ctx context.Context) error {
	fmt.Println("Voice chat command line. Enter the path of an audio file to send it.")
	fmt.Println("Commands: /new, /history [n], exit")

	// Create scanner for reading user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())

		switch {
		case input == "exit":
			return nil
		case input == "":
			continue
		case input == "/new":
			s.id = ""
			fmt.Println("The next turn starts a new session.")
		case strings.HasPrefix(input, "/history"):
			limit := 0
			fmt.Sscanf(strings.TrimPrefix(input, "/history"), "%d", &limit)
			if err := s.history(ctx, limit); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		default:
			if err := s.send(ctx, input); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	return nil
}

// send uploads one audio file as a turn and saves the spoken reply
func (s *session) send(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Declare what the file actually contains rather than trusting its extension
	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := s.client.SendTurn(ctx, s.id, filepath.Base(path), detected.String(), f)
	if err != nil {
		var apiErr *sdk.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			return fmt.Errorf("%w (retry in %s)", err, apiErr.RetryAfter)
		}
		return err
	}

	if s.id != resp.SessionID {
		fmt.Printf("Session: %s\n", resp.SessionID)
	}
	s.id = resp.SessionID
	s.turns++

	out := filepath.Join(s.replyDir, fmt.Sprintf("reply-%03d%s", s.turns, replyExtension(resp.ContentType)))
	if err := os.WriteFile(out, resp.Audio, 0o644); err != nil {
		return fmt.Errorf("failed to save reply: %w", err)
	}

	fmt.Printf("You said: %s\n", resp.Transcript)
	fmt.Printf("Reply saved to %s (%d bytes)\n", out, len(resp.Audio))
	if !resp.Persisted {
		fmt.Printf("Warning: this turn was not saved (%s)\n", resp.TurnError)
	}

	return nil
}

// history prints the newest messages of the current session
func (s *session) history(ctx context.Context, limit int) error {
	if s.id == "" {
		fmt.Println("No session yet.")
		return nil
	}

	list, err := s.client.ListMessages(ctx, s.id, limit)
	if err != nil {
		return err
	}

	for _, m := range list.Messages {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format(time.Kitchen), m.Role, m.Content)
	}
	return nil
}

// replyExtension maps the reply media type onto a file extension
func replyExtension(contentType string) string {
	switch contentType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".mp3"
	}
}
