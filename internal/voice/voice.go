// Package voice is the boundary to speech services: text-to-speech synthesis
// and audio transcription. Providers are swappable and the chat path treats
// synthesis failure as non-fatal.
package voice

import (
	"context"
	"fmt"
	"strings"
)

// Synthesizer renders spoken audio (MP3) for a reply.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// SynthesizerConfig controls synthesizer construction.
type SynthesizerConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	VoiceID  string
	ModelID  string
}

func NewSynthesizer(cfg SynthesizerConfig) (Synthesizer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "auto"
	}

	switch provider {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return NewMockSynthesizer(), nil
		}
		return NewElevenLabsSynthesizer(cfg.BaseURL, cfg.APIKey, cfg.VoiceID, cfg.ModelID), nil
	case "elevenlabs":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("elevenlabs API key is required")
		}
		return NewElevenLabsSynthesizer(cfg.BaseURL, cfg.APIKey, cfg.VoiceID, cfg.ModelID), nil
	case "mock":
		return NewMockSynthesizer(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported voice provider %q", cfg.Provider)
	}
}

// TranscriberConfig controls transcriber construction.
type TranscriberConfig struct {
	Mode   string
	APIURL string
	APIKey string
	Model  string
}

func NewTranscriber(cfg TranscriberConfig) (Transcriber, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return NewMockTranscriber(), nil
		}
		return NewWhisperTranscriber(cfg.APIURL, cfg.APIKey, cfg.Model), nil
	case "whisper":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("whisper API key is required")
		}
		return NewWhisperTranscriber(cfg.APIURL, cfg.APIKey, cfg.Model), nil
	case "mock":
		return NewMockTranscriber(), nil
	default:
		return nil, fmt.Errorf("unsupported transcriber mode %q", cfg.Mode)
	}
}
