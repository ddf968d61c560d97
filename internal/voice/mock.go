package voice

import "context"

// MockSynthesizer returns a fixed payload so the chat path can exercise audio
// handling without a speech service.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (s *MockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte("ID3mock-audio"), nil
}

// MockTranscriber echoes a fixed transcript.
type MockTranscriber struct{}

func NewMockTranscriber() *MockTranscriber { return &MockTranscriber{} }

func (t *MockTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", nil
	}
	return "hello moira", nil
}
