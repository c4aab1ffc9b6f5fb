// Package chat is a placeholder chat backend that answers every message with
// a canned reply after a short fixed delay.
package chat

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/models"
)

const DefaultDelay = 500 * time.Millisecond

var responses = []string{
	"That's interesting! Can you tell me more?",
	"I understand. Is there anything specific you'd like to know?",
	"Thanks for sharing that with me.",
	"That's a great question! Let me think about that.",
	"I see what you mean. How can I help you with that?",
}

type Service struct {
	delay time.Duration
	pick  func(n int) int
	now   func() time.Time
}

func NewService(delay time.Duration) *Service {
	return &Service{delay: delay, pick: rand.IntN, now: time.Now}
}

// Responses returns the canned replies in order.
func (s *Service) Responses() []string {
	out := make([]string, len(responses))
	copy(out, responses)
	return out
}

// Reply waits out the configured delay and returns a random canned response.
// The delay runs to completion even if ctx is cancelled.
func (s *Service) Reply(_ context.Context, content string) (*models.ChatResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalidf("message content cannot be empty")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return &models.ChatResponse{
		Content:   responses[s.pick(len(responses))],
		Timestamp: s.now(),
	}, nil
}
