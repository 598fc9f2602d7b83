// Package faq asks an external HTTP question-answering service and falls
// back to canned topic answers when the collaborator is slow, absent or
// broken. A failure is never surfaced to the asking user.
package faq

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const fallbackAnswer = "FAQ Bot: I'm a smart assistant! Try asking about the project, general questions, or say hello!"

// fallbacks maps question substrings to canned answers, used when the
// collaborator gives no usable answer.
var fallbacks = []struct {
	keyword string
	answer  string
}{
	{"run", "FAQ Bot: To run this project: start the server, then connect with the client and /register an account."},
	{"difficulty", "FAQ Bot: Difficulty: Intermediate. Needs: sockets, concurrency, file I/O knowledge."},
	{"features", "FAQ Bot: Features: authentication, broadcast chat, private messages, file transfer, presence listing."},
	{"commands", "FAQ Bot: Available Commands: /login, /register, /msg, /users, /faq, put, get, exit"},
	{"joke", "FAQ Bot: Why do programmers prefer dark mode? Because light attracts bugs!"},
}

// Service is the timeout-bounded client for the Q&A collaborator. Answers
// are cached per question so a slow collaborator is consulted at most once
// per TTL window.
type Service struct {
	url    string
	client *http.Client
	cache  *gocache.Cache
	log    zerolog.Logger
}

func New(url string, timeout, cacheTTL time.Duration, log zerolog.Logger) *Service {
	return &Service{
		url:    url,
		client: &http.Client{Timeout: timeout},
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		log:    log,
	}
}

type question struct {
	Question string `json:"question"`
}

type answer struct {
	Answer string `json:"answer"`
}

// Ask returns an answer for the question, from cache, the collaborator, or
// the canned fallbacks, in that order. It never returns an error: a failed
// or timed-out collaborator call degrades to a fallback answer.
func (s *Service) Ask(q string) string {
	if cached, ok := s.cache.Get(q); ok {
		return cached.(string)
	}

	if ans, ok := s.ask(q); ok {
		s.cache.SetDefault(q, ans)
		return ans
	}

	return Fallback(q)
}

func (s *Service) ask(q string) (string, bool) {
	if s.url == "" {
		return "", false
	}

	body, err := json.Marshal(question{Question: q})
	if err != nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Msg("faq service unreachable, using fallback")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn().Int("status", resp.StatusCode).Msg("faq service error, using fallback")
		return "", false
	}

	var ans answer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		s.log.Warn().Err(err).Msg("faq service returned bad payload, using fallback")
		return "", false
	}
	if strings.TrimSpace(ans.Answer) == "" {
		return "", false
	}

	return ans.Answer, true
}

// Fallback picks a canned answer by substring match on the question text.
func Fallback(q string) string {
	lower := strings.ToLower(q)
	for _, fb := range fallbacks {
		if strings.Contains(lower, fb.keyword) {
			return fb.answer
		}
	}
	return fallbackAnswer
}
