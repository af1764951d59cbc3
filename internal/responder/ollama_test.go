package responder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"lifeshield/internal/platform/config"
	"lifeshield/internal/platform/logger"
	"lifeshield/internal/session"
)

type OllamaSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *OllamaSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestOllamaSuite(t *testing.T) {
	suite.Run(t, new(OllamaSuite))
}

func (s *OllamaSuite) newClient(baseURL string, retries int) *Ollama {
	return NewOllama(config.OllamaConfig{
		BaseURL:    baseURL,
		Model:      "test-model",
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	}, logger.New("error"))
}

func (s *OllamaSuite) TestChatReply() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/api/chat", r.URL.Path)

		var req chatRequest
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&req))
		s.Equal("test-model", req.Model)
		s.False(req.Stream)
		s.Require().Len(req.Messages, 2)
		s.Equal("system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "Hello! Let's get started."},
		})
	}))
	defer srv.Close()

	reply, err := s.newClient(srv.URL, 0).Reply(s.ctx, session.StageOnboarding, session.ApplicantProfile{}, "greet")
	s.Require().NoError(err)
	s.Equal("Hello! Let's get started.", reply)
}

func (s *OllamaSuite) TestGenerateFallbackOn404() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			w.WriteHeader(http.StatusNotFound)
		case "/api/generate":
			json.NewEncoder(w).Encode(generateResponse{Response: "Welcome aboard."})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	reply, err := s.newClient(srv.URL, 0).Reply(s.ctx, session.StageOnboarding, session.ApplicantProfile{}, "")
	s.Require().NoError(err)
	s.Equal("Welcome aboard.", reply)
}

func (s *OllamaSuite) TestRetriesThenFails() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := s.newClient(srv.URL, 2).Reply(s.ctx, session.StageQuoteGeneration, session.ApplicantProfile{}, "")
	s.Require().Error(err)
	s.EqualValues(3, calls.Load())
}

func (s *OllamaSuite) TestCircuitOpensAfterRepeatedFailures() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := s.newClient(srv.URL, 0)
	for range 5 {
		_, err := client.Reply(s.ctx, session.StageOnboarding, session.ApplicantProfile{}, "")
		s.Require().Error(err)
	}
	served := calls.Load()

	// Circuit is open and the probe window has not elapsed, so the server
	// is not contacted again.
	_, err := client.Reply(s.ctx, session.StageOnboarding, session.ApplicantProfile{}, "")
	s.Require().Error(err)
	s.Contains(err.Error(), "circuit open")
	s.Equal(served, calls.Load())
}

func (s *OllamaSuite) TestStaticAlwaysAnswers() {
	static := NewStatic()
	for _, stage := range []session.Stage{
		session.StageOnboarding, session.StageQuoteGeneration, session.StageDeclined,
	} {
		reply, err := static.Reply(s.ctx, stage, session.ApplicantProfile{}, "")
		s.Require().NoError(err)
		s.NotEmpty(reply)
	}
}
