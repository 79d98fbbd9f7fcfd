// Package api exposes the classifier over HTTP.
package api

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/spacesedan/emotiflow/internal/classifier"
	"github.com/spacesedan/emotiflow/internal/models"
)

const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderRequestID = "X-Request-ID"
)

// Classifier is the part of classifier.Classifier the HTTP layer needs.
type Classifier interface {
	ClassifyOne(ctx context.Context, sentence, credential string) (models.ClassificationResult, error)
	ClassifyMany(ctx context.Context, sentences []string, credential string) ([]models.ClassificationResult, error)
	ClassifyStream(ctx context.Context, sentence, credential string, stopEarly bool, onToken func(token string) error) (models.ClassificationResult, error)
}

type Server struct {
	app               *fiber.App
	classifier        Classifier
	validate          *validator.Validate
	defaultCredential string
	breaker           *gobreaker.CircuitBreaker
}

type Options struct {
	// DefaultCredential is used when a request carries no X-Api-Key header.
	DefaultCredential string
	// Breaker, when set, is reported by /health.
	Breaker *gobreaker.CircuitBreaker
	// AllowOrigins is the CORS origin list, "*" when empty.
	AllowOrigins string
}

func NewServer(c Classifier, opts Options) *Server {
	s := &Server{
		classifier:        c,
		validate:          validator.New(),
		defaultCredential: opts.DefaultCredential,
		breaker:           opts.Breaker,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "emotiflow",
		DisableStartupMessage: true,
	})
	allowOrigins := opts.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		ExposeHeaders: HeaderRequestID,
	}))
	s.app.Use(requestID)
	s.app.Get("/health", s.health)
	s.app.Post("/classify", s.classify)
	s.app.Post("/classify/batch", s.classifyBatch)
	s.app.Post("/classify/stream", s.classifyStream)

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	slog.Info("[API] Listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// WarmUp sends one throwaway classification so the first real request does not
// pay for model loading. Failures are logged and otherwise ignored.
func (s *Server) WarmUp(ctx context.Context) {
	if s.defaultCredential == "" {
		slog.Info("[API] Skipping warm-up, no default credential configured")
		return
	}

	start := time.Now()
	if _, err := s.classifier.ClassifyOne(ctx, "warmup", s.defaultCredential); err != nil {
		slog.Warn("[API] Warm-up failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return
	}
	slog.Info("[API] Warm-up complete", slog.Duration("elapsed", time.Since(start)))
}

func requestID(c *fiber.Ctx) error {
	id := c.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals("request_id", id)
	c.Set(HeaderRequestID, id)
	return c.Next()
}

func (s *Server) health(c *fiber.Ctx) error {
	resp := models.HealthResponse{Status: "ok"}
	if s.breaker != nil {
		resp.Breaker = s.breaker.State().String()
		if s.breaker.State() == gobreaker.StateOpen {
			resp.Status = "degraded"
		}
	}
	return c.JSON(resp)
}

func (s *Server) classify(c *fiber.Ctx) error {
	var req models.ClassifyRequest
	if err := s.bind(c, &req); err != nil {
		return s.fail(c, err)
	}

	result, err := s.classifier.ClassifyOne(c.UserContext(), req.Sentence, s.credential(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(result)
}

func (s *Server) classifyBatch(c *fiber.Ctx) error {
	var req models.ClassifyBatchRequest
	if err := s.bind(c, &req); err != nil {
		return s.fail(c, err)
	}

	results, err := s.classifier.ClassifyMany(c.UserContext(), req.Sentences, s.credential(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(models.ClassifyBatchResponse{
		RequestID: requestIDFrom(c),
		Results:   results,
	})
}

// classifyStream answers with server-sent events: one unnamed event per token,
// then a "done" event with the label, or an "error" event if the model call
// fails after the stream has started.
func (s *Server) classifyStream(c *fiber.Ctx) error {
	var req models.ClassifyRequest
	if err := s.bind(c, &req); err != nil {
		return s.fail(c, err)
	}

	sentence := strings.TrimSpace(req.Sentence)
	credential := s.credential(c)
	switch {
	case sentence == "":
		return s.fail(c, fmt.Errorf("%w: sentence is empty", classifier.ErrInvalidInput))
	case strings.TrimSpace(credential) == "":
		return s.fail(c, fmt.Errorf("%w: credential is empty", classifier.ErrInvalidInput))
	}

	// the fiber.Ctx is recycled once the handler returns, so copy what the writer needs
	reqID := requestIDFrom(c)
	path := c.Path()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		result, err := s.classifier.ClassifyStream(ctx, sentence, credential, req.StopEarly, func(token string) error {
			if err := writeEvent(w, "", models.StreamTokenEvent{Token: token}); err != nil {
				return err
			}
			return w.Flush()
		})
		if err != nil {
			kind := classifier.Kind(err)
			slog.Warn("[API] Stream failed",
				slog.String("request_id", reqID),
				slog.String("path", path),
				slog.String("kind", kind),
				slog.String("error", err.Error()))
			_ = writeEvent(w, "error", models.ErrorResponse{Error: err.Error(), Kind: kind, RequestID: reqID})
			_ = w.Flush()
			return
		}

		_ = writeEvent(w, "done", models.StreamDoneEvent{
			Sentence:         result.Sentence,
			PredictedEmotion: result.PredictedEmotion,
			DoneReason:       result.FinishReason,
		})
		_ = w.Flush()
	})
	return nil
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (s *Server) bind(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", classifier.ErrInvalidInput, err)
	}
	if err := s.validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", classifier.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) credential(c *fiber.Ctx) string {
	if key := c.Get(HeaderAPIKey); key != "" {
		return key
	}
	return s.defaultCredential
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	kind := classifier.Kind(err)
	status := statusForKind(kind)

	slog.Warn("[API] Request failed",
		slog.String("request_id", requestIDFrom(c)),
		slog.String("path", c.Path()),
		slog.String("kind", kind),
		slog.String("error", err.Error()))

	return c.Status(status).JSON(models.ErrorResponse{
		Error:     err.Error(),
		Kind:      kind,
		RequestID: requestIDFrom(c),
	})
}

func statusForKind(kind string) int {
	switch kind {
	case classifier.KindInvalidInput:
		return fiber.StatusBadRequest
	case classifier.KindExtractionFailure:
		return fiber.StatusUnprocessableEntity
	case classifier.KindUpstreamFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func requestIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals("request_id").(string)
	return id
}
