// Package service orchestrates postcard generation: quota gating, prompt
// assembly and the upstream image API call.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cardmill/internal/audit"
	"cardmill/internal/generation/openai"
	"cardmill/internal/platform/middleware"
	"cardmill/internal/quota/models"
	dErrors "cardmill/pkg/domain-errors"
)

// ImageGenerator produces PNG bytes for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// QuotaGate arbitrates whether one more upstream call may be made.
type QuotaGate interface {
	TryConsume(ctx context.Context, now time.Time) (models.Decision, error)
}

type Service struct {
	gate      QuotaGate
	generator ImageGenerator
	template  string

	auditStore audit.Store
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditStore(store audit.Store) Option {
	return func(s *Service) {
		s.auditStore = store
	}
}

// WithClock overrides the time source. Tests pin it to campaign dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(gate QuotaGate, generator ImageGenerator, template string, opts ...Option) *Service {
	s := &Service{
		gate:      gate,
		generator: generator,
		template:  template,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces one postcard image. The quota unit is consumed before the
// upstream call and is not refunded if that call fails; refunding would let a
// flapping upstream burn through retries past the paid ceiling.
func (s *Service) Generate(ctx context.Context, description, customText string) ([]byte, error) {
	decision, err := s.gate.TryConsume(ctx, s.now())
	if !decision.Allowed {
		audit.Log(ctx, s.auditStore, s.logger, audit.Event{
			Action:    audit.ActionGenerationDenied,
			Subject:   decision.Date.String(),
			Reason:    string(decision.Reason),
			RequestID: middleware.GetRequestID(ctx),
		})
		if decision.Reason == models.ReasonStorageUnavailable {
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "quota check")
			}
			return nil, dErrors.New(dErrors.CodeStorageUnavailable, "quota check")
		}
		return nil, dErrors.New(dErrors.CodeQuotaExhausted,
			"image quota exhausted for today, try again tomorrow")
	}

	audit.Log(ctx, s.auditStore, s.logger, audit.Event{
		Action:    audit.ActionGenerationGranted,
		Subject:   decision.Date.String(),
		RequestID: middleware.GetRequestID(ctx),
	})

	prompt := fmt.Sprintf(s.template, description, customText)

	img, err := s.callUpstream(ctx, prompt)
	if err != nil {
		audit.Log(ctx, s.auditStore, s.logger, audit.Event{
			Action:    audit.ActionGenerationFailed,
			Subject:   decision.Date.String(),
			Reason:    err.Error(),
			RequestID: middleware.GetRequestID(ctx),
		})
		s.logger.ErrorContext(ctx, "upstream generation failed",
			"date", decision.Date.String(),
			"used", decision.Used,
			"error", err,
		)
		if errors.Is(err, openai.ErrInvalidPrompt) {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "upstream rejected prompt")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "generate image")
	}

	s.logger.InfoContext(ctx, "image generated",
		"date", decision.Date.String(),
		"used", decision.Used,
		"remaining", decision.Remaining,
		"bytes", len(img),
	)
	return img, nil
}

func (s *Service) callUpstream(ctx context.Context, prompt string) ([]byte, error) {
	tracer := otel.Tracer("cardmill.generation")
	ctx, span := tracer.Start(ctx, "openai.images.generate",
		trace.WithAttributes(
			attribute.Int("prompt.length", len(prompt)),
		),
	)
	defer span.End()

	img, err := s.generator.GenerateImage(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("image.bytes", len(img)))
	span.SetStatus(codes.Ok, "")
	return img, nil
}
