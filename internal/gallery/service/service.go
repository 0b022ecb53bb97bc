// Package service stores generated images under the public directory so the
// front end can load them by URL after the upstream's short-lived link
// expires.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"cardmill/internal/audit"
	"cardmill/internal/platform/middleware"
	dErrors "cardmill/pkg/domain-errors"
)

// MaxImageBytes bounds uploads; a 1024x1024 PNG stays under 3 MiB.
const MaxImageBytes = 3 << 20

type Service struct {
	publicDir  string
	auditStore audit.Store
	logger     *slog.Logger
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

func New(publicDir string, opts ...Option) *Service {
	s := &Service{
		publicDir: publicDir,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes img to <publicDir>/generated/<uuid>.png and returns the
// relative URL of the stored image. Random names cannot collide, so a save
// never overwrites an earlier image.
func (s *Service) Save(ctx context.Context, img []byte) (string, error) {
	if len(img) == 0 {
		return "", dErrors.New(dErrors.CodeBadRequest, "image is empty")
	}
	if len(img) > MaxImageBytes {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "image exceeds %d bytes", MaxImageBytes)
	}

	dir := filepath.Join(s.publicDir, "generated")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "create image directory")
	}

	name := uuid.New().String() + ".png"
	if err := os.WriteFile(filepath.Join(dir, name), img, 0o644); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "write image")
	}

	url := fmt.Sprintf("generated/%s", name)
	audit.Log(ctx, s.auditStore, s.logger, audit.Event{
		Action:    audit.ActionImagePersisted,
		Subject:   url,
		RequestID: middleware.GetRequestID(ctx),
	})
	s.logger.InfoContext(ctx, "image persisted",
		"url", url,
		"bytes", len(img),
	)
	return url, nil
}
