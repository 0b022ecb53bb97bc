package service_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmill/internal/audit"
	auditmem "cardmill/internal/audit/store/memory"
	"cardmill/internal/gallery/service"
	dErrors "cardmill/pkg/domain-errors"
)

func TestSaveWritesImageAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	auditStore := auditmem.New()
	svc := service.New(dir, service.WithAuditStore(auditStore))

	url, err := svc.Save(context.Background(), []byte("png bytes"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "generated/"), "url %q", url)
	require.True(t, strings.HasSuffix(url, ".png"), "url %q", url)

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(url)))
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), stored)

	events, err := auditStore.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionImagePersisted, events[0].Action)
	assert.Equal(t, url, events[0].Subject)
}

func TestSaveGeneratesUniqueNames(t *testing.T) {
	svc := service.New(t.TempDir())

	first, err := svc.Save(context.Background(), []byte("one"))
	require.NoError(t, err)
	second, err := svc.Save(context.Background(), []byte("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSaveRejectsEmptyImage(t *testing.T) {
	svc := service.New(t.TempDir())

	_, err := svc.Save(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, dErrors.Has(err, dErrors.CodeBadRequest))
}

func TestSaveRejectsOversizedImage(t *testing.T) {
	svc := service.New(t.TempDir())

	_, err := svc.Save(context.Background(), bytes.Repeat([]byte("x"), service.MaxImageBytes+1))
	require.Error(t, err)
	assert.True(t, dErrors.Has(err, dErrors.CodeBadRequest))
}
