package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmill/pkg/domain"
)

func campaignEntries() []Entry {
	return []Entry{
		{Date: domain.MustParseDate("2023-12-19"), Quota: 72},
		{Date: domain.MustParseDate("2023-12-25"), Quota: 3000},
		{Date: domain.MustParseDate("2023-12-26"), Quota: 2000},
		{Date: domain.MustParseDate("2023-12-27"), Quota: 200},
		{Date: domain.MustParseDate("2023-12-31"), Quota: 0},
	}
}

func TestNew_Validation(t *testing.T) {
	t.Run("empty table is fatal", func(t *testing.T) {
		_, err := New(ModePerDate, UnknownDeny, false, nil)
		assert.ErrorIs(t, err, ErrMisconfigured)
	})

	t.Run("negative quota is fatal", func(t *testing.T) {
		_, err := New(ModePerDate, UnknownDeny, false, []Entry{
			{Date: domain.MustParseDate("2023-12-19"), Quota: -1},
		})
		assert.ErrorIs(t, err, ErrMisconfigured)
	})

	t.Run("duplicate date is fatal", func(t *testing.T) {
		_, err := New(ModePerDate, UnknownDeny, false, []Entry{
			{Date: domain.MustParseDate("2023-12-19"), Quota: 1},
			{Date: domain.MustParseDate("2023-12-19"), Quota: 2},
		})
		assert.ErrorIs(t, err, ErrMisconfigured)
	})

	t.Run("invalid mode is fatal", func(t *testing.T) {
		_, err := New(Mode("weekly"), UnknownDeny, false, campaignEntries())
		assert.ErrorIs(t, err, ErrMisconfigured)
	})

	t.Run("entries are sorted regardless of input order", func(t *testing.T) {
		entries := campaignEntries()
		entries[0], entries[len(entries)-1] = entries[len(entries)-1], entries[0]

		p, err := New(ModePerDate, UnknownDeny, false, entries)
		require.NoError(t, err)
		assert.Equal(t, domain.MustParseDate("2023-12-19"), p.WindowStart())
		assert.Equal(t, domain.MustParseDate("2023-12-31"), p.WindowEnd())
	})
}

func TestAllowanceFor(t *testing.T) {
	p, err := New(ModePerDate, UnknownDeny, false, campaignEntries())
	require.NoError(t, err)

	quota, ok := p.AllowanceFor(domain.MustParseDate("2023-12-27"))
	assert.True(t, ok)
	assert.Equal(t, 200, quota)

	// Zero is a valid ceiling, distinct from "absent".
	quota, ok = p.AllowanceFor(domain.MustParseDate("2023-12-31"))
	assert.True(t, ok)
	assert.Equal(t, 0, quota)

	_, ok = p.AllowanceFor(domain.MustParseDate("2023-12-20"))
	assert.False(t, ok)
}

func TestCumulativeAllowanceThrough(t *testing.T) {
	p, err := New(ModeCumulative, UnknownDeny, false, campaignEntries())
	require.NoError(t, err)

	assert.Equal(t, 0, p.CumulativeAllowanceThrough(domain.MustParseDate("2023-12-18")))
	assert.Equal(t, 72, p.CumulativeAllowanceThrough(domain.MustParseDate("2023-12-19")))
	assert.Equal(t, 72, p.CumulativeAllowanceThrough(domain.MustParseDate("2023-12-24")))
	assert.Equal(t, 72+3000+2000, p.CumulativeAllowanceThrough(domain.MustParseDate("2023-12-26")))
	assert.Equal(t, 72+3000+2000+200, p.CumulativeAllowanceThrough(domain.MustParseDate("2024-01-15")))
}

func TestInWindow(t *testing.T) {
	p, err := New(ModePerDate, UnknownDeny, true, campaignEntries())
	require.NoError(t, err)

	assert.False(t, p.InWindow(domain.MustParseDate("2023-12-18")))
	assert.True(t, p.InWindow(domain.MustParseDate("2023-12-19")))
	assert.True(t, p.InWindow(domain.MustParseDate("2023-12-22"))) // gap dates still inside
	assert.True(t, p.InWindow(domain.MustParseDate("2023-12-31")))
	assert.False(t, p.InWindow(domain.MustParseDate("2024-01-01")))
}

func TestLoad(t *testing.T) {
	writeFile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("valid file with defaults", func(t *testing.T) {
		path := writeFile(t, `
entries:
  - date: 2023-12-27
    quota: 2
  - date: 2023-12-28
    quota: 5
`)
		p, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ModePerDate, p.Mode())
		assert.False(t, p.AllowsUnknownDates())
		assert.False(t, p.HardWindow())
		assert.Len(t, p.Entries(), 2)
	})

	t.Run("explicit flags", func(t *testing.T) {
		path := writeFile(t, `
mode: cumulative
unknown_date: allow
hard_window: true
entries:
  - date: 2023-12-19
    quota: 72
`)
		p, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ModeCumulative, p.Mode())
		assert.True(t, p.AllowsUnknownDates())
		assert.True(t, p.HardWindow())
	})

	t.Run("missing file is fatal", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, ErrMisconfigured)
	})

	t.Run("malformed yaml is fatal", func(t *testing.T) {
		path := writeFile(t, "entries: [not valid")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrMisconfigured)
	})

	t.Run("bad date is fatal", func(t *testing.T) {
		path := writeFile(t, `
entries:
  - date: christmas
    quota: 1
`)
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrMisconfigured)
	})
}
