package pagination

import (
	"testing"
	"time"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	t.Run("Success - Nothing given", func(t *testing.T) {
		p, err := ParseParams("", "", "", StringCursor)
		require.NoError(t, err)
		assert.Nil(t, p.Limit)
		assert.Nil(t, p.Offset)
		assert.Nil(t, p.After)
	})

	t.Run("Success - All fields", func(t *testing.T) {
		p, err := ParseParams("10", "-2", "alice", StringCursor)
		require.NoError(t, err)
		assert.Equal(t, 10, *p.Limit)
		assert.Equal(t, -2, *p.Offset, "range checks happen in Paginate")
		assert.Equal(t, "alice", *p.After)
	})

	t.Run("Success - Time cursor", func(t *testing.T) {
		p, err := ParseParams("", "", "2026-01-02T03:04:05.5+02:00", TimeCursor)
		require.NoError(t, err)
		want := time.Date(2026, 1, 2, 1, 4, 5, 500_000_000, time.UTC)
		assert.True(t, want.Equal(*p.After))
		assert.Equal(t, time.UTC, p.After.Location())
	})

	bad := map[string][3]string{
		"limit not a number":  {"ten", "", ""},
		"offset not a number": {"", "1.5", ""},
		"bad time cursor":     {"", "", "yesterday"},
	}
	for name, in := range bad {
		t.Run("Error - "+name, func(t *testing.T) {
			_, err := ParseParams(in[0], in[1], in[2], TimeCursor)
			assert.ErrorIs(t, err, apperr.ErrBadRequest)
		})
	}

	t.Run("Error - Cursor not supported", func(t *testing.T) {
		_, err := ParseParams[string]("", "", "x", nil)
		assert.ErrorIs(t, err, apperr.ErrBadRequest)
	})
}
