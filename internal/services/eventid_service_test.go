package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldclock/server/internal/models"
)

func TestEventIDService_Mint(t *testing.T) {
	svc := NewEventIDService()

	t.Run("minted id round-trips through parse", func(t *testing.T) {
		at := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
		id := svc.MintAt(at)

		parsed, err := svc.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, at.UnixMilli(), parsed.UnixMilli())
	})

	t.Run("minted ids are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := svc.Mint()
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	})
}

func TestEventIDService_Parse(t *testing.T) {
	svc := NewEventIDService()

	t.Run("accepts well-formed id", func(t *testing.T) {
		parsed, err := svc.Parse("1718451000000-a3f1b2c4-0000-4000-8000-000000000001")
		require.NoError(t, err)
		assert.Equal(t, int64(1718451000000), parsed.UnixMilli())
	})

	rejectCases := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"no separator", "1718451000000"},
		{"empty suffix", "1718451000000-"},
		{"non-numeric prefix", "xyz1234567890-suffix"},
		{"short prefix", "123-suffix"},
		{"negative prefix", "-718451000000-suffix"},
		{"prefix with embedded sign", "1718+51000000-suffix"},
	}

	for _, tc := range rejectCases {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			_, err := svc.Parse(tc.id)
			require.Error(t, err)

			var rej *models.Rejection
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, models.ReasonInvalidEventID, rej.Reason)
		})
	}
}

func TestEventIDService_Age(t *testing.T) {
	svc := NewEventIDService()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("past id has positive age", func(t *testing.T) {
		id := svc.MintAt(now.Add(-2 * time.Hour))
		age, err := svc.Age(id, now)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Hour, age)
	})

	t.Run("future id has negative age", func(t *testing.T) {
		id := svc.MintAt(now.Add(5 * time.Minute))
		age, err := svc.Age(id, now)
		require.NoError(t, err)
		assert.Equal(t, -5*time.Minute, age)
	})

	t.Run("malformed id propagates rejection", func(t *testing.T) {
		_, err := svc.Age(fmt.Sprintf("bogus-%d", now.UnixMilli()), now)
		require.Error(t, err)
	})
}
