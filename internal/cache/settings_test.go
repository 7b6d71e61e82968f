package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chama-connect/internal/models"
)

func TestSettingsCacheServesWithinTTL(t *testing.T) {
	calls := 0
	c := NewSettingsCache(time.Hour, func(context.Context) (*models.RaffleSettings, error) {
		calls++
		return &models.RaffleSettings{ID: 1, WinnersPerPeriod: 3, Active: true}, nil
	})

	first, err := c.Get(context.Background())
	require.NoError(t, err)
	first.WinnersPerPeriod = 99

	second, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, second.WinnersPerPeriod)
	require.Equal(t, 1, calls)

	c.Invalidate()
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestSettingsCacheDoesNotKeepErrors(t *testing.T) {
	fail := true
	c := NewSettingsCache(time.Hour, func(context.Context) (*models.RaffleSettings, error) {
		if fail {
			return nil, errors.New("db down")
		}
		return &models.RaffleSettings{WinnersPerPeriod: 2}, nil
	})

	_, err := c.Get(context.Background())
	require.Error(t, err)

	fail = false
	got, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, got.WinnersPerPeriod)
}
