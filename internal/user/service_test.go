package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/Kyz7/microblog/internal/config"
	"github.com/Kyz7/microblog/internal/database"
	"github.com/Kyz7/microblog/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.Env = "test"
	cfg.DatabaseURL = "sqlite::memory:"

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return NewService(db, nil)
}

// race runs fn n times concurrently and returns how many calls succeeded.
// Every failure must be a conflict.
func race(t *testing.T, n int, fn func(i int) error) int {
	t.Helper()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- fn(i)
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrConflict), "unexpected error: %v", err)
	}
	return wins
}

func TestConcurrentRegisterConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	wins := race(t, 6, func(i int) error {
		_, err := svc.Register(ctx, RegisterInput{
			Username: "susan",
			Email:    fmt.Sprintf("susan%d@example.com", i),
			Password: "pw",
		})
		return err
	})
	assert.Equal(t, 1, wins)

	var n int64
	require.NoError(t, svc.db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestConcurrentFollowConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	susan, err := svc.Register(ctx, RegisterInput{Username: "susan", Email: "susan@example.com", Password: "pw"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Username: "david", Email: "david@example.com", Password: "pw"})
	require.NoError(t, err)

	wins := race(t, 6, func(int) error {
		return svc.Follow(ctx, susan, "david")
	})
	assert.Equal(t, 1, wins)
}
