package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApp_MissingConfigUsesDefaults(t *testing.T) {
	app, err := NewApp(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tradecore", app.Cfg.App.Name)
	assert.NotNil(t, app.Logger)
}

func TestApp_RunContextStopsOnFailure(t *testing.T) {
	app := &App{Cfg: testConfig(), Logger: &mockLogger{}}
	boom := errors.New("boom")

	stopped := make(chan struct{})
	err := app.RunContext(context.Background(),
		RunnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		}),
		RunnerFunc(func(context.Context) error { return boom }),
	)
	assert.ErrorIs(t, err, boom)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sibling runner was not cancelled")
	}
}

func TestApp_RunContextCancelled(t *testing.T) {
	app := &App{Cfg: testConfig(), Logger: &mockLogger{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := app.RunContext(ctx, RunnerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	assert.NoError(t, err)
}
