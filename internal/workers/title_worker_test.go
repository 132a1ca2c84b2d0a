package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoochat/internal/logger"
	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/pubsub"
	"github.com/yoockh/yoochat/internal/services"
	"github.com/yoockh/yoochat/internal/storage"
)

type fixedTitles struct {
	mu    sync.Mutex
	calls int
	title string
}

func (f *fixedTitles) Generate(context.Context, string, models.ProviderID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.title
}

func TestTitleWorkerPool_SetsTitleAndPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := services.NewSessionService(storage.NewMemoryStore())
	cs := sessions.Create(models.ProviderGemini)
	bus := pubsub.NewMemoryBus(logger.Discard())
	sub, err := bus.Subscribe(ctx, cs.ID)
	require.NoError(t, err)

	titles := &fixedTitles{title: "Go Channel Basics"}
	pool := &TitleWorkerPool{Sessions: sessions, Titles: titles, Bus: bus, NumWorkers: 1, Logger: logger.Discard()}
	require.NoError(t, pool.Start(ctx))

	pool.Schedule(services.TitleJob{SessionID: cs.ID, FirstMessage: "channels?", Provider: models.ProviderGemini})

	select {
	case ev := <-sub.C:
		assert.Equal(t, models.EventTitle, ev.Type)
		assert.Equal(t, "Go Channel Basics", ev.Text)
	case <-time.After(time.Second):
		t.Fatal("no title event")
	}

	got, err := sessions.Get(cs.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Channel Basics", got.Title)

	cancel()
	pool.Wait()
}

func TestTitleWorkerPool_DeletedSessionStaysDeleted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := services.NewSessionService(storage.NewMemoryStore())
	cs := sessions.Create(models.ProviderGemini)
	require.NoError(t, sessions.Delete(cs.ID))

	titles := &fixedTitles{title: "Ghost"}
	pool := &TitleWorkerPool{Sessions: sessions, Titles: titles, NumWorkers: 1, Logger: logger.Discard()}
	require.NoError(t, pool.Start(ctx))
	pool.Schedule(services.TitleJob{SessionID: cs.ID, FirstMessage: "x"})

	require.Eventually(t, func() bool {
		titles.mu.Lock()
		defer titles.mu.Unlock()
		return titles.calls == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	pool.Wait()
	assert.Empty(t, sessions.List())
}

func TestTitleWorkerPool_RequiresDependencies(t *testing.T) {
	assert.Error(t, (&TitleWorkerPool{}).Start(context.Background()))
}
