package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/pubsub"
	"github.com/yoockh/yoochat/internal/services"
)

// TitleSource is satisfied by *llm.TitleGenerator.
type TitleSource interface {
	Generate(ctx context.Context, firstMessage string, provider models.ProviderID) string
}

// TitleWorkerPool names sessions after their first completed turn.
type TitleWorkerPool struct {
	Sessions   services.SessionService
	Titles     TitleSource
	Bus        pubsub.Bus
	NumWorkers int
	QueueSize  int

	Logger *logrus.Logger

	jobs chan services.TitleJob
	ctx  context.Context
	wg   sync.WaitGroup
}

func (p *TitleWorkerPool) Start(ctx context.Context) error {
	if p.Sessions == nil || p.Titles == nil {
		return errors.New("TitleWorkerPool missing dependency: Sessions/Titles must be set")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 64
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	p.ctx = ctx
	p.jobs = make(chan services.TitleJob, p.QueueSize)

	for i := 0; i < p.NumWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	return nil
}

// Schedule queues job, blocking while the queue is full. Jobs scheduled after
// the pool's context ended are dropped.
func (p *TitleWorkerPool) Schedule(job services.TitleJob) {
	if p.jobs == nil {
		p.Logger.WithField("session_id", job.SessionID).Warn("title pool not started, job dropped")
		return
	}
	select {
	case p.jobs <- job:
	case <-p.ctx.Done():
	}
}

// Wait blocks until every worker has exited.
func (p *TitleWorkerPool) Wait() { p.wg.Wait() }

func (p *TitleWorkerPool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.handle(ctx, job)
		}
	}
}

func (p *TitleWorkerPool) handle(ctx context.Context, job services.TitleJob) {
	log := p.Logger.WithFields(logrus.Fields{
		"session_id": job.SessionID,
		"provider":   job.Provider,
	})

	title := p.Titles.Generate(ctx, job.FirstMessage, job.Provider)
	if !p.Sessions.SetTitle(job.SessionID, title) {
		log.Debug("session gone before title resolved")
		return
	}
	log.WithField("title", title).Info("session titled")

	if p.Bus == nil {
		return
	}
	ev := models.TurnEvent{Type: models.EventTitle, SessionID: job.SessionID, Text: title, At: time.Now().UTC()}
	if err := p.Bus.Publish(ctx, ev); err != nil {
		log.WithError(err).Warn("publish title failed")
	}
}
