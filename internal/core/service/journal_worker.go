package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/codemarket/internal/core/domain"
	"github.com/rl1809/codemarket/internal/port"
)

// JournalWorker persists journal entries in batches until its queue closes.
type JournalWorker struct {
	repo          port.JournalRepository
	logger        zerolog.Logger
	batchSize     int
	flushInterval time.Duration
}

func NewJournalWorker(repo port.JournalRepository, batchSize int, flushInterval time.Duration, logger zerolog.Logger) *JournalWorker {
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &JournalWorker{
		repo:          repo,
		logger:        logger.With().Str("component", "journal").Logger(),
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

func (w *JournalWorker) Run(id int, queue <-chan domain.JournalEntry) {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.JournalEntry, 0, w.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := w.repo.AppendEntries(ctx, batch); err != nil {
			w.logger.Error().Err(err).Int("worker", id).Int("entries", len(batch)).Msg("failed to persist journal batch")
		} else {
			w.logger.Debug().Int("worker", id).Int("entries", len(batch)).Msg("persisted journal batch")
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
