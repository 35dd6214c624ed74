// Package agent contains a sample trading agent that shuffles random
// quantities of its own goods between store and stock at random prices.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/codemarket/internal/client"
	"github.com/rl1809/codemarket/internal/core/domain"
)

// ErrStopped is returned by Step when the market no longer recognizes the bot.
var ErrStopped = errors.New("agent: vendor no longer recognized")

type Options struct {
	Name      string
	URL       string
	Interval  time.Duration
	MaxRounds int // zero runs until cancelled
	Rand      *rand.Rand
}

type RandoBot struct {
	market client.Market
	opts   Options
	rng    *rand.Rand
	logger zerolog.Logger

	identity string
}

func NewRandoBot(market client.Market, opts Options, logger zerolog.Logger) *RandoBot {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Name == "" {
		opts.Name = strconv.Itoa(rng.IntN(100000))
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	return &RandoBot{
		market: market,
		opts:   opts,
		rng:    rng,
		logger: logger.With().Str("agent", opts.Name).Logger(),
	}
}

func (b *RandoBot) Identity() string { return b.identity }

// Run registers the bot and acts once per interval until ctx is cancelled,
// MaxRounds is reached, or the market stops recognizing the bot. It returns
// the number of completed rounds.
func (b *RandoBot) Run(ctx context.Context) (int, error) {
	id, err := b.market.Register(ctx, b.opts.Name, b.opts.URL)
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", b.opts.Name, err)
	}
	b.identity = id
	b.logger.Info().Msg("registered")

	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()

	rounds := 0
	for {
		if err := b.Step(ctx); err != nil {
			if errors.Is(err, ErrStopped) {
				return rounds, err
			}
			b.logger.Warn().Err(err).Int("round", rounds).Msg("round failed")
		}
		rounds++
		if b.opts.MaxRounds > 0 && rounds >= b.opts.MaxRounds {
			return rounds, nil
		}

		select {
		case <-ctx.Done():
			return rounds, nil
		case <-ticker.C:
		}
	}
}

// Step performs one round: read the ledger, pick one of the bot's items and
// move a random amount between its pools at a random price. A bot with an
// empty catalog first claims one unit of a random stored item.
func (b *RandoBot) Step(ctx context.Context) error {
	state, err := b.market.LedgerState(ctx, b.identity)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownVendor) {
			return ErrStopped
		}
		return fmt.Errorf("ledger state: %w", err)
	}

	mine := state.Vendors[b.opts.Name]
	if len(mine) == 0 {
		return b.claim(ctx, state.Vendors[domain.StoredAccount])
	}

	it := mine[b.rng.IntN(len(mine))]
	delta := b.pickDelta(it)
	price := decimal.NewFromFloat(b.rng.Float64()).Round(2)

	receipt, err := b.market.Stock(ctx, it.Name, price, delta, b.identity)
	if err != nil {
		return fmt.Errorf("stock %s: %w", it.Name, err)
	}
	b.logger.Debug().
		Str("item", receipt.Item).
		Int("delta", delta).
		Str("price", receipt.Price.String()).
		Int("store", receipt.StoreQuantity).
		Int("stock", receipt.StockQuantity).
		Msg("stocked")
	return nil
}

// pickDelta moves from the larger pool, never more than it holds.
func (b *RandoBot) pickDelta(it domain.Item) int {
	switch {
	case it.StoreQuantity > it.StockQuantity:
		return b.rng.IntN(it.StoreQuantity) + 1
	case it.StockQuantity > 0:
		return -(b.rng.IntN(it.StockQuantity) + 1)
	default:
		return 0
	}
}

func (b *RandoBot) claim(ctx context.Context, stored []domain.Item) error {
	var available []domain.Item
	for _, it := range stored {
		if it.StoreQuantity > 0 {
			available = append(available, it)
		}
	}
	if len(available) == 0 {
		return nil
	}

	it := available[b.rng.IntN(len(available))]
	qty := b.rng.IntN(it.StoreQuantity) + 1
	if _, err := b.market.Allocate(ctx, it.Name, qty, b.identity); err != nil {
		return fmt.Errorf("allocate %s: %w", it.Name, err)
	}
	b.logger.Info().Str("item", it.Name).Int("quantity", qty).Msg("claimed stored goods")
	return nil
}
