package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/codemarket/internal/core/domain"
	"github.com/rl1809/codemarket/internal/port"
)

const idempotencyKeyPrefix = "purchase:"

type MarketService struct {
	ledger    port.LedgerRepository
	transfers port.TransferLog
	cache     port.CacheRepository
	logger    zerolog.Logger
	now       func() time.Time

	prices *priceHistory

	mu      sync.RWMutex
	closed  bool
	journal chan domain.JournalEntry
}

func NewMarketService(ledger port.LedgerRepository, transfers port.TransferLog, cache port.CacheRepository, queueSize int, logger zerolog.Logger) *MarketService {
	return &MarketService{
		ledger:    ledger,
		transfers: transfers,
		cache:     cache,
		logger:    logger.With().Str("component", "market").Logger(),
		now:       time.Now,
		prices:    newPriceHistory(),
		journal:   make(chan domain.JournalEntry, queueSize),
	}
}

// Register creates an empty account and returns the vendor's identity.
func (s *MarketService) Register(ctx context.Context, name, url string) (string, error) {
	if name == "" {
		return "", domain.Errorf(domain.KindInvalidVendorName, "vendor name is empty")
	}

	acct, err := s.ledger.CreateAccount(ctx, name, url)
	if err != nil {
		return "", err
	}

	s.logger.Info().Str("vendor", acct.Name).Str("url", acct.URL).Msg("vendor registered")
	return acct.ID, nil
}

// Stock moves delta units from the store pool to the stock pool (negative
// delta moves them back) and sets the price. A zero delta only re-prices.
func (s *MarketService) Stock(ctx context.Context, item string, price decimal.Decimal, delta int, identity string) (domain.StockReceipt, error) {
	if price.IsNegative() {
		return domain.StockReceipt{}, domain.Errorf(domain.KindInvalidPrice, "price %s is negative", price)
	}
	if item == "" {
		return domain.StockReceipt{}, domain.Errorf(domain.KindUnknownItem, "item name is empty")
	}

	acct, err := s.ledger.ByID(ctx, identity)
	if err != nil {
		return domain.StockReceipt{}, err
	}

	var updated domain.Item
	version, err := s.ledger.Update(ctx, acct.Name, func(a *domain.Account) error {
		var err error
		updated, err = a.AdjustPools(item, -delta, delta, price)
		return err
	})
	if err != nil {
		return domain.StockReceipt{}, err
	}

	s.publish(domain.JournalEntry{
		Version: version, Vendor: acct.Name, Item: item,
		Kind: domain.JournalStock, Change: delta, Price: price,
	})
	s.recordPrices(ctx)
	return domain.NewStockReceipt(updated), nil
}

// Allocate moves quantity units of item from the stored account into the
// vendor's store pool.
func (s *MarketService) Allocate(ctx context.Context, item string, quantity int, identity string) (domain.StockReceipt, error) {
	if quantity <= 0 {
		return domain.StockReceipt{}, domain.Errorf(domain.KindInvalidQuantity, "quantity must be positive, got %d", quantity)
	}

	acct, err := s.ledger.ByID(ctx, identity)
	if err != nil {
		return domain.StockReceipt{}, err
	}

	var updated domain.Item
	version, err := s.ledger.Exchange(ctx, domain.StoredAccount, acct.Name, func(from, to *domain.Account) error {
		src, ok := from.GetItem(item)
		if !ok {
			return domain.Errorf(domain.KindUnknownItem, "%q is not held in %s", item, domain.StoredAccount)
		}
		if _, err := from.AdjustPools(item, -quantity, 0, src.Price); err != nil {
			return err
		}

		price := src.Price
		if own, ok := to.GetItem(item); ok {
			price = own.Price
		}
		var err error
		updated, err = to.AdjustPools(item, quantity, 0, price)
		return err
	})
	if err != nil {
		return domain.StockReceipt{}, err
	}

	s.publish(
		domain.JournalEntry{Version: version, Vendor: domain.StoredAccount, Item: item, Kind: domain.JournalAllocate, Change: -quantity, Price: updated.Price},
		domain.JournalEntry{Version: version, Vendor: acct.Name, Item: item, Kind: domain.JournalAllocate, Change: quantity, Price: updated.Price},
	)
	s.recordPrices(ctx)
	return domain.NewStockReceipt(updated), nil
}

// Purchase transfers count units of item from the seller's stock pool to the
// buyer at the seller's current price. A non-empty requestID makes the call
// idempotent.
func (s *MarketService) Purchase(ctx context.Context, item string, count int, from, to, requestID string) (receipt domain.PurchaseReceipt, err error) {
	if count <= 0 {
		return receipt, domain.Errorf(domain.KindInvalidQuantity, "count must be positive, got %d", count)
	}
	if from == domain.StoredAccount {
		return receipt, domain.Errorf(domain.KindUnknownVendor, "%s cannot be purchased from", domain.StoredAccount)
	}

	seller, err := s.ledger.Lookup(ctx, from)
	if err != nil {
		return receipt, err
	}
	buyer, err := s.ledger.ByID(ctx, to)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownVendor) {
			return receipt, domain.Errorf(domain.KindUnknownBuyer, "buyer identity not found")
		}
		return receipt, err
	}

	if requestID != "" {
		key := idempotencyKeyPrefix + requestID
		ok, cerr := s.cache.SetIdempotency(ctx, key)
		if cerr != nil {
			return receipt, fmt.Errorf("idempotency check failed: %w", cerr)
		}
		if !ok {
			return receipt, domain.Errorf(domain.KindDuplicateRequest, "request %s was already submitted", requestID)
		}
		defer func() {
			if err != nil {
				if rerr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); rerr != nil {
					s.logger.Error().Err(rerr).Str("request_id", requestID).Msg("release idempotency key")
				}
				return
			}
			if cerr := s.cache.CompleteIdempotency(context.WithoutCancel(ctx), key); cerr != nil {
				s.logger.Error().Err(cerr).Str("request_id", requestID).Msg("complete idempotency key")
			}
		}()
	}

	transfer := domain.Transfer{
		ID:        uuid.NewString(),
		Item:      item,
		Count:     count,
		Seller:    seller.Name,
		Buyer:     buyer.Name,
		SellerID:  seller.ID,
		BuyerID:   buyer.ID,
		CreatedAt: s.now(),
	}

	version, err := s.ledger.Exchange(ctx, seller.Name, buyer.Name, func(sa, ba *domain.Account) error {
		listed, ok := sa.GetItem(item)
		if !ok {
			return domain.Errorf(domain.KindUnknownItem, "%q is not sold by %s", item, sa.Name)
		}
		if listed.StockQuantity < count {
			return domain.Errorf(domain.KindInsufficientQuantity,
				"%s has %d of %q in stock, %d requested", sa.Name, listed.StockQuantity, item, count)
		}
		if _, err := sa.AdjustPools(item, 0, -count, listed.Price); err != nil {
			return err
		}

		price := listed.Price
		if own, ok := ba.GetItem(item); ok {
			price = own.Price
		}
		if _, err := ba.AdjustPools(item, count, 0, price); err != nil {
			return err
		}

		transfer.UnitPrice = listed.Price
		if err := s.transfers.Append(ctx, transfer); err != nil {
			return fmt.Errorf("append transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			s.logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("purchase aborted")
		}
		return receipt, err
	}

	s.publish(
		domain.JournalEntry{Version: version, Vendor: seller.Name, Item: item, Kind: domain.JournalSell, Change: -count, Price: transfer.UnitPrice},
		domain.JournalEntry{Version: version, Vendor: buyer.Name, Item: item, Kind: domain.JournalReceive, Change: count, Price: transfer.UnitPrice},
	)
	s.recordPrices(ctx)
	s.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("item", item).
		Int("count", count).
		Str("seller", seller.Name).
		Str("buyer", buyer.Name).
		Msg("purchase completed")

	return domain.PurchaseReceipt{
		TransferID: transfer.ID,
		Item:       item,
		Count:      count,
		UnitPrice:  transfer.UnitPrice,
		Total:      transfer.UnitPrice.Mul(decimal.NewFromInt(int64(count))),
		Seller:     seller.Name,
		Buyer:      buyer.Name,
	}, nil
}

// LedgerState returns the whole ledger to any holder of a valid identity.
func (s *MarketService) LedgerState(ctx context.Context, identity string) (domain.Snapshot, error) {
	if _, err := s.ledger.ByID(ctx, identity); err != nil {
		return domain.Snapshot{}, err
	}
	return s.ledger.Snapshot(ctx), nil
}

func (s *MarketService) VendorNames(ctx context.Context) []string {
	return s.ledger.Snapshot(ctx).Names
}

// VendorURLs is aligned with VendorNames.
func (s *MarketService) VendorURLs(ctx context.Context) []string {
	return s.ledger.Snapshot(ctx).URLs
}

// AveragePrices returns the stock-weighted listed price of every item on sale.
func (s *MarketService) AveragePrices(ctx context.Context) map[string]decimal.Decimal {
	return averagePrices(s.ledger.Snapshot(ctx))
}

// PriceHistory returns the average price of item after every committed
// stock, allocation and purchase, oldest first.
func (s *MarketService) PriceHistory(ctx context.Context, item string) ([]domain.PricePoint, error) {
	if item == "" {
		return nil, domain.Errorf(domain.KindInvalidRequest, "item name is empty")
	}
	return s.prices.item(item), nil
}

// PriceHistories returns PriceHistory for every item seen so far.
func (s *MarketService) PriceHistories(ctx context.Context) map[string][]domain.PricePoint {
	return s.prices.all()
}

func (s *MarketService) recordPrices(ctx context.Context) {
	s.prices.record(func() domain.Snapshot { return s.ledger.Snapshot(ctx) })
}

// Transfers lists the caller's purchases and sales.
func (s *MarketService) Transfers(ctx context.Context, identity string) ([]domain.Transfer, error) {
	acct, err := s.ledger.ByID(ctx, identity)
	if err != nil {
		return nil, err
	}
	out, err := s.transfers.ListByIdentity(ctx, acct.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("vendor", acct.Name).Msg("list transfers")
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return out, nil
}

func (s *MarketService) publish(entries ...domain.JournalEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	now := s.now()
	for _, e := range entries {
		e.CreatedAt = now
		select {
		case s.journal <- e:
		default:
			s.logger.Warn().Uint64("version", e.Version).Str("vendor", e.Vendor).Msg("journal queue full, entry dropped")
		}
	}
}

func (s *MarketService) GetJournalQueue() <-chan domain.JournalEntry {
	return s.journal
}

// Close stops journaling and closes the queue so workers can drain it.
func (s *MarketService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.journal)
	}
}
