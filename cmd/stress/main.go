package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/codemarket/internal/adapter/storage"
	"github.com/rl1809/codemarket/internal/core/domain"
	"github.com/rl1809/codemarket/internal/core/service"
)

const item = "u64"

func main() {
	initialStock := flag.Int("stock", 20, "units the seller stocks")
	buyers := flag.Int("buyers", 50, "concurrent buyers, one unit each")
	flag.Parse()

	ctx := context.Background()
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	market := service.NewMarketService(
		storage.NewMemoryLedger([]domain.Item{{Name: item, StoreQuantity: *initialStock}}),
		storage.NewMemoryTransferLog(),
		storage.NewMemoryCache(),
		1000,
		logger,
	)
	defer market.Close()

	go func() {
		for range market.GetJournalQueue() {
		}
	}()

	seller, err := market.Register(ctx, "seller", "")
	if err != nil {
		fail(err)
	}
	if _, err := market.Allocate(ctx, item, *initialStock, seller); err != nil {
		fail(err)
	}
	if _, err := market.Stock(ctx, item, decimal.NewFromInt(1), *initialStock, seller); err != nil {
		fail(err)
	}

	ids := make([]string, *buyers)
	for i := range ids {
		if ids[i], err = market.Register(ctx, "buyer-"+strconv.Itoa(i), ""); err != nil {
			fail(err)
		}
	}

	var successCount, soldOutCount, otherCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for _, id := range ids {
		wg.Add(1)
		go func(buyer string) {
			defer wg.Done()

			_, err := market.Purchase(ctx, item, 1, "seller", buyer, uuid.NewString())
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientQuantity):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(id)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	soldOut := int(soldOutCount.Load())
	expected := min(*initialStock, *buyers)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *buyers)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == expected && soldOut == *buyers-expected {
		fmt.Printf("PASS: exactly %d purchases succeeded\n", expected)
	} else {
		fmt.Printf("FAIL: expected %d success/%d sold out, got %d/%d\n",
			expected, *buyers-expected, success, soldOut)
	}

	state, err := market.LedgerState(ctx, seller)
	if err != nil {
		fail(err)
	}
	left, _ := accountItem(state, "seller")
	fmt.Printf("Seller stock left: %d\n", left.StockQuantity)
	if left.StockQuantity == *initialStock-expected {
		fmt.Println("PASS: seller stock matches sales")
	} else {
		fmt.Printf("FAIL: expected stock %d, got %d\n", *initialStock-expected, left.StockQuantity)
	}
}

func accountItem(snap domain.Snapshot, vendor string) (domain.Item, bool) {
	for _, it := range snap.Accounts[vendor] {
		if it.Name == item {
			return it, true
		}
	}
	return domain.Item{}, false
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
