package main

import (
	"context"
	"fmt"
	"time"

	"chama-connect/internal/config"
	"chama-connect/internal/database"
	"chama-connect/internal/models"
)

// check-cycle prints the current month's cycle and winners without
// creating anything.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	ctx := context.Background()
	store, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	now := time.Now().In(cfg.Location)
	year, month := now.Year(), int(now.Month())-1
	cycle, err := store.GetCycle(ctx, year, month)
	fmt.Println("err=", err)
	if cycle != nil {
		fmt.Printf("cycle=%d period=%d-%02d eligible=%d drawn=%d pool=%d winners=%d completed=%v\n",
			cycle.ID, cycle.Year, cycle.Month+1, len(cycle.EligibleUsers), len(cycle.DrawnUsers),
			cycle.PoolSize, cycle.WinnersCount, cycle.IsCompleted)
	}
	winners, err := store.ListWinners(ctx, models.RafflePeriod(year, month))
	fmt.Println("err=", err)
	for _, w := range winners {
		fmt.Printf("  #%d %s (%s) %s %s %s\n", w.Position, w.Name, w.UserID, w.Amount.StringFixed(2), w.PaymentStatus, w.PayoutRef)
	}
}
