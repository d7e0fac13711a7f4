package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/validate"
)

var (
	showDays int
	showRaw  bool
)

// showCmd creates the "show" subcommand.
func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show the stored snapshot and price history of a product",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	cmd.Flags().IntVarP(&showDays, "days", "d", 30, "history window in days")
	cmd.Flags().BoolVar(&showRaw, "raw", false, "print the latest stored raw page (redis sink only)")

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	id := validate.NormalizeIdentifier(args[0])
	if showRaw {
		return printRawPage(ctx, cfg.Storage.RawPages, id, logger)
	}

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	snap, err := store.GetCurrentSnapshot(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("product %s has not been scraped yet", id)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", snap.Identifier)
	fmt.Printf("  Title:        %s\n", deref(snap.Title, "-"))
	fmt.Printf("  Price:        %s\n", formatPrice(snap.CurrentPrice, snap.Currency))
	fmt.Printf("  Original:     %s\n", formatPrice(snap.OriginalPrice, snap.Currency))
	if snap.DiscountPercent != nil {
		fmt.Printf("  Discount:     %.2f%%\n", *snap.DiscountPercent)
	}
	fmt.Printf("  Availability: %s\n", snap.Availability)
	if snap.Rating != nil {
		fmt.Printf("  Rating:       %.1f", *snap.Rating)
		if snap.ReviewCount != nil {
			fmt.Printf(" (%d reviews)", *snap.ReviewCount)
		}
		fmt.Println()
	}
	fmt.Printf("  Seller:       %s\n", deref(snap.Seller, "-"))
	fmt.Printf("  Captured:     %s\n", snap.CapturedAt.Format(time.RFC3339))

	history, err := store.GetHistory(ctx, id, time.Now().AddDate(0, 0, -showDays))
	if err != nil {
		return err
	}
	fmt.Printf("\nHistory (%d days, %d points):\n", showDays, len(history))
	for _, p := range history {
		fmt.Printf("  %s  %10.2f  %s\n", p.CapturedAt.Format("2006-01-02 15:04"), p.Price, p.Availability)
	}
	return nil
}

func printRawPage(ctx context.Context, cfg config.RawPageConfig, id string, logger *slog.Logger) error {
	if cfg.Sink != "redis" {
		return fmt.Errorf("--raw needs storage.raw_pages.sink: redis")
	}
	sink, err := storage.NewRedisSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	html, err := sink.Latest(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("no raw page stored for %s", id)
	}
	if err != nil {
		return err
	}
	fmt.Println(html)
	return nil
}

func deref(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func formatPrice(p *float64, currency string) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%s %.2f", currency, *p)
}
