// Package main checks whether the catalog is reachable with the current
// configuration, one fetch strategy at a time. Nothing is stored and no
// notification is sent.
//
// Usage: shein-probe [--strategy api|html|mobile|feed] [--sample N] [--output text|json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"shein-verse-bot/internal/config"
	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/infra/catalog"
	"shein-verse-bot/internal/observability/logging"
	"shein-verse-bot/internal/usecase/normalize"
	"shein-verse-bot/internal/usecase/policy"
)

// StrategyReport is the diagnostic result of one fetch strategy.
type StrategyReport struct {
	Strategy       string          `json:"strategy"`
	Status         string          `json:"status"` // "OK" or the fetch failure reason
	Records        int             `json:"records"`
	Products       int             `json:"products"`
	InStock        int             `json:"in_stock"`
	Men            int             `json:"men"`
	Malformed      int             `json:"malformed"`
	ResponseTimeMs int64           `json:"response_time_ms"`
	Error          string          `json:"error,omitempty"`
	Sample         []ProductOutput `json:"sample,omitempty"`
}

// ProductOutput is one normalized product in the sample.
type ProductOutput struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Price     string   `json:"price"`
	Category  string   `json:"category"`
	Available bool     `json:"available"`
	Variants  []string `json:"variants,omitempty"`
	URL       string   `json:"url"`
}

func main() {
	var (
		strategy string
		sample   int
		output   string
		timeout  time.Duration
	)
	flag.StringVar(&strategy, "strategy", "", "probe a single strategy (api, html, mobile or feed); default: all configured")
	flag.IntVar(&sample, "sample", 5, "number of products to print per strategy")
	flag.StringVar(&output, "output", "text", "output format: text or json")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "timeout per strategy")
	flag.Parse()

	logger := logging.New(os.Stderr, os.Getenv("LOG_FORMAT"), logging.ParseLevel(os.Getenv("LOG_LEVEL")))
	slog.SetDefault(logger)

	catCfg, normCfg, err := config.LoadCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	strategies := catCfg.Strategies
	if strategy != "" {
		strategies = []string{strategy}
	}

	norm := normalize.New(normCfg)
	reports := make([]StrategyReport, 0, len(strategies))
	for _, name := range strategies {
		cfg := catCfg
		cfg.Strategies = []string{name}
		if err := cfg.Validate(); err != nil {
			reports = append(reports, StrategyReport{Strategy: name, Status: "CONFIG", Error: err.Error()})
			continue
		}
		reports = append(reports, probe(catalog.New(nil, cfg), name, norm, sample, timeout))
	}

	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			fmt.Fprintf(os.Stderr, "Error: encode report: %v\n", err)
			os.Exit(2)
		}
	default:
		printText(catCfg.CollectionURL(), reports)
	}

	for _, r := range reports {
		if r.Status == "OK" {
			return
		}
	}
	os.Exit(1)
}

func probe(source *catalog.Chain, name string, norm *normalize.Normalizer, sample int, timeout time.Duration) StrategyReport {
	report := StrategyReport{Strategy: name}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	records, err := source.Fetch(ctx)
	report.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		report.Status = "transport"
		var fe *entity.FetchError
		if errors.As(err, &fe) {
			report.Status = fe.Reason
		}
		report.Error = logging.Redact(err)
		return report
	}

	report.Status = "OK"
	report.Records = len(records)
	products, errs := norm.NormalizeAll(records)
	report.Products = len(products)
	report.Malformed = len(errs)
	for _, p := range products {
		if p.Available {
			report.InStock++
		}
		if p.Mens() {
			report.Men++
		}
		if len(report.Sample) < sample {
			report.Sample = append(report.Sample, ProductOutput{
				ID:        p.ID,
				Name:      p.Name,
				Price:     policy.FormatPrice(p),
				Category:  p.Category,
				Available: p.Available,
				Variants:  p.Variants,
				URL:       p.BuyURL,
			})
		}
	}
	return report
}

func printText(collectionURL string, reports []StrategyReport) {
	fmt.Printf("Catalog probe: %s\n\n", collectionURL)
	for _, r := range reports {
		fmt.Printf("[%s] %s (%dms)\n", r.Strategy, r.Status, r.ResponseTimeMs)
		if r.Error != "" {
			fmt.Printf("  error: %s\n\n", r.Error)
			continue
		}
		fmt.Printf("  records=%d products=%d in_stock=%d men=%d malformed=%d\n",
			r.Records, r.Products, r.InStock, r.Men, r.Malformed)
		for _, p := range r.Sample {
			stock := "out"
			if p.Available {
				stock = "in"
			}
			fmt.Printf("  - %s  %-40.40s  %10s  %-5s  %s stock\n", p.ID, p.Name, p.Price, p.Category, stock)
		}
		fmt.Println()
	}
}
