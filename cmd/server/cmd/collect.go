package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/altamira-asset/indexes-server/internal/collector"
	"github.com/altamira-asset/indexes-server/internal/config"
	"github.com/altamira-asset/indexes-server/internal/metrics"
	"github.com/altamira-asset/indexes-server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

var (
	collectStart   string
	collectEnd     string
	collectIndices []string
	collectLatest  bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a quotation collection",
	Long: `Run a one-off quotation collection and print the result as JSON.

With --latest, collects each registered index's most recent missing
quotation. Otherwise --start and --end delimit the range; --index may be
repeated to restrict the run, formatted as SOURCE:CURRENCY:NAME.

Examples:
  server collect --latest
  server collect --start 2024-01-02 --end 2024-01-31
  server collect --start 2024-01-02 --end 2024-01-31 --index Quantum:BRL:IMA-B`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringVar(&collectStart, "start", "", "range start date (YYYY-MM-DD)")
	collectCmd.Flags().StringVar(&collectEnd, "end", "", "range end date (YYYY-MM-DD)")
	collectCmd.Flags().StringArrayVar(&collectIndices, "index", nil, "index selector SOURCE:CURRENCY:NAME (repeatable)")
	collectCmd.Flags().BoolVar(&collectLatest, "latest", false, "collect each index's most recent missing quotation")
}

func runCollect(cmd *cobra.Command, args []string) error {
	service, cleanup, err := buildCollector()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()

	var result *collector.Result
	if collectLatest {
		result, err = service.CollectLatest(ctx)
	} else {
		var req collector.Request
		req, err = parseCollectFlags()
		if err != nil {
			return err
		}
		result, err = service.Collect(ctx, req)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func parseCollectFlags() (collector.Request, error) {
	if collectStart == "" || collectEnd == "" {
		return collector.Request{}, fmt.Errorf("--start and --end are required unless --latest is set")
	}
	start, err := time.Parse("2006-01-02", collectStart)
	if err != nil {
		return collector.Request{}, fmt.Errorf("invalid --start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", collectEnd)
	if err != nil {
		return collector.Request{}, fmt.Errorf("invalid --end date: %w", err)
	}

	req := collector.Request{Start: start, End: end}
	for _, raw := range collectIndices {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return collector.Request{}, fmt.Errorf("invalid --index %q, want SOURCE:CURRENCY:NAME", raw)
		}
		req.Indices = append(req.Indices, collector.Selector{
			Source:   parts[0],
			Currency: parts[1],
			Index:    parts[2],
		})
	}
	return req, nil
}

// buildCollector wires a collection service against the database and the
// configured providers, for one-off CLI runs.
func buildCollector() (*collector.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	logger := config.NewLogger(cfg.Logging)
	metrics.Init(Version, GitCommit)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdle)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	indexRepo, err := postgres.NewIndexRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	quoteRepo, err := postgres.NewQuotationRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	connectors := collector.NewConnectors(cfg.Provider, quoteRepo, logger)
	service := collector.New(indexRepo, quoteRepo, connectors, logger)
	return service, pool.Close, nil
}

func printJSON(cmd *cobra.Command, payload any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		return err
	}
	return nil
}
