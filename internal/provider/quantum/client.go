// Package quantum implements the provider connector for the Quantum
// terminal. Requests are form-encoded POSTs carrying a query-language
// string; responses are JSON objects keyed by table, row and column, with
// row 0 acting as a column→identifier legend.
package quantum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/altamira-asset/indexes-server/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// NoData is the literal token Quantum returns for cells without a value.
const NoData = "nd"

// Field selects which series a query returns.
type Field string

const (
	// FieldClose requests absolute price levels.
	FieldClose Field = "fechamento"
	// FieldReturn requests day-over-day period returns as decimal
	// fractions.
	FieldReturn Field = "retorno"
)

const wireDateFormat = "02/01/2006"

type ClientConfig struct {
	BaseURL        string
	User           string
	Password       string
	Timeout        time.Duration
	RequestsPerMin int
}

// Client is the wire-level Quantum client.
type Client struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	perMin := cfg.RequestsPerMin
	if perMin <= 0 {
		perMin = 30
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		user:       cfg.User,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		logger:     logger,
	}
}

// SeriesQuery describes one tabular request: a set of identifier codes over
// a date range, in one currency, for one field.
type SeriesQuery struct {
	Codes        []string
	Start        time.Time
	End          time.Time
	CurrencyCode string
	Field        Field
}

// Series is a parsed tabular response.
type Series struct {
	// Columns maps response column keys (col1..colN) to identifier codes,
	// taken from the legend row.
	Columns map[string]string
	// Rows are the data rows, sorted ascending by date. Cell values stay
	// raw: callers decide between price and return interpretation and
	// handle the NoData sentinel.
	Rows []Row
}

type Row struct {
	Date  time.Time
	Cells map[string]string
}

// FetchSeries posts the query and parses the response table. Transport
// failures, non-2xx statuses and malformed tables are returned as errors;
// this layer does not retry.
func (c *Client) FetchSeries(ctx context.Context, q SeriesQuery) (*Series, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ql := buildQuery(q)
	form := url.Values{
		"usr":      {c.user},
		"pwd":      {c.password},
		"consulta": {ql},
		"formato":  {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/consulta", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug().Str("field", string(q.Field)).Int("codes", len(q.Codes)).Msg("quantum query")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ProviderRequestLatency.WithLabelValues("Quantum").Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("Quantum", "error").Inc()
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("Quantum", "error").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ProviderRequests.WithLabelValues("Quantum", "error").Inc()
		return nil, fmt.Errorf("quantum: unexpected status %d: %s", resp.StatusCode, bodySnippet(body))
	}
	metrics.ProviderRequests.WithLabelValues("Quantum", "success").Inc()

	return parseSeries(body)
}

// buildQuery renders the Quantum query-language string. Identifier codes are
// plus-joined; dates are dd/mm/yyyy.
func buildQuery(q SeriesQuery) string {
	return fmt.Sprintf("getHistoricoIndices(ativos='%s';dtIni='%s';dtFim='%s';moeda='%s';campo='%s')",
		strings.Join(q.Codes, "+"),
		q.Start.Format(wireDateFormat),
		q.End.Format(wireDateFormat),
		q.CurrencyCode,
		q.Field)
}

// parseSeries decodes the nested table object. The payload looks like:
//
//	{"tab0": {
//	  "lin0": {"col0": "Data", "col1": "IMAB"},
//	  "lin1": {"col0": "02/01/2024", "col1": "5.432,10"}}}
func parseSeries(body []byte) (*Series, error) {
	var tables map[string]map[string]map[string]string
	if err := json.Unmarshal(body, &tables); err != nil {
		return nil, fmt.Errorf("quantum: parse response: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("quantum: response has no tables")
	}

	// Responses carry a single table; take the lowest-numbered one.
	tableKeys := make([]string, 0, len(tables))
	for key := range tables {
		tableKeys = append(tableKeys, key)
	}
	sort.Strings(tableKeys)
	table := tables[tableKeys[0]]

	legend, ok := table["lin0"]
	if !ok {
		return nil, fmt.Errorf("quantum: response table missing legend row")
	}

	columns := make(map[string]string, len(legend))
	for col, code := range legend {
		if col == "col0" {
			continue
		}
		columns[col] = code
	}

	rows := make([]Row, 0, len(table)-1)
	for lin, cells := range table {
		if lin == "lin0" {
			continue
		}
		rawDate, ok := cells["col0"]
		if !ok {
			return nil, fmt.Errorf("quantum: row %s missing date column", lin)
		}
		day, err := time.Parse(wireDateFormat, rawDate)
		if err != nil {
			return nil, fmt.Errorf("quantum: row %s has invalid date %q: %w", lin, rawDate, err)
		}
		values := make(map[string]string, len(cells)-1)
		for col, cell := range cells {
			if col == "col0" {
				continue
			}
			values[col] = cell
		}
		rows = append(rows, Row{Date: day.UTC(), Cells: values})
	}

	// The bootstrapping pass depends on strict ascending date order, so
	// sort here rather than trusting response row order.
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	return &Series{Columns: columns, Rows: rows}, nil
}

func bodySnippet(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
