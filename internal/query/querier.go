// Package query reads aggregate window series back from ClickHouse.
package query

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/engine/merger"
	"DDoSpectra/internal/model"
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

const defaultTable = "window_metrics"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// RunInfo describes one aggregation run stored in ClickHouse.
type RunInfo struct {
	RunID      string    `json:"run_id"`
	Sources    []string  `json:"sources"`
	Windows    uint64    `json:"windows"`
	Delta      float64   `json:"delta"`
	InsertedAt time.Time `json:"inserted_at"`
}

// WindowRow is one stored window of one source.
type WindowRow struct {
	Source string
	Delta  float64
	Window model.AggregateWindow
}

// Querier defines the interface for reading stored window series.
type Querier interface {
	Runs(ctx context.Context, limit int) ([]RunInfo, error)
	Windows(ctx context.Context, runID string) ([]WindowRow, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn  clickhouse.Conn
	table string
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, &model.ConfigurationError{Param: "clickhouse.table", Reason: fmt.Sprintf("invalid table name %q", table)}
	}
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn, table: table}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Runs lists the most recent runs, newest first.
func (q *clickhouseQuerier) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`
		SELECT
			RunID,
			groupUniqArray(Source) AS Sources,
			count() AS Windows,
			any(Delta) AS Delta,
			max(InsertedAt) AS LastInsert
		FROM %s
		GROUP BY RunID
		ORDER BY LastInsert DESC
		LIMIT ?
	`, q.table)

	rows, err := q.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var run RunInfo
		if err := rows.Scan(&run.RunID, &run.Sources, &run.Windows, &run.Delta, &run.InsertedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sort.Strings(run.Sources)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Windows returns every stored window of a run, ordered by source and index.
func (q *clickhouseQuerier) Windows(ctx context.Context, runID string) ([]WindowRow, error) {
	query := fmt.Sprintf(`
		SELECT
			Source, Delta, WindowIndex, WindowStart,
			PacketCount, ByteCount, UniqueSrcCount,
			SynCount, AckCount, RstCount, FinCount,
			UniqueDstCount, TcpCount, UdpCount, IcmpCount, OtherCount,
			SrcEntropy, DstEntropy
		FROM %s
		WHERE RunID = ?
		ORDER BY Source, WindowIndex
	`, q.table)

	rows, err := q.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var result []WindowRow
	for rows.Next() {
		var r WindowRow
		w := &r.Window
		if err := rows.Scan(&r.Source, &r.Delta, &w.Index, &w.WindowStart,
			&w.PacketCount, &w.ByteCount, &w.UniqueSrcCount,
			&w.SYNCount, &w.ACKCount, &w.RSTCount, &w.FINCount,
			&w.UniqueDstCount, &w.TCPCount, &w.UDPCount, &w.ICMPCount, &w.OtherCount,
			&w.SrcEntropy, &w.DstEntropy); err != nil {
			return nil, fmt.Errorf("failed to scan window: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Series groups stored windows into one series per source, sorted by source name and
// window index.
func Series(rows []WindowRow) []model.AggregateSeries {
	bySource := make(map[string]*model.AggregateSeries)
	var names []string
	for _, r := range rows {
		s, ok := bySource[r.Source]
		if !ok {
			s = &model.AggregateSeries{Source: r.Source, Delta: r.Delta}
			bySource[r.Source] = s
			names = append(names, r.Source)
		}
		s.Windows = append(s.Windows, r.Window)
	}
	sort.Strings(names)

	series := make([]model.AggregateSeries, 0, len(names))
	for _, name := range names {
		s := bySource[name]
		sort.Slice(s.Windows, func(i, j int) bool { return s.Windows[i].Index < s.Windows[j].Index })
		series = append(series, *s)
	}
	return series
}

// LoadTable rebuilds the multivariate table of a stored run.
func LoadTable(ctx context.Context, q Querier, runID string, extended bool) (*model.MultivariateTable, error) {
	rows, err := q.Windows(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &model.ConfigurationError{Param: "run_id", Reason: fmt.Sprintf("no windows stored for run '%s'", runID)}
	}
	return merger.MergeWith(merger.Options{Extended: extended}, Series(rows)...)
}
