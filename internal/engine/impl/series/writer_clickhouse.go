package series

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const defaultTable = "window_metrics"

const createTableStatement = `
CREATE TABLE IF NOT EXISTS %s (
    RunID          String,
    Source         String,
    WindowIndex    Int64,
    WindowStart    Float64,
    Delta          Float64,
    PacketCount    UInt64,
    ByteCount      UInt64,
    UniqueSrcCount UInt64,
    SynCount       UInt64,
    AckCount       UInt64,
    RstCount       UInt64,
    FinCount       UInt64,
    UniqueDstCount UInt64,
    TcpCount       UInt64,
    UdpCount       UInt64,
    IcmpCount      UInt64,
    OtherCount     UInt64,
    SrcEntropy     Float64,
    DstEntropy     Float64,
    InsertedAt     DateTime
) ENGINE = MergeTree()
ORDER BY (RunID, Source, WindowIndex);
`

// ClickHouseWriter inserts every window of every series into ClickHouse. Write only
// fills the batch; Commit sends it once the rest of the stage has succeeded.
type ClickHouseWriter struct {
	conn   driver.Conn
	table  string
	logger *zap.Logger

	batch driver.Batch
	rows  int
	runID string
}

// NewClickHouseWriter connects and ensures the table exists.
func NewClickHouseWriter(_ *config.Config, def config.WriterDef, _ *fsutil.Txn, logger *zap.Logger) (model.Writer, error) {
	conn, err := connect(def.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	table := def.ClickHouse.Table
	if table == "" {
		table = defaultTable
	}
	if err := conn.Exec(context.Background(), fmt.Sprintf(createTableStatement, table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	logger.Info("Connected to ClickHouse", zap.String("table", table))
	return &ClickHouseWriter{conn: conn, table: table, logger: logger}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
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

// Kind returns the registry name.
func (w *ClickHouseWriter) Kind() string { return "clickhouse" }

// Close aborts a batch that was never committed and closes the connection.
func (w *ClickHouseWriter) Close() error {
	if w.batch != nil {
		w.batch.Abort()
		w.batch = nil
	}
	return w.conn.Close()
}

// Write expects a *model.AggregationResult. The rows are held until Commit.
func (w *ClickHouseWriter) Write(payload interface{}) error {
	res, ok := payload.(*model.AggregationResult)
	if !ok {
		return fmt.Errorf("invalid payload type for ClickHouseWriter: expected *model.AggregationResult, got %T", payload)
	}
	if w.batch != nil {
		w.batch.Abort()
		w.batch = nil
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO "+w.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now().UTC()
	rows := 0
	for _, s := range res.Series {
		for _, win := range s.Windows {
			rows++
			err = batch.Append(
				res.RunID, s.Source, win.Index, win.WindowStart, s.Delta,
				win.PacketCount, win.ByteCount, win.UniqueSrcCount,
				win.SYNCount, win.ACKCount, win.RSTCount, win.FINCount,
				win.UniqueDstCount, win.TCPCount, win.UDPCount, win.ICMPCount, win.OtherCount,
				win.SrcEntropy, win.DstEntropy, now,
			)
			if err != nil {
				batch.Abort()
				return fmt.Errorf("failed to append window to batch: %w", err)
			}
		}
	}
	if rows == 0 {
		batch.Abort()
		return nil
	}
	w.batch, w.rows, w.runID = batch, rows, res.RunID
	return nil
}

// Commit sends the batch filled by Write.
func (w *ClickHouseWriter) Commit() error {
	if w.batch == nil {
		return nil
	}
	batch := w.batch
	w.batch = nil
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	w.logger.Info("Wrote windows to ClickHouse", zap.Int("rows", w.rows), zap.String("run_id", w.runID))
	return nil
}
