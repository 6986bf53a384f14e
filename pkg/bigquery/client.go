// Package bigquery appends rows to the reporting dataset the cron worker
// writes dashboard snapshots into.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/gcp"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errNotInitialized = errors.New("bigquery client not initialized")
	errTableRequired  = errors.New("bigquery table name is required")
)

// KeyedRow is implemented by rows that carry their own insert id, letting
// BigQuery drop duplicates when a retried insert had already landed.
type KeyedRow interface {
	InsertID() string
}

type Client struct {
	bq        *bigquery.Client
	dataset   *bigquery.Dataset
	snapshots string
}

// NewClient dials BigQuery and checks the dataset and snapshot table exist.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project, err := gcp.ProjectID(gcpCfg)
	if err != nil {
		return nil, err
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errors.New("bigquery dataset is required")
	}
	snapshots := strings.TrimSpace(cfg.SnapshotsTable)
	if snapshots == "" {
		return nil, errTableRequired
	}

	bq, err := bigquery.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(datasetID), snapshots: snapshots}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"table":   snapshots,
		}), "bigquery client ready")
	}
	return c, nil
}

// Ping reads dataset and snapshot table metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return missing("dataset", c.dataset.DatasetID, err)
	}
	if _, err := c.dataset.Table(c.snapshots).Metadata(ctx); err != nil {
		return missing("table", c.snapshots, err)
	}
	return nil
}

func missing(kind, name string, err error) error {
	if gcp.IsNotFound(err) {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// InsertRows streams rows into table. Struct rows implementing KeyedRow are
// sent with their insert id.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, savers(rows))
}

func savers(rows []any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		if keyed, ok := row.(KeyedRow); ok {
			out[i] = &bigquery.StructSaver{Struct: row, InsertID: keyed.InsertID()}
			continue
		}
		out[i] = row
	}
	return out
}

func (c *Client) SnapshotsTable() string {
	if c == nil {
		return ""
	}
	return c.snapshots
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}
