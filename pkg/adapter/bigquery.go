package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
)

// JournalEntry is one question/answer cycle of a session
type JournalEntry struct {
	SessionID  string    `bigquery:"session_id"`
	Collection string    `bigquery:"collection"`
	Question   string    `bigquery:"question"`
	Answer     string    `bigquery:"answer"`
	Source     string    `bigquery:"source"`
	MemoryID   string    `bigquery:"memory_id"`
	Stored     bool      `bigquery:"stored"`
	Error      string    `bigquery:"error"`
	CreatedAt  time.Time `bigquery:"created_at"`
}

// Journal records session cycles
type Journal interface {
	Record(ctx context.Context, entries ...*JournalEntry) error
}

type bigqueryJournal struct {
	client    *bigquery.Client
	datasetID string
	tableID   string
}

// NewBigQueryJournal creates a journal that streams rows into a BigQuery table.
// The table must exist with columns matching JournalEntry.
func NewBigQueryJournal(ctx context.Context, projectID, datasetID, tableID string) (Journal, error) {
	if projectID == "" || datasetID == "" || tableID == "" {
		return nil, goerr.New("journal project, dataset and table are required",
			goerr.V("project", projectID),
			goerr.V("dataset", datasetID),
			goerr.V("table", tableID),
		)
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	return &bigqueryJournal{
		client:    client,
		datasetID: datasetID,
		tableID:   tableID,
	}, nil
}

func (j *bigqueryJournal) Record(ctx context.Context, entries ...*JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	inserter := j.client.Dataset(j.datasetID).Table(j.tableID).Inserter()
	if err := inserter.Put(ctx, entries); err != nil {
		return goerr.Wrap(err, "failed to insert journal rows",
			goerr.V("dataset", j.datasetID),
			goerr.V("table", j.tableID),
			goerr.V("rows", len(entries)),
		)
	}
	return nil
}

// NopJournal drops every entry
type NopJournal struct{}

func (NopJournal) Record(ctx context.Context, entries ...*JournalEntry) error { return nil }
