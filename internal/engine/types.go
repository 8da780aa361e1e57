package engine

import (
	"fmt"
	"time"

	"db-migrate/internal/database"
	"db-migrate/internal/dialect"
)

// ErrorPolicy decides what happens to a table's remaining batches after one
// of its batches fails. Other tables are never affected.
type ErrorPolicy int

const (
	Abort ErrorPolicy = iota
	Continue
)

func (p ErrorPolicy) String() string {
	if p == Continue {
		return "continue"
	}
	return "abort"
}

type Pagination string

const (
	Keyset Pagination = "keyset"
	Offset Pagination = "offset"
)

// Progress is reported after every batch that was written.
type Progress struct {
	Table                  string
	Current                int64
	Total                  int64
	Percentage             float64
	EstimatedTimeRemaining time.Duration
}

// ProgressFunc receives progress updates. In parallel mode it is called from
// several goroutines at once.
type ProgressFunc func(Progress)

type Options struct {
	BatchSize       int
	Parallel        bool
	ParallelWorkers int
	ErrorPolicy     ErrorPolicy
	OnProgress      ProgressFunc
}

const DefaultBatchSize = 1000

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

type MigrationError struct {
	Table   string
	Message string
	Err     error
	Fatal   bool
}

func (e MigrationError) Error() string {
	msg := e.Message
	if e.Table != "" {
		msg = e.Table + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e MigrationError) Unwrap() error { return e.Err }

type DataMigrationResult struct {
	TableName    string
	RowsMigrated int64
	Batches      int
	Duration     time.Duration
	Pagination   Pagination
	Errors       []MigrationError
}

// Side is one end of a transfer.
type Side struct {
	Conn    database.Conn
	Dialect dialect.Dialect
}
