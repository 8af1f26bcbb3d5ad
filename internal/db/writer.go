package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tankwatch/tankwatch/pkg/logging"
	"github.com/tankwatch/tankwatch/pkg/telemetry"
)

// WriteMode selects the batch write strategy
type WriteMode string

const (
	// ModeAppend bulk-inserts all rows in one transaction
	ModeAppend WriteMode = "append"
	// ModeReplace deletes all existing rows, then appends
	ModeReplace WriteMode = "replace"
	// ModeUpsert inserts with ON CONFLICT DO UPDATE over the conflict keys
	ModeUpsert WriteMode = "upsert"

	batchSize = 500
)

var (
	// ErrUnknownWriteMode indicates a write mode outside append/replace/upsert
	ErrUnknownWriteMode = fmt.Errorf("unknown write mode")
	// ErrMissingConflictKeys indicates an upsert without conflict keys
	ErrMissingConflictKeys = fmt.Errorf("conflict keys are required for upsert")
)

// tableColumns maps each persisted table to its insert column set, in
// statement order. processing_timestamp is excluded: it is never supplied by
// callers, only refreshed by the upsert clause or left to its column default.
var tableColumns = map[string][]string{
	"posts": {
		"id", "title", "author", "flair", "selftext",
		"subreddit", "score", "num_comments", "created_utc",
	},
	"comments": {
		"id", "post_id", "parent_id", "body", "author", "score", "created_utc",
	},
	"posts_ai_analysis": {
		"id", "title", "author", "flair", "selftext",
		"category", "reasoning", "created_utc", "embedding",
	},
}

// Writer owns the batch write path for all persisted tables. It is the sole
// writer of posts, comments and posts_ai_analysis rows.
type Writer struct {
	db     *DB
	logger *zap.Logger
}

// NewWriter creates a new batch writer
func NewWriter(database *DB) *Writer {
	return &Writer{
		db:     database,
		logger: logging.GetLogger().With(zap.String("component", "db-writer")),
	}
}

// Write persists a complete batch of rows to the named table. rows must be a
// slice of the table's model type. An upsert requires conflictKeys; on
// conflict every non-key column is set to the incoming value and
// processing_timestamp is refreshed unconditionally. Failures roll back the
// transaction and propagate to the caller.
func (w *Writer) Write(ctx context.Context, table string, rows interface{}, mode WriteMode, conflictKeys []string) error {
	ctx, span := telemetry.StartSpan(ctx, "db.write")
	defer span.End()

	columns, ok := tableColumns[table]
	if !ok {
		return fmt.Errorf("no column mapping for table %q", table)
	}

	switch mode {
	case ModeAppend:
		// handled below
	case ModeReplace:
		// The delete is committed on its own before the append, matching
		// replace-then-append semantics.
		if err := w.db.DB.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
		mode = ModeAppend
	case ModeUpsert:
		if len(conflictKeys) == 0 {
			return ErrMissingConflictKeys
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownWriteMode, mode)
	}

	err := w.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmt := tx.Table(table)
		if mode == ModeUpsert {
			stmt = stmt.Clauses(clause.OnConflict{
				Columns:   conflictColumns(conflictKeys),
				DoUpdates: upsertAssignments(columns, conflictKeys),
			})
		}
		return stmt.CreateInBatches(rows, batchSize).Error
	})
	if err != nil {
		w.logger.Error("Batch write failed",
			zap.String("table", table),
			zap.String("mode", string(mode)),
			zap.Error(err))
		return fmt.Errorf("failed to %s rows into %s: %w", mode, table, err)
	}

	w.logger.Info("Batch write complete",
		zap.String("table", table),
		zap.String("mode", string(mode)))
	return nil
}

func conflictColumns(keys []string) []clause.Column {
	cols := make([]clause.Column, len(keys))
	for i, k := range keys {
		cols[i] = clause.Column{Name: k}
	}
	return cols
}

// upsertAssignments builds the DO UPDATE SET list: every non-key column takes
// the incoming (EXCLUDED) value, and processing_timestamp is always refreshed
// so the row records when its last successful (re)write happened.
func upsertAssignments(columns, conflictKeys []string) clause.Set {
	keySet := make(map[string]struct{}, len(conflictKeys))
	for _, k := range conflictKeys {
		keySet[k] = struct{}{}
	}

	var set clause.Set
	for _, col := range columns {
		if _, isKey := keySet[col]; isKey {
			continue
		}
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr("EXCLUDED." + col),
		})
	}
	set = append(set, clause.Assignment{
		Column: clause.Column{Name: "processing_timestamp"},
		Value:  gorm.Expr("NOW()"),
	})
	return set
}
