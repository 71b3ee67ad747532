package telemetry

import (
	"errors"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterDBTracing installs the otelgorm plugin so every query becomes a
// child span of the service span that issued it. Query variables are never
// recorded. It is a no-op when disabled.
func RegisterDBTracing(db *gorm.DB, enabled bool, dbName string, logger *zap.Logger) error {
	if !enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}

	if err := db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(dbName),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return err
	}

	// Lost version races show up as zero affected rows, so record it on the span.
	annotate := func(tx *gorm.DB) {
		span := trace.SpanFromContext(tx.Statement.Context)
		if !span.IsRecording() {
			return
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
		if tx.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
		}
		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, tx.Error.Error())
		}
	}
	if err := db.Callback().Update().After("gorm:update").Register("stocksync:annotate_update", annotate); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("stocksync:annotate_create", annotate); err != nil {
		return err
	}

	logger.Info("Database tracing enabled", zap.String("db_name", dbName))
	return nil
}
