package mongodb

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/mongosink/document"
	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/pkg/retry"
	"github.com/c360/mongosink/row"
)

// writeRow runs one decoded row through the builder and hands the artifacts
// to the collection per the configured strategy. Rows whose relevant cells
// are all null produce no document and are skipped silently.
func (o *Output) writeRow(ctx context.Context, meta *row.Meta, r row.Row) error {
	switch o.config.Strategy {
	case StrategyInsert:
		return o.writeInsert(ctx, meta, r)
	case StrategyUpsert:
		return o.writeReplace(ctx, meta, r)
	case StrategyMultiUpdate, StrategyModifierUpdate:
		return o.writeModifier(ctx, meta, r)
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "writeRow", "strategy check")
	}
}

// writeInsert buffers the full document for batched insertion.
func (o *Output) writeInsert(ctx context.Context, meta *row.Meta, r row.Row) error {
	doc, err := o.builder.Document(meta, r)
	if err != nil {
		return err
	}
	if doc == nil {
		o.skipRow()
		return nil
	}

	o.bufferMu.Lock()
	o.buffer = append(o.buffer, document.ToBSON(doc))
	shouldFlush := len(o.buffer) >= o.batchSize()
	o.bufferMu.Unlock()

	if shouldFlush {
		o.flush(ctx)
	}
	return nil
}

// writeReplace performs a full-document update/upsert. The replacement is
// built from the non-match mappings only; on an upsert-created document the
// server merges the query's equality fields into the new document, which is
// what carries the match values over.
func (o *Output) writeReplace(ctx context.Context, meta *row.Meta, r row.Row) error {
	query, err := o.builder.Query(meta, r)
	if err != nil {
		return err
	}
	if query == nil {
		o.skipRow()
		return nil
	}

	doc, err := o.builder.Document(meta, r)
	if err != nil {
		return err
	}
	if doc == nil {
		o.skipRow()
		return nil
	}

	upsert := o.config.Upsert || o.config.Strategy == StrategyUpsert
	err = o.withRetry(ctx, func() error {
		return o.collection.Replace(ctx, query.BSON(), document.ToBSON(doc), upsert)
	})
	if err != nil {
		return err
	}

	o.countRow()
	return nil
}

// writeModifier performs a modifier update. Match fields stay out of the
// update document; the builder consults the collection's existence probe for
// apply-policies.
func (o *Output) writeModifier(ctx context.Context, meta *row.Meta, r row.Row) error {
	query, err := o.builder.Query(meta, r)
	if err != nil {
		return err
	}
	if query == nil {
		o.skipRow()
		return nil
	}

	update, err := o.builder.ModifierUpdate(ctx, meta, r, o.collection)
	if err != nil {
		return err
	}
	if update == nil {
		o.skipRow()
		return nil
	}

	multi := o.config.Strategy == StrategyMultiUpdate
	err = o.withRetry(ctx, func() error {
		return o.collection.UpdateModifier(ctx, query.BSON(), update.BSON(), o.config.Upsert, multi)
	})
	if err != nil {
		return err
	}

	o.countRow()
	return nil
}

// flushLoop periodically flushes buffered inserts
func (o *Output) flushLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-o.shutdown:
			return
		case <-ticker.C:
			o.flush(ctx)
		}
	}
}

// flush writes buffered insert documents in one batch
func (o *Output) flush(ctx context.Context) {
	o.bufferMu.Lock()
	if len(o.buffer) == 0 {
		o.bufferMu.Unlock()
		return
	}
	docs := o.buffer
	o.buffer = make([]any, 0, o.batchSize())
	o.bufferMu.Unlock()

	if o.collection == nil {
		atomic.AddInt64(&o.writeErrors, int64(len(docs)))
		o.logger.Error("no collection handle during flush", "documents_lost", len(docs))
		return
	}

	batchID := uuid.NewString()
	err := o.withRetry(ctx, func() error {
		return o.collection.InsertMany(ctx, docs)
	})
	if err != nil {
		atomic.AddInt64(&o.writeErrors, int64(len(docs)))
		if o.errorsMetric != nil {
			o.errorsMetric.Inc()
		}
		o.logger.Error("batch insert failed",
			"batch_id", batchID,
			"documents", len(docs),
			"error", err)
		return
	}

	atomic.AddInt64(&o.rowsWritten, int64(len(docs)))
	if o.writtenMetric != nil {
		o.writtenMetric.Add(float64(len(docs)))
	}
	o.logger.Debug("batch insert completed",
		"batch_id", batchID,
		"documents", len(docs))
}

// withRetry retries transient write failures; invalid rows fail immediately.
func (o *Output) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, o.retryCfg.ToRetryConfig(), func() error {
		err := fn()
		if err != nil && errors.IsInvalid(err) {
			return retry.NonRetryable(err)
		}
		return err
	})
}

// batchSize returns the configured batch size with a sane floor.
func (o *Output) batchSize() int {
	if o.config.BatchSize <= 0 {
		return 1
	}
	return o.config.BatchSize
}

func (o *Output) countRow() {
	atomic.AddInt64(&o.rowsWritten, 1)
	if o.writtenMetric != nil {
		o.writtenMetric.Inc()
	}
}

func (o *Output) skipRow() {
	atomic.AddInt64(&o.rowsSkipped, 1)
	if o.skippedMetric != nil {
		o.skippedMetric.Inc()
	}
}
