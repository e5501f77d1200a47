package buffer

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type poolMetrics struct {
	hits         metric.Int64Counter
	misses       metric.Int64Counter
	evictions    metric.Int64Counter
	pinTimeouts  metric.Int64Counter
	pagesFlushed metric.Int64Counter
}

func newPoolMetrics(meter metric.Meter, available func() int) (*poolMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("simpledb/buffer")
	}

	var err error
	m := &poolMetrics{}
	if m.hits, err = meter.Int64Counter("simpledb.buffer.hits",
		metric.WithDescription("Pins served by a block already in the pool")); err != nil {
		return nil, err
	}
	if m.misses, err = meter.Int64Counter("simpledb.buffer.misses",
		metric.WithDescription("Pins that had to read the block from disk")); err != nil {
		return nil, err
	}
	if m.evictions, err = meter.Int64Counter("simpledb.buffer.evictions",
		metric.WithDescription("Blocks replaced in the pool")); err != nil {
		return nil, err
	}
	if m.pinTimeouts, err = meter.Int64Counter("simpledb.buffer.pin_timeouts",
		metric.WithDescription("Pins that gave up waiting for a free buffer")); err != nil {
		return nil, err
	}
	if m.pagesFlushed, err = meter.Int64Counter("simpledb.buffer.pages_flushed",
		metric.WithDescription("Dirty pages written back to disk")); err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge("simpledb.buffer.available",
		metric.WithDescription("Buffers that are not pinned"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(available()))
			return nil
		}))
	if err != nil {
		return nil, err
	}

	return m, nil
}
