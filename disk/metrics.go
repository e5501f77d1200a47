package disk

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type fileMetrics struct {
	blocksRead     metric.Int64Counter
	blocksWritten  metric.Int64Counter
	blocksAppended metric.Int64Counter
}

func newFileMetrics(meter metric.Meter) (*fileMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("simpledb/disk")
	}

	read, err := meter.Int64Counter("simpledb.disk.blocks_read",
		metric.WithDescription("Number of blocks read from disk"), metric.WithUnit("{block}"))
	if err != nil {
		return nil, err
	}
	written, err := meter.Int64Counter("simpledb.disk.blocks_written",
		metric.WithDescription("Number of blocks written to disk"), metric.WithUnit("{block}"))
	if err != nil {
		return nil, err
	}
	appended, err := meter.Int64Counter("simpledb.disk.blocks_appended",
		metric.WithDescription("Number of blocks appended to files"), metric.WithUnit("{block}"))
	if err != nil {
		return nil, err
	}

	return &fileMetrics{blocksRead: read, blocksWritten: written, blocksAppended: appended}, nil
}
