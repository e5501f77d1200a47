package wal

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type logMetrics struct {
	recordsAppended metric.Int64Counter
	bytesAppended   metric.Int64Counter
	pagesFlushed    metric.Int64Counter
}

func newLogMetrics(meter metric.Meter) (*logMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("simpledb/wal")
	}

	records, err := meter.Int64Counter("simpledb.wal.records_appended",
		metric.WithDescription("Number of log records appended"), metric.WithUnit("{record}"))
	if err != nil {
		return nil, err
	}
	bytes, err := meter.Int64Counter("simpledb.wal.bytes_appended",
		metric.WithDescription("Payload bytes of appended log records"), metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	flushed, err := meter.Int64Counter("simpledb.wal.pages_flushed",
		metric.WithDescription("Number of log page writes"), metric.WithUnit("{page}"))
	if err != nil {
		return nil, err
	}

	return &logMetrics{recordsAppended: records, bytesAppended: bytes, pagesFlushed: flushed}, nil
}
