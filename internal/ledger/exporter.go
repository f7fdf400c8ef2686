// Package ledger exports settled partner earnings as parquet files for finance.
package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/cloudwriter"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/pricing"
)

// EarningRow is the parquet layout of an EarningRecord. Timestamps are unix millis.
type EarningRow struct {
	ID          string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PartnerID   string  `parquet:"name=partner_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	OrderID     string  `parquet:"name=order_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	GrossAmount float64 `parquet:"name=gross_amount, type=DOUBLE"`
	PlatformFee float64 `parquet:"name=platform_fee, type=DOUBLE"`
	NetAmount   float64 `parquet:"name=net_amount, type=DOUBLE"`
	Status      string  `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CreatedAt   int64   `parquet:"name=created_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	CompletedAt int64   `parquet:"name=completed_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

func NewEarningRow(record *models.EarningRecord) EarningRow {
	return EarningRow{
		ID:          record.ID,
		PartnerID:   record.PartnerID,
		OrderID:     record.OrderID,
		GrossAmount: record.GrossAmount,
		PlatformFee: record.PlatformFee,
		NetAmount:   record.NetAmount,
		Status:      record.Status,
		CreatedAt:   record.CreatedAt.UnixMilli(),
		CompletedAt: record.CompletedAt.UnixMilli(),
	}
}

// Source lists earnings completed in [from, to).
type Source interface {
	ListCompletedBetween(ctx context.Context, from, to time.Time) ([]*models.EarningRecord, error)
}

type Summary struct {
	Records     int
	Location    string
	GrossAmount float64
	PlatformFee float64
	NetAmount   float64
}

type Exporter struct {
	source   Source
	basePath string
	folder   string
	bucket   string
	factory  cloudwriter.CloudWriterFactory
}

// NewExporter writes under basePath/folder on the local disk, or to bucket/folder when a
// cloud writer factory is set.
func NewExporter(source Source, config models.ExportConfig, factory cloudwriter.CloudWriterFactory) *Exporter {
	return &Exporter{
		source:   source,
		basePath: config.Path,
		folder:   config.Folder,
		bucket:   config.Bucket,
		factory:  factory,
	}
}

// Export writes one parquet file with every earning completed in [from, to).
// The file is partitioned by the day of from.
func (e *Exporter) Export(ctx context.Context, from, to time.Time) (Summary, error) {
	var summary Summary

	records, err := e.source.ListCompletedBetween(ctx, from, to)
	if err != nil {
		return summary, fmt.Errorf("list earnings: %w", err)
	}

	fw, location, err := e.open(ctx, from)
	if err != nil {
		return summary, err
	}
	summary.Location = location

	pw, err := writer.NewParquetWriter(fw, new(EarningRow), 4)
	if err != nil {
		fw.Close()
		return summary, fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		if err := pw.Write(NewEarningRow(record)); err != nil {
			fw.Close()
			return summary, fmt.Errorf("failed to write earning %s: %w", record.ID, err)
		}
		summary.Records++
		summary.GrossAmount = pricing.RoundMoney(summary.GrossAmount + record.GrossAmount)
		summary.PlatformFee = pricing.RoundMoney(summary.PlatformFee + record.PlatformFee)
		summary.NetAmount = pricing.RoundMoney(summary.NetAmount + record.NetAmount)
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return summary, fmt.Errorf("failed to finish parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return summary, fmt.Errorf("failed to close %s: %w", location, err)
	}

	zap.L().Info("earnings exported",
		zap.String("location", location),
		zap.Int("records", summary.Records),
		zap.Float64("net_amount", summary.NetAmount))
	return summary, nil
}

func (e *Exporter) open(ctx context.Context, from time.Time) (source.ParquetFile, string, error) {
	year, month, day := from.UTC().Date()
	partitionPath := fmt.Sprintf("year=%d/month=%02d/day=%02d", year, month, day)
	fileName := fmt.Sprintf("earnings-%d.parquet", from.Unix())

	if e.factory != nil {
		objectPath := filepath.ToSlash(filepath.Join(e.folder, partitionPath, fileName))
		cloudWriter, err := e.factory.NewWriter(ctx, e.bucket, objectPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		return cloudwriter.NewParquetFile(cloudWriter), fmt.Sprintf("s3://%s/%s", e.bucket, objectPath), nil
	}

	fullPath := filepath.Join(e.basePath, e.folder, partitionPath)
	if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
		return nil, "", err
	}
	filePath := filepath.Join(fullPath, fileName)
	fw, err := local.NewLocalFileWriter(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create local file writer: %w", err)
	}
	return fw, filePath, nil
}
