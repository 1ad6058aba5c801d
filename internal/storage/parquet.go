package storage

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

type cycleRow struct {
	Run             int64  `parquet:"name=run, type=INT64"`
	Timestamp       int64  `parquet:"name=timestamp, type=INT64"`
	PriceA          string `parquet:"name=price_a, type=BYTE_ARRAY, convertedtype=UTF8"`
	PriceB          string `parquet:"name=price_b, type=BYTE_ARRAY, convertedtype=UTF8"`
	DiffRate        string `parquet:"name=diff_rate, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyVenue        string `parquet:"name=buy_venue, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Decision        string `parquet:"name=decision, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	SecondaryAmount string `parquet:"name=secondary_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	MaxSpend        string `parquet:"name=max_spend, type=BYTE_ARRAY, convertedtype=UTF8"`
	MinReturn       string `parquet:"name=min_return, type=BYTE_ARRAY, convertedtype=UTF8"`
	Profit          string `parquet:"name=profit, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyOK           bool   `parquet:"name=buy_ok, type=BOOLEAN"`
	SellOK          bool   `parquet:"name=sell_ok, type=BOOLEAN"`
	PostPriceA      string `parquet:"name=post_price_a, type=BYTE_ARRAY, convertedtype=UTF8"`
	PostPriceB      string `parquet:"name=post_price_b, type=BYTE_ARRAY, convertedtype=UTF8"`
	Error           string `parquet:"name=error, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toRow(c Cycle) cycleRow {
	return cycleRow{
		Run: int64(c.Run), Timestamp: c.Timestamp,
		PriceA: c.PriceA, PriceB: c.PriceB, DiffRate: c.DiffRate,
		BuyVenue: c.BuyVenue, Decision: string(c.Decision),
		SecondaryAmount: c.SecondaryAmount, MaxSpend: c.MaxSpend, MinReturn: c.MinReturn, Profit: c.Profit,
		BuyOK: c.BuyOK, SellOK: c.SellOK,
		PostPriceA: c.PostPriceA, PostPriceB: c.PostPriceB, Error: c.Error,
	}
}

func fromRow(r cycleRow) Cycle {
	return Cycle{
		Run: int(r.Run), Timestamp: r.Timestamp,
		PriceA: r.PriceA, PriceB: r.PriceB, DiffRate: r.DiffRate,
		BuyVenue: r.BuyVenue, Decision: Decision(r.Decision),
		SecondaryAmount: r.SecondaryAmount, MaxSpend: r.MaxSpend, MinReturn: r.MinReturn, Profit: r.Profit,
		BuyOK: r.BuyOK, SellOK: r.SellOK,
		PostPriceA: r.PostPriceA, PostPriceB: r.PostPriceB, Error: r.Error,
	}
}

// ExportParquet writes cycles to a snappy-compressed Parquet file.
func ExportParquet(path string, cycles []Cycle) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(cycleRow), 4)
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, c := range cycles {
		if err := pw.Write(toRow(c)); err != nil {
			return fmt.Errorf("write cycle %d: %w", c.Run, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet: %w", err)
	}
	return nil
}

// ReadParquet loads a file written by ExportParquet.
func ReadParquet(path string) ([]Cycle, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(cycleRow), 4)
	if err != nil {
		return nil, fmt.Errorf("parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]cycleRow, int(pr.GetNumRows()))
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	cycles := make([]Cycle, 0, len(rows))
	for _, r := range rows {
		cycles = append(cycles, fromRow(r))
	}
	return cycles, nil
}
