package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/farm-monitor/internal/config"
	"github.com/iliyamo/farm-monitor/internal/database"
	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// Kind names the type of data a sheet carries.
type Kind string

const (
	KindWeather     Kind = "weather"
	KindSoil        Kind = "soil"
	KindInformation Kind = "information"
)

// ErrInvalidRows is returned by the atomic policy when validation found at
// least one bad row.  Report.Errors lists them all.
var ErrInvalidRows = errors.New("invalid rows")

// Report summarises one import.  Rows counts the data rows that were
// committed; Records counts the stored records (four per soil row).
type Report struct {
	Kind     Kind          `json:"kind"`
	Rows     int           `json:"rows"`
	Records  int           `json:"records"`
	Errors   []RowError    `json:"errors,omitempty"`
	Duration time.Duration `json:"-"`
}

// WeatherWriter and SoilWriter insert through an explicit handle so the
// importer decides where each transaction begins and ends.
type WeatherWriter interface {
	Insert(ctx context.Context, db database.DBTX, w model.Weather) error
}

type SoilWriter interface {
	Insert(ctx context.Context, db database.DBTX, s model.Soil) error
}

// Importer runs the tabular import pipeline.
type Importer struct {
	DB      *sql.DB
	Weather WeatherWriter
	Soil    SoilWriter
	Policy  string
	Log     logging.Logger
}

// ImportWeather loads a weather sheet for one region.
func (im *Importer) ImportWeather(ctx context.Context, path string, regionID uint64) (Report, error) {
	s, err := ReadSheet(path)
	if err != nil {
		return Report{Kind: KindWeather}, err
	}
	mapRow, err := weatherMapper(s, regionID)
	if err != nil {
		return Report{Kind: KindWeather}, err
	}
	return run(ctx, im, KindWeather, s, mapRow, im.Weather.Insert)
}

// ImportSoil loads a soil sheet; every row yields one record per probe.
func (im *Importer) ImportSoil(ctx context.Context, path string) (Report, error) {
	s, err := ReadSheet(path)
	if err != nil {
		return Report{Kind: KindSoil}, err
	}
	mapRow, err := soilMapper(s)
	if err != nil {
		return Report{Kind: KindSoil}, err
	}
	return run(ctx, im, KindSoil, s, mapRow, im.Soil.Insert)
}

type insertFunc[T any] func(ctx context.Context, db database.DBTX, rec T) error

func run[T any](ctx context.Context, im *Importer, kind Kind, s *Sheet,
	mapRow func(row []string, line int) ([]T, error), insert insertFunc[T]) (Report, error) {
	start := time.Now()
	var (
		rep Report
		err error
	)
	if im.Policy == config.PolicyAtomic {
		rep, err = runAtomic(ctx, im.DB, s, mapRow, insert)
	} else {
		rep, err = runPerRow(ctx, im.DB, s, mapRow, insert)
	}
	rep.Kind = kind
	rep.Duration = time.Since(start)

	log := im.logger()
	if err != nil {
		log.Warn(ctx, "import aborted", "kind", kind, "rows", rep.Rows, "records", rep.Records, "err", err)
		return rep, err
	}
	log.Info(ctx, "import finished", "kind", kind, "rows", rep.Rows, "records", rep.Records, "took", rep.Duration)
	return rep, nil
}

// runPerRow commits every row in its own transaction.  The first failure
// stops the batch; rows committed before it stay.
func runPerRow[T any](ctx context.Context, db *sql.DB, s *Sheet,
	mapRow func(row []string, line int) ([]T, error), insert insertFunc[T]) (Report, error) {
	var rep Report
	for i, row := range s.Rows {
		line := i + 2
		recs, err := mapRow(row, line)
		if err != nil {
			return fail(rep, line, err)
		}
		err = database.WithTx(ctx, db, func(ctx context.Context, tx database.DBTX) error {
			for _, r := range recs {
				if err := insert(ctx, tx, r); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fail(rep, line, err)
		}
		rep.Rows++
		rep.Records += len(recs)
	}
	return rep, nil
}

// runAtomic validates every row first and only writes when all of them
// parsed, inside a single transaction.
func runAtomic[T any](ctx context.Context, db *sql.DB, s *Sheet,
	mapRow func(row []string, line int) ([]T, error), insert insertFunc[T]) (Report, error) {
	var (
		rep  Report
		all  []T
		rows int
	)
	for i, row := range s.Rows {
		recs, err := mapRow(row, i+2)
		if err != nil {
			rep.Errors = append(rep.Errors, asRowError(i+2, err))
			continue
		}
		all = append(all, recs...)
		rows++
	}
	if len(rep.Errors) > 0 {
		return rep, fmt.Errorf("%w: %d of %d rows", ErrInvalidRows, len(rep.Errors), len(s.Rows))
	}
	err := database.WithTx(ctx, db, func(ctx context.Context, tx database.DBTX) error {
		for _, r := range all {
			if err := insert(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return rep, err
	}
	rep.Rows, rep.Records = rows, len(all)
	return rep, nil
}

func fail(rep Report, line int, err error) (Report, error) {
	re := asRowError(line, err)
	rep.Errors = append(rep.Errors, re)
	return rep, re
}

func asRowError(line int, err error) RowError {
	var re RowError
	if errors.As(err, &re) {
		return re
	}
	return RowError{Row: line, Err: err}
}

func (im *Importer) logger() logging.Logger {
	if im.Log == nil {
		return logging.Nop()
	}
	return im.Log
}
