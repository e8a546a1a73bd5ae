package service

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jask/ledgerchat/internal/database"
	"github.com/jask/ledgerchat/internal/database/repository"
	"github.com/jask/ledgerchat/internal/domain"
)

// IngestService imports statement CSV exports.
type IngestService struct {
	DB  *sql.DB
	Log zerolog.Logger
}

// StatementMeta describes the statement a CSV belongs to. Filename is the
// uniqueness key: a file already imported is skipped as a whole.
type StatementMeta struct {
	Filename        string
	StatementNumber string
	StatementDate   string
	AccountNumber   string
}

type IngestResult struct {
	StatementID     int64
	AlreadyImported bool
	Imported        int
	Skipped         int
	Errors          []error
}

// ImportFile imports the CSV at path, using its base name as the filename.
func (s *IngestService) ImportFile(ctx context.Context, path string, meta StatementMeta) (IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("open statement: %w", err)
	}
	defer f.Close()
	if meta.Filename == "" {
		meta.Filename = filepath.Base(path)
	}
	return s.ImportStatementCSV(ctx, f, meta)
}

// ImportStatementCSV ingests a header-less export with columns
// date, description, amount[, balance[, reference]] as one statement.
// Negative amounts are debits. Bad lines are collected in Errors and
// skipped; the statement and its good lines are written in one transaction.
func (s *IngestService) ImportStatementCSV(ctx context.Context, r io.Reader, meta StatementMeta) (IngestResult, error) {
	res := IngestResult{}
	meta.Filename = strings.TrimSpace(meta.Filename)
	if meta.Filename == "" {
		return res, errors.New("statement filename required")
	}
	if meta.StatementDate == "" {
		meta.StatementDate = database.Today()
	} else if _, err := time.Parse(time.DateOnly, meta.StatementDate); err != nil {
		return res, fmt.Errorf("statement date: %w", err)
	}

	existing, err := repository.NewStatementRepo(s.DB).GetByFilename(ctx, meta.Filename)
	if err != nil {
		return res, err
	}
	if existing != nil {
		res.StatementID = existing.ID
		res.AlreadyImported = true
		s.Log.Info().Str("file", meta.Filename).Msg("statement already imported")
		return res, nil
	}

	rows, errs := parseStatementCSV(r)
	res.Errors = errs

	err = database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		id, err := repository.NewStatementRepo(tx).Insert(ctx, domain.Statement{
			Filename:        meta.Filename,
			AccountNumber:   meta.AccountNumber,
			StatementDate:   meta.StatementDate,
			StatementNumber: meta.StatementNumber,
		})
		if err != nil {
			return err
		}
		res.StatementID = id
		txRepo := repository.NewTransactionRepo(tx)
		for _, row := range rows {
			row.StatementID = id
			_, inserted, err := txRepo.Insert(ctx, row)
			if err != nil {
				return err
			}
			if !inserted {
				res.Skipped++
				continue
			}
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return IngestResult{Errors: res.Errors}, fmt.Errorf("import %s: %w", meta.Filename, err)
	}
	s.Log.Info().
		Str("file", meta.Filename).
		Str("statement", meta.StatementNumber).
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Int("errors", len(res.Errors)).
		Msg("statement imported")
	return res, nil
}

func parseStatementCSV(r io.Reader) ([]repository.TransactionRow, []error) {
	var rows []repository.TransactionRow
	var errs []error
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1
	line := 0
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if len(rec) < 3 {
			errs = append(errs, fmt.Errorf("line %d: expected at least 3 columns (date, description, amount)", line))
			continue
		}
		date, err := parseStatementDate(rec[0])
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d date: %w", line, err))
			continue
		}
		desc := strings.TrimSpace(rec[1])
		if desc == "" {
			errs = append(errs, fmt.Errorf("line %d: empty description", line))
			continue
		}
		amount, err := parseRand(rec[2])
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d amount: %w", line, err))
			continue
		}
		row := repository.TransactionRow{
			Transaction: domain.Transaction{Date: date, Description: desc, Amount: amount},
			RawText:     strings.Join(rec, ","),
		}
		row.Type = row.Kind()
		if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
			b, err := parseRand(rec[3])
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d balance: %w", line, err))
				continue
			}
			row.Balance = &b
		}
		if len(rec) > 4 {
			row.Reference = strings.TrimSpace(rec[4])
		}
		row.SourceHash = hashSource(date, strconv.FormatFloat(amount, 'f', 2, 64), desc, row.Reference)
		rows = append(rows, row)
	}
	return rows, errs
}

// parseRand reads an amount such as "-1,234.50" or "R 99.99", rounded to cents.
func parseRand(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.ReplaceAll(s, " ", "")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "R"), "r")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		f = -f
	}
	return math.Round(f*100) / 100, nil
}

// hashSource is a stable name-based UUID of the raw line, used to skip
// duplicate rows within a statement.
func hashSource(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("line:"+strings.Join(parts, "|"))).String()
}

// parseStatementDate accepts ISO dates and day/month/year exports and
// returns YYYY-MM-DD.
func parseStatementDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateOnly, "2/01/2006", "02 Jan 2006", "2 Jan 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}
