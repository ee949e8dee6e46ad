package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Stats counts history rows per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health folds the per-status counts into the buckets the CLI shows.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var health HealthSummary
	for status, count := range stats {
		health.Total += count
		switch {
		case status == StatusPending:
			health.Pending += count
		case status == StatusFailed:
			health.Failed += count
		case status == StatusCompleted:
			health.Completed += count
		case IsProcessingStatus(status):
			health.Processing += count
		}
	}
	return health, nil
}

// CheckHealth inspects the database file and schema. A missing file is not
// an error; the report just says so.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	report := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return report, errors.New("history database path is unknown")
	}
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return report, nil
	case err != nil:
		return report, fmt.Errorf("stat history database: %w", err)
	case info.IsDir():
		return report, fmt.Errorf("history database path %q is a directory", s.path)
	}
	report.DatabaseExists = true
	if s.db == nil {
		return report, errors.New("history database connection unavailable")
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	fail := func(step string, err error) (DatabaseHealth, error) {
		report.Error = err.Error()
		return report, fmt.Errorf("%s: %w", step, err)
	}

	if err := s.db.PingContext(checkCtx); err != nil {
		return fail("ping history database", err)
	}
	report.DatabaseReadable = true

	version, err := s.schemaVersion(checkCtx)
	if err != nil {
		return fail("schema version", err)
	}
	report.SchemaVersion = strconv.Itoa(version)

	columns, err := s.tableColumns(checkCtx, "queue_items")
	if err != nil {
		return fail("table info", err)
	}
	report.TableExists = len(columns) > 0
	if report.TableExists {
		report.ColumnsPresent = columns
		for _, want := range itemColumnNames {
			if !slices.Contains(columns, want) {
				report.MissingColumns = append(report.MissingColumns, want)
			}
		}
		if err := s.db.QueryRowContext(checkCtx, "SELECT COUNT(*) FROM queue_items").Scan(&report.TotalItems); err != nil {
			return fail("count history rows", err)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(checkCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fail("integrity check", err)
	}
	report.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return report, nil
}

// tableColumns returns the column names of table, or none if it is absent.
func (s *Store) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}
