package mbtiles

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	// SQLite driver registered as "sqlite".
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Metadata is the name/value table of an MBTiles archive.
type Metadata map[string]string

// Verify reads the distinct zoom levels stored in the archive at path. The archive is opened
// read-only, and a missing file is an error rather than a new empty database.
func Verify(ctx context.Context, path string, minZoom, maxZoom int) (ZoomReport, error) {
	report := ZoomReport{RequestedMin: minZoom, RequestedMax: maxZoom}

	db, err := open(path)
	if err != nil {
		return report, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT DISTINCT zoom_level FROM tiles ORDER BY zoom_level")
	if err != nil {
		return report, errors.Wrapf(err, "unable to query zoom levels of %s", path)
	}
	defer rows.Close()

	for rows.Next() {
		var z int
		if err := rows.Scan(&z); err != nil {
			return report, errors.Wrap(err, "unable to scan zoom level")
		}

		report.Observed = append(report.Observed, z)
	}

	if err := rows.Err(); err != nil {
		return report, errors.Wrapf(err, "unable to read zoom levels of %s", path)
	}

	return report, nil
}

// ReadMetadata returns the metadata table of the archive. An archive without a metadata table
// yields an empty result.
func ReadMetadata(ctx context.Context, path string) (Metadata, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var count int

	err = db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = 'metadata'",
	).Scan(&count)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to inspect %s", path)
	}

	md := Metadata{}
	if count == 0 {
		return md, nil
	}

	rows, err := db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, errors.Wrapf(err, "unable to query metadata of %s", path)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, errors.Wrap(err, "unable to scan metadata")
		}

		md[name.String] = value.String
	}

	return md, errors.Wrapf(rows.Err(), "unable to read metadata of %s", path)
}

func open(path string) (*sql.DB, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "archive %s is not readable", path)
	}

	if info.IsDir() {
		return nil, errors.Errorf("archive %s is a directory", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve %s", path)
	}

	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}

	dsn := (&url.URL{Scheme: "file", Path: slashed, RawQuery: "mode=ro"}).String()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open archive %s", path)
	}

	return db, nil
}
