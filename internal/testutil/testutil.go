// Package testutil provides fixtures shared by the package tests: small MBTiles archives and
// PNG images written to disk.
package testutil

import (
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	// SQLite driver registered as "sqlite".
	_ "modernc.org/sqlite"
)

// CreateMBTiles creates an MBTiles archive at path holding one tile per zoom level in zooms,
// with a metadata table describing them.
func CreateMBTiles(path string, zooms ...int) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrap(err, "unable to open archive")
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE tiles (
		zoom_level INTEGER,
		tile_column INTEGER,
		tile_row INTEGER,
		tile_data BLOB
	)`)
	if err != nil {
		return errors.Wrap(err, "unable to create tiles table")
	}

	for _, z := range zooms {
		_, err = db.Exec(
			"INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, 0, 0, ?)",
			z, []byte{0x89, 'P', 'N', 'G'},
		)
		if err != nil {
			return errors.Wrapf(err, "unable to insert tile at zoom %d", z)
		}
	}

	if len(zooms) == 0 {
		return nil
	}

	return insertMetadata(db, map[string]string{
		"format":  "png",
		"minzoom": strconv.Itoa(slices.Min(zooms)),
		"maxzoom": strconv.Itoa(slices.Max(zooms)),
	})
}

// WriteMBTiles is CreateMBTiles failing the test on error.
func WriteMBTiles(t testing.TB, path string, zooms ...int) {
	t.Helper()

	require.NoError(t, CreateMBTiles(path, zooms...))
}

// WriteMetadata adds md to the metadata table of the archive at path, creating the table if needed.
func WriteMetadata(t testing.TB, path string, md map[string]string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	defer db.Close()

	require.NoError(t, insertMetadata(db, md))
}

// CreatePNG writes a greyscale gradient of the given size to path.
func CreatePNG(path string, width, height int) error {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return errors.Wrap(err, "unable to create image directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create image")
	}

	err = png.Encode(f, img)
	if err != nil {
		_ = f.Close()

		return errors.Wrap(err, "unable to encode image")
	}

	return f.Close()
}

// WritePNG is CreatePNG failing the test on error.
func WritePNG(t testing.TB, path string, width, height int) {
	t.Helper()

	require.NoError(t, CreatePNG(path, width, height))
}

func insertMetadata(db *sql.DB, md map[string]string) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS metadata (name TEXT, value TEXT)")
	if err != nil {
		return errors.Wrap(err, "unable to create metadata table")
	}

	for name, value := range md {
		_, err = db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", name, value)
		if err != nil {
			return errors.Wrapf(err, "unable to insert metadata %s", name)
		}
	}

	return nil
}
