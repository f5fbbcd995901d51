package format

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// Translator turns renderer-foreign XML payloads (KML, GPX) into GeoJSON.
// GML never comes through here; the service converter owns that path.
type Translator interface {
	Translate(ctx context.Context, tag Tag, data []byte) (*geojson.FeatureCollection, error)
}

// ParseVector parses the GeoJSON flavored payloads (the GEOJSON, GJSON and
// JSON tags all mean the same wire shape).
func ParseVector(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	return fc, nil
}

// ExtractKMZ unzips a KMZ archive and returns its first .kml entry.
func ExtractKMZ(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open kmz: %w", err)
	}
	for _, f := range zr.File {
		if !strings.EqualFold(path.Ext(f.Name), ".kml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open kmz entry %q: %w", f.Name, err)
		}
		defer rc.Close()
		doc, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read kmz entry %q: %w", f.Name, err)
		}
		return doc, nil
	}
	return nil, errors.New("kmz archive has no kml entry")
}
