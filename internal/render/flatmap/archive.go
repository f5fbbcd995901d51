package flatmap

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-view/internal/geom"
)

// PMTiles v3 layout. Binary offsets follow the protomaps spec; tiles are
// stored with the gzip framing RenderTile already applies.
const (
	archiveMagic   = "PMTiles"
	archiveVersion = 3
	headerLen      = 127

	compressionGzip = 2
	tileTypeMVT     = 1
)

// archiveEntry is one root directory row.
type archiveEntry struct {
	id     uint64
	offset uint64
	length uint32
}

// Archive accumulates rendered tiles and writes a single-file PMTiles v3
// tileset. Tiles may arrive in any order; the writer clusters them along
// the Hilbert curve.
type Archive struct {
	name    string
	tiles   map[uint64][]byte
	minZoom maptile.Zoom
	maxZoom maptile.Zoom
	extent  geom.Extent
	layers  []string
}

// NewArchive creates an empty archive. The layer names become the
// vector_layers metadata readers use to discover the tileset's contents.
func NewArchive(name string, layers []string) *Archive {
	return &Archive{
		name:   name,
		tiles:  make(map[uint64][]byte),
		layers: layers,
	}
}

// AddTile records one rendered tile. Empty payloads are ignored; a tile
// added twice keeps the latest payload.
func (a *Archive) AddTile(tile maptile.Tile, payload []byte) {
	if len(payload) == 0 {
		return
	}
	if len(a.tiles) == 0 || tile.Z < a.minZoom {
		a.minZoom = tile.Z
	}
	if tile.Z > a.maxZoom {
		a.maxZoom = tile.Z
	}
	a.extent = a.extent.Union(geom.FromBound(tile.Bound()))
	a.tiles[tileID(tile)] = payload
}

// Len reports the number of distinct tiles held.
func (a *Archive) Len() int { return len(a.tiles) }

// WriteTo assembles the archive: fixed header, gzipped root directory,
// gzipped metadata, then tile data clustered in Hilbert order.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	if len(a.tiles) == 0 {
		return 0, fmt.Errorf("archive %q has no tiles", a.name)
	}

	ids := make([]uint64, 0, len(a.tiles))
	for id := range a.tiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var data bytes.Buffer
	entries := make([]archiveEntry, 0, len(ids))
	for _, id := range ids {
		payload := a.tiles[id]
		entries = append(entries, archiveEntry{
			id:     id,
			offset: uint64(data.Len()),
			length: uint32(len(payload)),
		})
		data.Write(payload)
	}

	root, err := directoryBytes(entries)
	if err != nil {
		return 0, err
	}
	meta, err := a.metadataBytes()
	if err != nil {
		return 0, err
	}

	header := a.headerBytes(len(root), len(meta), data.Len(), len(entries))

	var n int64
	for _, chunk := range [][]byte{header, root, meta, data.Bytes()} {
		c, err := w.Write(chunk)
		n += int64(c)
		if err != nil {
			return n, fmt.Errorf("write archive %q: %w", a.name, err)
		}
	}
	return n, nil
}

func (a *Archive) headerBytes(rootLen, metaLen, dataLen, count int) []byte {
	b := make([]byte, headerLen)
	copy(b, archiveMagic)
	b[7] = archiveVersion

	rootOffset := uint64(headerLen)
	metaOffset := rootOffset + uint64(rootLen)
	leafOffset := metaOffset + uint64(metaLen)
	dataOffset := leafOffset

	binary.LittleEndian.PutUint64(b[8:], rootOffset)
	binary.LittleEndian.PutUint64(b[16:], uint64(rootLen))
	binary.LittleEndian.PutUint64(b[24:], metaOffset)
	binary.LittleEndian.PutUint64(b[32:], uint64(metaLen))
	binary.LittleEndian.PutUint64(b[40:], leafOffset)
	binary.LittleEndian.PutUint64(b[48:], 0)
	binary.LittleEndian.PutUint64(b[56:], dataOffset)
	binary.LittleEndian.PutUint64(b[64:], uint64(dataLen))
	binary.LittleEndian.PutUint64(b[72:], uint64(count))
	binary.LittleEndian.PutUint64(b[80:], uint64(count))
	binary.LittleEndian.PutUint64(b[88:], uint64(count))
	b[96] = 1 // clustered
	b[97] = compressionGzip
	b[98] = compressionGzip
	b[99] = tileTypeMVT
	b[100] = uint8(a.minZoom)
	b[101] = uint8(a.maxZoom)

	bound := a.extent.Bound()
	center := a.extent.Center()
	binary.LittleEndian.PutUint32(b[102:], uint32(int32(bound.Min[0]*1e7)))
	binary.LittleEndian.PutUint32(b[106:], uint32(int32(bound.Min[1]*1e7)))
	binary.LittleEndian.PutUint32(b[110:], uint32(int32(bound.Max[0]*1e7)))
	binary.LittleEndian.PutUint32(b[114:], uint32(int32(bound.Max[1]*1e7)))
	b[118] = uint8(a.minZoom)
	binary.LittleEndian.PutUint32(b[119:], uint32(int32(center[0]*1e7)))
	binary.LittleEndian.PutUint32(b[123:], uint32(int32(center[1]*1e7)))
	return b
}

// directoryBytes encodes the root directory: entry count, delta-coded tile
// IDs, run lengths, payload lengths, then offsets with zero marking a
// contiguous run, all varint, gzipped.
func directoryBytes(entries []archiveEntry) ([]byte, error) {
	var raw bytes.Buffer
	tmp := make([]byte, binary.MaxVarintLen64)
	put := func(v uint64) {
		raw.Write(tmp[:binary.PutUvarint(tmp, v)])
	}

	put(uint64(len(entries)))
	last := uint64(0)
	for _, e := range entries {
		put(e.id - last)
		last = e.id
	}
	for range entries {
		put(1) // run length
	}
	for _, e := range entries {
		put(uint64(e.length))
	}
	for i, e := range entries {
		if i > 0 && e.offset == entries[i-1].offset+uint64(entries[i-1].length) {
			put(0)
			continue
		}
		put(e.offset + 1)
	}

	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("encode directory: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("encode directory: %w", err)
	}
	return out.Bytes(), nil
}

func (a *Archive) metadataBytes() ([]byte, error) {
	vector := make([]map[string]interface{}, 0, len(a.layers))
	for _, name := range a.layers {
		vector = append(vector, map[string]interface{}{
			"id":      name,
			"minzoom": int(a.minZoom),
			"maxzoom": int(a.maxZoom),
		})
	}
	meta := map[string]interface{}{
		"name":          a.name,
		"format":        "pbf",
		"vector_layers": vector,
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return out.Bytes(), nil
}

// tileID maps tile coordinates onto the PMTiles Hilbert ordering: all tiles
// of shallower zooms first, then the curve position within this zoom.
func tileID(t maptile.Tile) uint64 {
	id := (uint64(1)<<(2*uint64(t.Z)) - 1) / 3
	x, y := uint64(t.X), uint64(t.Y)
	for s := uint64(1) << t.Z / 2; s > 0; s /= 2 {
		var rx, ry uint64
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		id += s * s * ((3 * rx) ^ ry)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x
				y = s - 1 - y
			}
			x, y = y, x
		}
	}
	return id
}
