package flatmap

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"io"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileIDKnownValues(t *testing.T) {
	cases := []struct {
		z    maptile.Zoom
		x, y uint32
		id   uint64
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{1, 0, 1, 2},
		{1, 1, 1, 3},
		{1, 1, 0, 4},
		{2, 0, 0, 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.id, tileID(maptile.New(c.x, c.y, c.z)), "z%d %d/%d", c.z, c.x, c.y)
	}
}

func TestArchiveWriteRoundTrip(t *testing.T) {
	arc := NewArchive("scene", []string{"roads"})
	a := []byte("tile-a-payload")
	b := []byte("tile-b")

	arc.AddTile(maptile.New(1, 0, 1), b)
	arc.AddTile(maptile.New(0, 0, 1), a)
	arc.AddTile(maptile.New(0, 0, 1), a)
	arc.AddTile(maptile.New(9, 9, 4), nil)
	require.Equal(t, 2, arc.Len(), "duplicates collapse, empty payloads are ignored")

	var buf bytes.Buffer
	n, err := arc.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)

	raw := buf.Bytes()
	require.Equal(t, archiveMagic, string(raw[:7]))
	assert.EqualValues(t, archiveVersion, raw[7])
	assert.EqualValues(t, 1, raw[96], "clustered")
	assert.EqualValues(t, compressionGzip, raw[98])
	assert.EqualValues(t, tileTypeMVT, raw[99])
	assert.EqualValues(t, 1, raw[100], "min zoom")
	assert.EqualValues(t, 1, raw[101], "max zoom")
	assert.EqualValues(t, 2, binary.LittleEndian.Uint64(raw[72:]), "addressed tiles")

	rootOff := binary.LittleEndian.Uint64(raw[8:])
	rootLen := binary.LittleEndian.Uint64(raw[16:])
	metaOff := binary.LittleEndian.Uint64(raw[24:])
	metaLen := binary.LittleEndian.Uint64(raw[32:])
	dataOff := binary.LittleEndian.Uint64(raw[56:])
	dataLen := binary.LittleEndian.Uint64(raw[64:])
	assert.EqualValues(t, headerLen, rootOff)
	assert.EqualValues(t, metaOff+metaLen, dataOff, "no leaf directories")

	entries := decodeDirectory(t, raw[rootOff:rootOff+rootLen])
	require.Len(t, entries, 2)
	assert.Equal(t, tileID(maptile.New(0, 0, 1)), entries[0].id)
	assert.Equal(t, tileID(maptile.New(1, 0, 1)), entries[1].id)

	data := raw[dataOff : dataOff+dataLen]
	assert.Equal(t, a, data[entries[0].offset:entries[0].offset+uint64(entries[0].length)])
	assert.Equal(t, b, data[entries[1].offset:entries[1].offset+uint64(entries[1].length)])

	var meta struct {
		Name         string `json:"name"`
		Format       string `json:"format"`
		VectorLayers []struct {
			ID string `json:"id"`
		} `json:"vector_layers"`
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw[metaOff : metaOff+metaLen]))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(zr).Decode(&meta))
	assert.Equal(t, "scene", meta.Name)
	assert.Equal(t, "pbf", meta.Format)
	require.Len(t, meta.VectorLayers, 1)
	assert.Equal(t, "roads", meta.VectorLayers[0].ID)
}

func TestArchiveWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewArchive("empty", nil).WriteTo(&buf)
	require.Error(t, err)
}

// decodeDirectory reverses directoryBytes: count, delta-coded IDs, run
// lengths, lengths, then offset column.
func decodeDirectory(t *testing.T, gz []byte) []archiveEntry {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(gz))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	rd := bytes.NewReader(raw)
	count, err := binary.ReadUvarint(rd)
	require.NoError(t, err)

	entries := make([]archiveEntry, count)
	last := uint64(0)
	for i := range entries {
		d, err := binary.ReadUvarint(rd)
		require.NoError(t, err)
		last += d
		entries[i].id = last
	}
	for range entries {
		rl, err := binary.ReadUvarint(rd)
		require.NoError(t, err)
		require.EqualValues(t, 1, rl)
	}
	for i := range entries {
		l, err := binary.ReadUvarint(rd)
		require.NoError(t, err)
		entries[i].length = uint32(l)
	}
	for i := range entries {
		off, err := binary.ReadUvarint(rd)
		require.NoError(t, err)
		if off == 0 {
			entries[i].offset = entries[i-1].offset + uint64(entries[i-1].length)
			continue
		}
		entries[i].offset = off - 1
	}
	return entries
}
