package assets

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"

	"voxelcore.ai/internal/parallel"
)

// Pack layout (little-endian):
//
//	"VXPK" u16 version u32 count
//	count x { u16 nameLen, name, u8 flags, u64 offset, u64 size, u64 rawSize }
//	entry data
//
// Offsets are absolute. Flag bit 0 marks a zstd-compressed entry.
const (
	packMagic   = "VXPK"
	packVersion = 1

	flagZstd = 1 << 0

	packHeaderLen = 4 + 2 + 4
	entryFixedLen = 2 + 1 + 8 + 8 + 8
	maxEntryName  = 1<<16 - 1

	// MaxEntrySize bounds the decoded size of a single entry.
	MaxEntrySize = 256 << 20
)

type PackEntry struct {
	Name string
	Data []byte
}

type entryHeader struct {
	name    string
	flags   uint8
	offset  uint64
	size    uint64
	rawSize uint64
}

// WritePack writes entries in the given order. Names must be unique.
func WritePack(w io.Writer, entries []PackEntry, compress bool) error {
	seen := make(map[string]struct{}, len(entries))
	tableLen := packHeaderLen
	for _, e := range entries {
		if e.Name == "" || len(e.Name) > maxEntryName {
			return fmt.Errorf("assets: bad entry name %q", e.Name)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("assets: duplicate entry %q", e.Name)
		}
		if len(e.Data) > MaxEntrySize {
			return fmt.Errorf("assets: entry %q is %d bytes, max %d", e.Name, len(e.Data), MaxEntrySize)
		}
		seen[e.Name] = struct{}{}
		tableLen += entryFixedLen + len(e.Name)
	}

	var enc *zstd.Encoder
	if compress {
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		defer enc.Close()
	}

	blobs := make([][]byte, len(entries))
	for i, e := range entries {
		blobs[i] = e.Data
	}
	if enc != nil {
		// EncodeAll is safe for concurrent use.
		if err := parallel.Range(0, len(entries), 0, func(i int) {
			blobs[i] = enc.EncodeAll(entries[i].Data, nil)
		}); err != nil {
			return err
		}
	}

	heads := make([]entryHeader, len(entries))
	off := uint64(tableLen)
	for i, e := range entries {
		blob := blobs[i]
		var flags uint8
		if enc != nil {
			flags |= flagZstd
		}
		heads[i] = entryHeader{
			name:    e.Name,
			flags:   flags,
			offset:  off,
			size:    uint64(len(blob)),
			rawSize: uint64(len(e.Data)),
		}
		off += uint64(len(blob))
	}

	bw := bufio.NewWriter(w)
	var tmp [8]byte
	bw.WriteString(packMagic)
	binary.LittleEndian.PutUint16(tmp[:2], packVersion)
	bw.Write(tmp[:2])
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(entries)))
	bw.Write(tmp[:4])
	for _, h := range heads {
		binary.LittleEndian.PutUint16(tmp[:2], uint16(len(h.name)))
		bw.Write(tmp[:2])
		bw.WriteString(h.name)
		bw.WriteByte(h.flags)
		for _, v := range []uint64{h.offset, h.size, h.rawSize} {
			binary.LittleEndian.PutUint64(tmp[:], v)
			bw.Write(tmp[:])
		}
	}
	for _, b := range blobs {
		bw.Write(b)
	}
	return bw.Flush()
}

// Pack is an opened asset pack backed by a Store.
type Pack struct {
	store   *Store
	dec     *zstd.Decoder
	entries map[string]entryHeader
	names   []string
}

func OpenPack(path string) (*Pack, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	entries, names, err := parseTable(s.Bytes())
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxEntrySize))
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return &Pack{store: s, dec: dec, entries: entries, names: names}, nil
}

func parseTable(b []byte) (map[string]entryHeader, []string, error) {
	if len(b) < packHeaderLen || string(b[:4]) != packMagic {
		return nil, nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(b[4:6]); v != packVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	count := int(binary.LittleEndian.Uint32(b[6:10]))
	if count > (len(b)-packHeaderLen)/entryFixedLen {
		return nil, nil, fmt.Errorf("%w: %d entries do not fit in %d bytes", ErrCorrupt, count, len(b))
	}
	p := packHeaderLen

	entries := make(map[string]entryHeader, count)
	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if len(b)-p < 2 {
			return nil, nil, fmt.Errorf("%w: truncated table at entry %d", ErrCorrupt, i)
		}
		nameLen := int(binary.LittleEndian.Uint16(b[p:]))
		p += 2
		if len(b)-p < nameLen+entryFixedLen-2 {
			return nil, nil, fmt.Errorf("%w: truncated table at entry %d", ErrCorrupt, i)
		}
		h := entryHeader{name: string(b[p : p+nameLen])}
		p += nameLen
		h.flags = b[p]
		p++
		h.offset = binary.LittleEndian.Uint64(b[p:])
		h.size = binary.LittleEndian.Uint64(b[p+8:])
		h.rawSize = binary.LittleEndian.Uint64(b[p+16:])
		p += 24

		if h.offset > uint64(len(b)) || h.size > uint64(len(b))-h.offset {
			return nil, nil, fmt.Errorf("%w: entry %q out of bounds", ErrCorrupt, h.name)
		}
		if h.flags&flagZstd == 0 && h.rawSize != h.size {
			return nil, nil, fmt.Errorf("%w: entry %q raw size %d != stored size %d", ErrCorrupt, h.name, h.rawSize, h.size)
		}
		if h.rawSize > MaxEntrySize {
			return nil, nil, fmt.Errorf("%w: entry %q raw size %d exceeds %d", ErrCorrupt, h.name, h.rawSize, MaxEntrySize)
		}
		if _, dup := entries[h.name]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate entry %q", ErrCorrupt, h.name)
		}
		entries[h.name] = h
		names = append(names, h.name)
	}
	sort.Strings(names)
	return entries, names, nil
}

// Names lists entry names in sorted order.
func (p *Pack) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Entry returns a copy of the named entry, decompressed if needed.
func (p *Pack) Entry(name string) ([]byte, error) {
	h, ok := p.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if h.size == 0 && h.rawSize == 0 {
		return []byte{}, nil
	}
	raw := make([]byte, h.size)
	if _, err := p.store.ReadAt(raw, int64(h.offset)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: entry %q truncated", ErrCorrupt, name)
		}
		return nil, err
	}
	if h.flags&flagZstd == 0 {
		return raw, nil
	}
	out, err := p.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %q: %v", ErrCorrupt, name, err)
	}
	if uint64(len(out)) != h.rawSize {
		return nil, fmt.Errorf("%w: entry %q size %d, want %d", ErrCorrupt, name, len(out), h.rawSize)
	}
	return out, nil
}

// Preload decodes every entry with one pool index per entry.
func (p *Pack) Preload(pool *parallel.Pool) (map[string][]byte, error) {
	names := p.names
	data := make([][]byte, len(names))
	errs := make([]error, len(names))
	if err := pool.Run(func(i int) {
		data[i], errs[i] = p.Entry(names[i])
	}, 0, len(names)); err != nil {
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(names))
	for i, n := range names {
		out[n] = data[i]
	}
	return out, nil
}

// Verify decodes every entry on up to n goroutines (n <= 0 uses
// parallel.DefaultWorkers) and returns the first failure. Remaining entries
// are skipped once one fails or ctx is done.
func (p *Pack) Verify(ctx context.Context, n int) error {
	return parallel.ForEach(ctx, 0, len(p.names), n, func(_ context.Context, i int) error {
		_, err := p.Entry(p.names[i])
		return err
	})
}

func (p *Pack) Close() error {
	p.dec.Close()
	return p.store.Close()
}
