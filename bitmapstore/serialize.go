package bitmapstore

import (
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
)

// Persisted form: fixed header followed by the roaring byte stream,
// zstd-compressed above a size threshold. The blob is opaque to everything
// but this package.
//
//	magic      [4]byte "CBM1"
//	flags      uint8   (bit0: payload is zstd-compressed)
//	typeLen    uint8
//	type       [typeLen]byte
//	rangeMin   uint64 BE
//	rangeMax   uint64 BE
//	payloadLen uint32 BE
//	payload    [payloadLen]byte
var blobMagic = [4]byte{'C', 'B', 'M', '1'}

const (
	flagCompressed = 1 << 0

	// compressThreshold is the payload size below which zstd framing
	// costs more than it saves.
	compressThreshold = 512
)

// EncodeAll/DecodeAll on shared instances are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Serialize encodes the bitmap to its persisted blob form.
func Serialize(b *Bitmap) ([]byte, error) {
	payload, err := b.rb.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize bitmap %q: %w", b.Key, err)
	}

	var flags uint8
	if len(payload) >= compressThreshold {
		payload = zstdEncoder.EncodeAll(payload, nil)
		flags |= flagCompressed
	}

	typ := []byte(b.Type)
	if len(typ) > 255 {
		return nil, fmt.Errorf("serialize bitmap %q: type tag too long", b.Key)
	}

	out := make([]byte, 0, 4+1+1+len(typ)+8+8+4+len(payload))
	out = append(out, blobMagic[:]...)
	out = append(out, flags, uint8(len(typ)))
	out = append(out, typ...)
	out = binary.BigEndian.AppendUint64(out, b.RangeMin)
	out = binary.BigEndian.AppendUint64(out, b.RangeMax)
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	return out, nil
}

// Deserialize decodes a persisted blob into a bitmap under the given key.
func Deserialize(key string, data []byte) (*Bitmap, error) {
	if len(data) < 4+1+1 || [4]byte(data[:4]) != blobMagic {
		return nil, fmt.Errorf("deserialize bitmap %q: bad magic", key)
	}
	flags := data[4]
	typeLen := int(data[5])
	rest := data[6:]

	if len(rest) < typeLen+8+8+4 {
		return nil, fmt.Errorf("deserialize bitmap %q: truncated header", key)
	}
	typ := Type(rest[:typeLen])
	rest = rest[typeLen:]

	rangeMin := binary.BigEndian.Uint64(rest[:8])
	rangeMax := binary.BigEndian.Uint64(rest[8:16])
	payloadLen := int(binary.BigEndian.Uint32(rest[16:20]))
	payload := rest[20:]

	if len(payload) != payloadLen {
		return nil, fmt.Errorf("deserialize bitmap %q: payload length mismatch", key)
	}

	if flags&flagCompressed != 0 {
		decompressed, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("deserialize bitmap %q: %w", key, err)
		}
		payload = decompressed
	}

	rb := roaring.New()
	if err := rb.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("deserialize bitmap %q: %w", key, err)
	}

	return &Bitmap{
		Key:      key,
		Type:     typ,
		RangeMin: rangeMin,
		RangeMax: rangeMax,
		rb:       rb,
	}, nil
}
