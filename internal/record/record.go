// Package record implements the two on-disk record encodings shared by the
// write-ahead log and the SSTable writer/reader: a length-prefixed
// key/value framing with no header, footer, or checksum.
package record

import (
	"encoding/binary"
	"errors"
	"io"
)

// Tombstone is the reserved value sentinel marking a logical deletion.
// Applications must not store this exact byte string as a value.
var Tombstone = []byte("__TOMBSTONE__")

// IsTombstone reports whether value is the reserved deletion marker.
func IsTombstone(value []byte) bool {
	return string(value) == string(Tombstone)
}

// ErrMalformed is returned when a record's length prefix does not fit the
// bytes remaining in the stream.
var ErrMalformed = errors.New("record: malformed record")

// EncodeSSTableRecord appends the wire form of an SSTable record — key_len
// (u32 LE) | key | value_len (u32 LE) | value — to w.
func EncodeSSTableRecord(w io.Writer, key, value []byte) (int, error) {
	var hdr [4]byte
	total := 0

	binary.LittleEndian.PutUint32(hdr[:], uint32(len(key)))
	n, err := w.Write(hdr[:])
	total += n
	if err != nil {
		return total, err
	}
	n, err = w.Write(key)
	total += n
	if err != nil {
		return total, err
	}

	binary.LittleEndian.PutUint32(hdr[:], uint32(len(value)))
	n, err = w.Write(hdr[:])
	total += n
	if err != nil {
		return total, err
	}
	n, err = w.Write(value)
	total += n
	return total, err
}

// DecodeSSTableRecord reads one SSTable record from r. It returns io.EOF
// (unwrapped) when the stream ends cleanly between records, and
// ErrMalformed when a length prefix is truncated.
func DecodeSSTableRecord(r io.Reader) (key, value []byte, err error) {
	keyLen, err := readUint32(r)
	if err != nil {
		return nil, nil, err
	}
	key, err = readN(r, keyLen)
	if err != nil {
		return nil, nil, ErrMalformed
	}
	valLen, err := readUint32(r)
	if err != nil {
		return nil, nil, ErrMalformed
	}
	value, err = readN(r, valLen)
	if err != nil {
		return nil, nil, ErrMalformed
	}
	return key, value, nil
}

// EncodeWALRecord appends the wire form of a WAL record — seq (u64 LE) |
// key_len (u32 LE) | key | value_len (u32 LE) | value — to w.
func EncodeWALRecord(w io.Writer, seq uint64, key, value []byte) (int, error) {
	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], seq)
	total, err := w.Write(seqBuf[:])
	if err != nil {
		return total, err
	}
	n, err := EncodeSSTableRecord(w, key, value)
	return total + n, err
}

// DecodeWALRecord reads one WAL record from r. It returns io.EOF
// (unwrapped) when the stream ends cleanly between records, and
// ErrMalformed when a record is truncated mid-way — the caller should
// treat that as "no more usable records" rather than a hard failure.
func DecodeWALRecord(r io.Reader) (seq uint64, key, value []byte, err error) {
	var seqBuf [8]byte
	if _, err = io.ReadFull(r, seqBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrMalformed
		}
		return 0, nil, nil, err
	}
	seq = binary.LittleEndian.Uint64(seqBuf[:])
	key, value, err = DecodeSSTableRecord(r)
	if errors.Is(err, io.EOF) {
		err = ErrMalformed
	}
	return seq, key, value, err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrMalformed
		}
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readN(r io.Reader, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
