package secrets

import (
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
)

const (
	// DefaultChunkSize is the plaintext size of every record except the last.
	DefaultChunkSize = 64 * 1024

	// MaxChunkSize is the largest plaintext chunk sealed under one nonce.
	MaxChunkSize = 64 * 1024
)

// finalFlag marks the counter of the last record in a stream.
const finalFlag = uint32(1) << 31

// Stream encrypts and decrypts files as a sequence of independently
// authenticated records: nonce || ciphertext || tag.
//
// Record nonces are streamID (8 bytes, big endian) followed by a 4-byte
// counter whose top bit is set on the last record. A streamID must never be
// reused with the same key.
type Stream struct {
	aead      cipher.AEAD
	chunkSize int
}

// NewStream returns a Stream sealing chunkSize-byte chunks under key.
func NewStream(key []byte, chunkSize int) (*Stream, error) {
	if err := CheckChunkSize(chunkSize); err != nil {
		return nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &Stream{aead: aead, chunkSize: chunkSize}, nil
}

// CheckChunkSize rejects chunk sizes outside (0, MaxChunkSize].
func CheckChunkSize(chunkSize int) error {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk size must be between 1 and %d, got %d", kerrors.ErrInvalidConfig, MaxChunkSize, chunkSize)
	}
	return nil
}

// ChunkSize returns the plaintext size of a full record.
func (s *Stream) ChunkSize() int {
	return s.chunkSize
}

// Encrypt reads src until EOF and writes sealed records to dst. It returns the
// number of plaintext bytes consumed. An empty source produces no records.
// Write failures are reported as ErrResource.
func (s *Stream) Encrypt(dst io.Writer, src io.Reader, streamID uint64) (int64, error) {
	cur := make([]byte, s.chunkSize)
	next := make([]byte, s.chunkSize)
	nonce := make([]byte, NonceSize)
	record := make([]byte, 0, RecordSize(s.chunkSize))

	var total int64
	n, err := readChunk(src, cur)
	if err != nil {
		return 0, err
	}

	for index := uint32(0); n > 0; index++ {
		if index >= finalFlag {
			return total, fmt.Errorf("stream exceeds %d records", finalFlag)
		}

		// A short chunk is always last; a full one is last only if nothing follows.
		final := n < s.chunkSize
		m := 0
		if !final {
			if m, err = readChunk(src, next); err != nil {
				return total, err
			}
			final = m == 0
		}

		chunkNonce(nonce, streamID, index, final)
		record = append(record[:0], nonce...)
		record = s.aead.Seal(record, nonce, cur[:n], nil)
		if _, err := dst.Write(record); err != nil {
			return total, fmt.Errorf("%w: failed to write record %d: %v", kerrors.ErrResource, index, err)
		}
		total += int64(n)

		cur, next = next, cur
		n = m
	}

	return total, nil
}

// Decrypt reads sealed records from src and writes plaintext to dst. Each
// record's plaintext is written only after its tag verifies, so on failure dst
// holds exactly the verified prefix. Tampering, reordering, truncation and
// trailing data all yield ErrIntegrity.
func (s *Stream) Decrypt(dst io.Writer, src io.Reader, streamID uint64) (int64, error) {
	buf := make([]byte, RecordSize(s.chunkSize))
	expected := make([]byte, NonceSize)
	plain := make([]byte, 0, s.chunkSize)

	var total int64
	for index := uint32(0); ; index++ {
		if index >= finalFlag {
			return total, fmt.Errorf("%w: stream exceeds %d records", kerrors.ErrIntegrity, finalFlag)
		}

		n, err := readChunk(src, buf)
		if err != nil {
			return total, err
		}
		if n == 0 {
			if index == 0 {
				// Empty file: no records at all.
				return 0, nil
			}
			return total, fmt.Errorf("%w: stream ended before final record", kerrors.ErrIntegrity)
		}
		if n < Overhead+1 {
			return total, fmt.Errorf("%w: record %d is truncated", kerrors.ErrIntegrity, index)
		}

		record := buf[:n]
		final := binary.BigEndian.Uint32(record[8:NonceSize])&finalFlag != 0
		if !final && n < len(buf) {
			return total, fmt.Errorf("%w: record %d is truncated", kerrors.ErrIntegrity, index)
		}

		chunkNonce(expected, streamID, index, final)
		if subtle.ConstantTimeCompare(expected, record[:NonceSize]) != 1 {
			return total, fmt.Errorf("%w: record %d is out of sequence", kerrors.ErrIntegrity, index)
		}

		plain, err = s.aead.Open(plain[:0], expected, record[NonceSize:], nil)
		if err != nil {
			return total, fmt.Errorf("%w: record %d failed authentication", kerrors.ErrIntegrity, index)
		}

		if _, err := dst.Write(plain); err != nil {
			return total, fmt.Errorf("%w: failed to write plaintext: %v", kerrors.ErrResource, err)
		}
		total += int64(len(plain))

		if final {
			var extra [1]byte
			m, err := readChunk(src, extra[:])
			if err != nil {
				return total, err
			}
			if m != 0 {
				return total, fmt.Errorf("%w: data after final record", kerrors.ErrIntegrity)
			}
			return total, nil
		}
	}
}

// RecordSize returns the on-disk size of a full record.
func RecordSize(chunkSize int) int {
	return NonceSize + chunkSize + TagSize
}

// RecordCount returns how many records a plaintext of size bytes produces.
func RecordCount(size int64, chunkSize int) int64 {
	if size <= 0 {
		return 0
	}
	return (size + int64(chunkSize) - 1) / int64(chunkSize)
}

// EncryptedSize returns the on-disk size of a plaintext of size bytes.
func EncryptedSize(size int64, chunkSize int) int64 {
	return size + RecordCount(size, chunkSize)*Overhead
}

func chunkNonce(dst []byte, streamID uint64, index uint32, final bool) {
	binary.BigEndian.PutUint64(dst[:8], streamID)
	if final {
		index |= finalFlag
	}
	binary.BigEndian.PutUint32(dst[8:NonceSize], index)
}

// readChunk fills buf as far as src allows. A short count means EOF was reached.
func readChunk(src io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(src, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("%w: failed to read: %v", kerrors.ErrResource, err)
	}
	return n, nil
}
