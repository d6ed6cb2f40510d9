package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// recordExt is the file extension of alignment records.
const recordExt = ".rec"

// Records smaller than this are stored as plain JSON.
const compressThreshold = 1024

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// codec turns records into file contents and back.
type codec struct {
	encoder *zstd.Encoder // nil disables compression
	decoder *zstd.Decoder
}

func newCodec(level int) (*codec, error) {
	c := &codec{}
	var err error
	if level > 0 {
		c.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Old records may be compressed even when new ones are not.
	c.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return c, nil
}

func (c *codec) encode(rec *record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if c.encoder != nil && len(data) > compressThreshold {
		// Only use compression if it actually reduces size
		if compressed := c.encoder.EncodeAll(data, nil); len(compressed) < len(data) {
			return compressed, nil
		}
	}
	return data, nil
}

func (c *codec) decode(data []byte) (*record, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		plain, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing: %w", err)
		}
		data = plain
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	return &rec, nil
}

func (c *codec) close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	c.decoder.Close()
}

// documentKey folds a document ID into a directory name.
func documentKey(documentID string) string {
	sum := sha256.Sum256([]byte(documentID))
	return hex.EncodeToString(sum[:8])
}

// recordName folds paragraph and speed into a file name.
func recordName(paragraph int, speed float64) string {
	return fmt.Sprintf("%d@%s%s", paragraph, speedKey(speed), recordExt)
}

// speedKey rounds a speed to the two decimals records are keyed by.
func speedKey(speed float64) string {
	return fmt.Sprintf("%.2f", speed)
}

func isRecord(name string) bool {
	return strings.HasSuffix(name, recordExt) && !strings.HasPrefix(name, ".")
}

// writeAtomic replaces dir/name with data. Readers see the old or the new
// contents, never a partial file.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err = errors.Join(err, closeErr); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
