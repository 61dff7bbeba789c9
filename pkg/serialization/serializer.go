// Package serialization encodes the blobs stepflow writes to its stores:
// a codec (msgpack or JSON), optional compression and optional AES-256-GCM
// encryption, applied in that order.
package serialization

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrInvalidKey         = errors.New("encryption key must be 32 bytes")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrCiphertextTooShort = errors.New("invalid ciphertext size")
)

// Codec encodes values to bytes
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
	Name() string
}

// CompressionType represents compression algorithms
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
)

// ParseCompression maps a configuration value to a CompressionType.
// The empty string means none.
func ParseCompression(s string) (CompressionType, error) {
	switch c := CompressionType(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionZstd:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// SerializationConfig holds serialization settings
type SerializationConfig struct {
	Codec       Codec
	Compression CompressionType
	EncryptKey  []byte // AES-256 key (32 bytes)
}

// Serializer runs the encode/compress/encrypt pipeline
type Serializer struct {
	config SerializationConfig
}

// NewSerializer creates a serializer. A nil codec defaults to msgpack.
func NewSerializer(config SerializationConfig) (*Serializer, error) {
	if config.Codec == nil {
		config.Codec = NewMsgPackCodec()
	}
	if config.Compression == "" {
		config.Compression = CompressionNone
	}
	if _, err := ParseCompression(string(config.Compression)); err != nil {
		return nil, err
	}
	if n := len(config.EncryptKey); n != 0 && n != 32 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, n)
	}
	return &Serializer{config: config}, nil
}

// Format names the pipeline, e.g. "msgpack+zstd" or "json+none+aes".
// Stores record it next to each blob.
func (s *Serializer) Format() string {
	f := s.config.Codec.Name() + "+" + string(s.config.Compression)
	if len(s.config.EncryptKey) > 0 {
		f += "+aes"
	}
	return f
}

// Serialize encodes, compresses, and encrypts data
func (s *Serializer) Serialize(v interface{}) ([]byte, error) {
	data, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("codec encoding failed: %w", err)
	}

	data, err = s.compress(data)
	if err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}

	if len(s.config.EncryptKey) > 0 {
		data, err = s.encrypt(data)
		if err != nil {
			return nil, fmt.Errorf("encryption failed: %w", err)
		}
	}

	return data, nil
}

// Deserialize decrypts, decompresses, and decodes data
func (s *Serializer) Deserialize(data []byte, v interface{}) error {
	var err error

	if len(s.config.EncryptKey) > 0 {
		data, err = s.decrypt(data)
		if err != nil {
			return fmt.Errorf("decryption failed: %w", err)
		}
	}

	data, err = s.decompress(data)
	if err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}

	if err := s.config.Codec.Decode(data, v); err != nil {
		return fmt.Errorf("codec decoding failed: %w", err)
	}
	return nil
}

// SerializeBytes stores a raw payload as a codec-wrapped blob
func (s *Serializer) SerializeBytes(payload []byte) ([]byte, error) {
	return s.Serialize(payload)
}

// DeserializeBytes reverses SerializeBytes
func (s *Serializer) DeserializeBytes(blob []byte) ([]byte, error) {
	var payload []byte
	if err := s.Deserialize(blob, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

func (s *Serializer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.config.EncryptKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// encrypt seals data with AES-GCM, prefixing the nonce
func (s *Serializer) encrypt(data []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func (s *Serializer) decrypt(data []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(data) < n {
		return nil, ErrCiphertextTooShort
	}
	return gcm.Open(nil, data[:n], data[n:], nil)
}

// JSONCodec implements JSON serialization on sonic's std-compatible config
type JSONCodec struct{}

func (c *JSONCodec) Encode(v interface{}) ([]byte, error) {
	return sonic.ConfigStd.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v interface{}) error {
	return sonic.ConfigStd.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

// MsgPackCodec implements MessagePack serialization
type MsgPackCodec struct{}

func (c *MsgPackCodec) Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *MsgPackCodec) Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

func (c *MsgPackCodec) Name() string {
	return "msgpack"
}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() Codec {
	return &JSONCodec{}
}

// NewMsgPackCodec creates a new MessagePack codec
func NewMsgPackCodec() Codec {
	return &MsgPackCodec{}
}

// DefaultSerializer is msgpack with zstd and no encryption
func DefaultSerializer() *Serializer {
	return &Serializer{config: SerializationConfig{
		Codec:       NewMsgPackCodec(),
		Compression: CompressionZstd,
	}}
}
