package proto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Codec and framing errors.
var (
	// ErrTruncated reports that a declared length could not be satisfied
	// by the underlying stream. Never swallowed: the owning connection
	// is closed when it surfaces.
	ErrTruncated = errors.New("truncated frame")
	// ErrFrameTooLarge reports a length prefix beyond MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
)

// MaxFrameSize bounds a single command frame. A corrupted length prefix
// must not commit the reader to buffering gigabytes.
const MaxFrameSize = 256 << 20

// commandHeaderSize is id (8) plus type (2), covered by the length prefix.
const commandHeaderSize = 10

// WriteUint32 encodes v as 4 bytes little-endian.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint64 encodes v as 8 bytes little-endian.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteBool encodes v as a single byte, 1 for true.
func WriteBool(w io.Writer, v bool) error {
	b := []byte{0}
	if v {
		b[0] = 1
	}
	_, err := w.Write(b)
	return err
}

// WriteString encodes s as a 4-byte length prefix followed by UTF-8 bytes.
func WriteString(w io.Writer, s string) error {
	if err := WriteUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// WriteVec3 encodes v as three 4-byte little-endian floats.
func WriteVec3(w io.Writer, v [3]float32) error {
	var buf [12]byte
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	_, err := w.Write(buf[:])
	return err
}

// WriteJSON encodes v as a JSON document using the string encoding.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return WriteString(w, string(data))
}

// ReadUint32 decodes 4 little-endian bytes from r.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 decodes 8 little-endian bytes from r.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadBool decodes a single byte from r.
func ReadBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if err := readFull(r, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

// ReadString decodes a length-prefixed UTF-8 string from r.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return "", err
	}
	if n > MaxFrameSize {
		return "", fmt.Errorf("string length %d: %w", n, ErrFrameTooLarge)
	}
	buf := make([]byte, n)
	if err := readFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadVec3 decodes three 4-byte little-endian floats from r.
func ReadVec3(r io.Reader) ([3]float32, error) {
	var buf [12]byte
	var v [3]float32
	if err := readFull(r, buf[:]); err != nil {
		return v, err
	}
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// ReadJSON decodes a JSON document encoded via WriteJSON into v.
func ReadJSON(r io.Reader, v any) error {
	s, err := ReadString(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// readFull reads exactly len(buf) bytes, reporting a short read as a
// framing error. A clean EOF before the first byte passes through as
// io.EOF so callers can tell end-of-stream from a torn frame.
func readFull(r io.Reader, buf []byte) error {
	n, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) && n == 0 {
		return io.EOF
	}
	return fmt.Errorf("want %d bytes, got %d: %w", len(buf), n, ErrTruncated)
}

// WriteCommand frames cmd onto w: a 4-byte length prefix covering the
// rest of the frame, then id, type, and payload. The length goes first
// so a receiver knows how much to buffer before decoding.
func WriteCommand(w io.Writer, cmd *Command) error {
	if err := WriteUint32(w, uint32(commandHeaderSize+len(cmd.Payload))); err != nil {
		return err
	}
	if err := WriteUint64(w, cmd.ID); err != nil {
		return err
	}
	if err := writeUint16(w, uint16(cmd.Type)); err != nil {
		return err
	}
	_, err := w.Write(cmd.Payload)
	return err
}

// ReadCommand decodes one framed command from r. It returns io.EOF on a
// clean end of stream and an ErrTruncated-wrapped error when the stream
// dies mid-frame.
func ReadCommand(r io.Reader) (*Command, error) {
	size, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if size < commandHeaderSize {
		return nil, fmt.Errorf("frame length %d below header size: %w", size, ErrTruncated)
	}
	if size > MaxFrameSize {
		return nil, fmt.Errorf("frame length %d: %w", size, ErrFrameTooLarge)
	}

	body := make([]byte, size)
	if err := readFull(r, body); err != nil {
		return nil, err
	}

	br := bytes.NewReader(body)
	id, _ := ReadUint64(br)
	typ, _ := readUint16(br)
	payload := body[commandHeaderSize:]

	return &Command{ID: id, Type: MessageType(typ), Payload: payload}, nil
}

// EncodeCommand renders cmd to a byte slice using WriteCommand.
func EncodeCommand(cmd *Command) []byte {
	var buf bytes.Buffer
	_ = WriteCommand(&buf, cmd)
	return buf.Bytes()
}
