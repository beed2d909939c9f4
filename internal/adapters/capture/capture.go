package capture

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

const frameHeaderLen = 12

// Frame is one captured record as stored on disk. Fields holds the
// MessagePack map of the record's fields in their original order.
type Frame struct {
	Seq      uint64
	Received time.Time
	Source   string
	Fields   []byte
}

// FileRecorder appends pushed records to a capture file.
//
// entry format: [8 bytes seq][4 bytes len][len bytes msgpack]
// where the msgpack body is [received_unix_nano, source, {fields...}].
type FileRecorder struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *bufio.Writer
	frames    uint64
	sizeBytes int64
}

func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	rec := &FileRecorder{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, 1<<16),
	}
	if err := rec.repairTail(); err != nil {
		f.Close()
		return nil, err
	}
	return rec, nil
}

// repairTail drops a partially written last frame left by a crash.
func (r *FileRecorder) repairTail() error {
	var offset int64
	err := scan(r.path, func(_ [frameHeaderLen]byte, body []byte) error {
		offset += frameHeaderLen + int64(len(body))
		r.frames++
		return nil
	})
	if err != nil && !errors.Is(err, errTruncated) {
		return err
	}
	if err := r.file.Truncate(offset); err != nil {
		return err
	}
	r.sizeBytes = offset
	_, err = r.file.Seek(0, io.SeekEnd)
	return err
}

func (r *FileRecorder) Append(rec domain.Record) error {
	body, err := encodeBody(rec)
	if err != nil {
		return fmt.Errorf("capture encode seq %d: %w", rec.Seq, err)
	}

	var hdr [frameHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], rec.Seq)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(body)))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return os.ErrClosed
	}
	if _, err := r.writer.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := r.writer.Write(body); err != nil {
		return err
	}
	r.frames++
	r.sizeBytes += int64(len(body) + len(hdr))
	return nil
}

func (r *FileRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	return r.writer.Flush()
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := errors.Join(r.writer.Flush(), r.file.Sync(), r.file.Close())
	r.file = nil
	return err
}

// Frames returns how many frames the file holds, including ones
// written before this recorder was opened.
func (r *FileRecorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *FileRecorder) SizeBytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sizeBytes
}

func encodeBody(rec domain.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(3); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(rec.Received.UnixNano()); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(rec.Source); err != nil {
		return nil, err
	}
	if err := enc.EncodeMapLen(len(rec.Fields)); err != nil {
		return nil, err
	}
	for _, f := range rec.Fields {
		if err := enc.EncodeString(f.Key); err != nil {
			return nil, err
		}
		if err := enc.Encode(f.Value); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeFrame(seq uint64, body []byte) (Frame, error) {
	r := bytes.NewReader(body)
	dec := msgpack.NewDecoder(r)
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return Frame{}, err
	}
	if n != 3 {
		return Frame{}, fmt.Errorf("frame has %d elements, want 3", n)
	}
	nanos, err := dec.DecodeInt64()
	if err != nil {
		return Frame{}, err
	}
	source, err := dec.DecodeString()
	if err != nil {
		return Frame{}, err
	}
	fields := body[len(body)-r.Len():]
	return Frame{
		Seq:      seq,
		Received: time.Unix(0, nanos),
		Source:   source,
		Fields:   fields,
	}, nil
}

var errTruncated = errors.New("capture: truncated frame")

func scan(path string, fn func(hdr [frameHeaderLen]byte, body []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for {
		var hdr [frameHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return errTruncated
			}
			return fmt.Errorf("capture scan header: %w", err)
		}
		body := make([]byte, binary.BigEndian.Uint32(hdr[8:12]))
		if _, err := io.ReadFull(reader, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return errTruncated
			}
			return fmt.Errorf("capture scan body: %w", err)
		}
		if err := fn(hdr, body); err != nil {
			return err
		}
	}
}

// ReadFile calls fn for every complete frame in path. A truncated tail is
// ignored.
func ReadFile(path string, fn func(Frame) error) error {
	err := scan(path, func(hdr [frameHeaderLen]byte, body []byte) error {
		fr, err := decodeFrame(binary.BigEndian.Uint64(hdr[0:8]), body)
		if err != nil {
			return fmt.Errorf("corrupt capture frame: %w", err)
		}
		return fn(fr)
	})
	if errors.Is(err, errTruncated) {
		return nil
	}
	return err
}

var _ ports.Recorder = (*FileRecorder)(nil)
