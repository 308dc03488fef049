package encoding

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
)

// BufferPool pools bytes.Buffer for JSON encoding of API responses and event payloads
var BufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// maxPooledBuffer keeps outlier responses from pinning memory in the pool
const maxPooledBuffer = 64 * 1024

// GetBuffer retrieves an empty bytes.Buffer from the pool
func GetBuffer() *bytes.Buffer {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a bytes.Buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	BufferPool.Put(buf)
}

// EncodeJSON encodes v to JSON using a pooled buffer.
// The returned slice is a copy and safe to keep.
func EncodeJSON(v interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := encode(buf, v); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// WriteJSON encodes v and writes it with the given status.
// Nothing is written when encoding fails, so the caller can still send an error.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := encode(buf, v); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

func encode(buf *bytes.Buffer, v interface{}) error {
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	// drop the newline Encode appends
	buf.Truncate(buf.Len() - 1)
	return nil
}
