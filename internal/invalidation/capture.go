package invalidation

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// maxCapture bounds how much of a response body is kept for inspection.
// Larger bodies are passed through but not parsed.
const maxCapture = 64 << 10

// captureWriter passes every write through unchanged while recording the
// status and the beginning of the body.
type captureWriter struct {
	http.ResponseWriter
	code      int
	body      bytes.Buffer
	truncated bool
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{ResponseWriter: w}
}

func (cw *captureWriter) WriteHeader(code int) {
	if cw.code == 0 {
		cw.code = code
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.code == 0 {
		cw.code = http.StatusOK
	}
	if !cw.truncated {
		if cw.body.Len()+len(b) > maxCapture {
			cw.truncated = true
			cw.body.Reset()
		} else {
			cw.body.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (cw *captureWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

func (cw *captureWriter) status() int {
	if cw.code == 0 {
		return http.StatusOK
	}
	return cw.code
}

// succeeded reports a 2xx status whose body does not flag failure.
func (cw *captureWriter) succeeded() bool {
	code := cw.status()
	if code < 200 || code >= 300 {
		return false
	}
	if cw.truncated {
		return true
	}
	return !flagsFailure(cw.body.Bytes())
}

// flagsFailure reports whether body is a JSON object with "ok": false.
func flagsFailure(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return false
	}
	var envelope struct {
		OK *bool `json:"ok"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&envelope); err != nil {
		return false
	}
	return envelope.OK != nil && !*envelope.OK
}
