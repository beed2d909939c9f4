package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Response is the body of every non-data reply.
type Response struct {
	Message string  `json:"message"`
	Detail  string  `json:"detail,omitempty"`
	Errors  []Error `json:"errors,omitempty"`
}

// Error is scoped to one request parameter or poller.
type Error struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

func Write(rw http.ResponseWriter, status int, response any) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(response); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_, _ = rw.Write(buf.Bytes())
}
