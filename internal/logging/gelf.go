package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFWriter dials a Graylog GELF UDP input. Each Write becomes one message.
func NewGELFWriter(addr string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("dial graylog %s: %w", addr, err)
	}
	w.Facility = ServiceName
	return w, nil
}

// NewGELFHandler returns a JSON slog handler that ships records to Graylog.
// The returned closer releases the UDP socket.
func NewGELFHandler(addr, level string) (slog.Handler, io.Closer, error) {
	w, err := NewGELFWriter(addr)
	if err != nil {
		return nil, nil, err
	}
	return slog.NewJSONHandler(w, handlerOptions(parseLevel(level))), w, nil
}
