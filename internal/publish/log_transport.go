package publish

import (
	"fmt"
	"io"
	"sync"
)

// WriterTransport writes every payload as one line to W instead of sending
// it anywhere. It is always connected; used for dry runs on the bench.
type WriterTransport struct {
	W io.Writer

	mu sync.Mutex
}

func (w *WriterTransport) Connected() bool      { return true }
func (w *WriterTransport) Connect(string) error { return nil }
func (w *WriterTransport) Loop()                {}

func (w *WriterTransport) Publish(topic string, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.W, "%s %s\n", topic, payload)
	return err
}
