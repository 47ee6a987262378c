package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

// NewStdout returns a sink writing one JSON line per call to w
// (os.Stdout when nil).
func NewStdout(w io.Writer) *Callback {
	if w == nil {
		w = os.Stdout
	}
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return NewCallback(func(_ context.Context, call directive.Call) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(envelope{Type: string(call.Op), Data: call})
	})
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
