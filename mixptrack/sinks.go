package mixptrack

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/journal"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/sink"
)

// Sink is the analytics capability tracking calls are dispatched to.
type Sink = sink.Sink

// CallFunc receives one flattened sink call.
type CallFunc = sink.CallFunc

// Journal is the SQLite call journal.
type Journal = journal.Store

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewMixpanelSink creates a sink posting to Mixpanel's ingestion API.
// An empty endpoint selects the public API.
func NewMixpanelSink(token, endpoint string, logger *slog.Logger) Sink {
	opts := []sink.MixpanelOption{sink.WithMixpanelLogger(logger)}
	if endpoint != "" {
		opts = append(opts, sink.WithMixpanelEndpoint(endpoint))
	}
	return sink.NewMixpanel(token, opts...)
}

// NewCallbackSink creates an in-process sink delivering every call to fn.
func NewCallbackSink(fn CallFunc) Sink {
	return sink.NewCallback(fn)
}

// OpenJournal opens the SQLite call journal at path.
func OpenJournal(path string) (*Journal, error) {
	return journal.Open(path)
}

// BuildSinks instantiates the configured sinks. Type "page" has no
// instance here: it switches on the in-page sink of browser pages, which
// is reported by inPage. The journal, when configured, is returned so its
// calls can be queried.
func BuildSinks(cfg *Config, logger *slog.Logger) (sinks []Sink, j *Journal, inPage bool, err error) {
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, NewWebhookSink(sc.URL, logger))
		case "mixpanel":
			sinks = append(sinks, NewMixpanelSink(sc.Token, sc.URL, logger))
		case "journal":
			if j != nil {
				return nil, nil, false, fmt.Errorf("mixptrack: only one journal sink is supported")
			}
			j, err = OpenJournal(sc.Path)
			if err != nil {
				return nil, nil, false, err
			}
			sinks = append(sinks, j.Sink())
		case "page":
			inPage = true
		default:
			return nil, nil, false, fmt.Errorf("mixptrack: unknown sink type %q", sc.Type)
		}
	}
	return sinks, j, inPage, nil
}

// Call is one flattened sink call, as delivered to callbacks and stored
// in the journal.
type Call = directive.Call
