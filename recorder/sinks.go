package recorder

import (
	"fmt"
	"log/slog"

	"github.com/harrydbarnes/recordsteps/recorder/sink"
)

// BuildSinks instantiates the configured output backends. The session
// store sink is wired separately by the caller; this covers the
// optional extras.
func BuildSinks(cfgs []SinkConfig, logger *slog.Logger) ([]sink.Sink, error) {
	var out []sink.Sink
	for _, c := range cfgs {
		switch c.Type {
		case "stdout":
			out = append(out, sink.NewStdout(nil))
		case "webhook":
			if c.URL == "" {
				return nil, fmt.Errorf("recorder: webhook sink requires url")
			}
			out = append(out, sink.NewWebhook(c.URL, sink.WithWebhookLogger(logger)))
		default:
			return nil, fmt.Errorf("recorder: unknown sink type %q", c.Type)
		}
	}
	return out, nil
}
