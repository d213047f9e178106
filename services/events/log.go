package eventsvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// LogPublisher prints events (DEV, or when no broker is configured).
type LogPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger core.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, evt core.Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}
	p.logger.Debug("event " + evt.Type + ": " + string(data))
	return nil
}
