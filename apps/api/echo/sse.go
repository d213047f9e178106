package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// sseWriter writes server-sent events, one JSON object per event.
type sseWriter struct {
	res *echo.Response
}

func newSSEWriter(ctx echo.Context) *sseWriter {
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()
	return &sseWriter{res: res}
}

func (w *sseWriter) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}
	if _, err = fmt.Fprintf(w.res, "data: %s\n\n", data); err != nil {
		return errors.Wrap(err, "writing event")
	}
	w.res.Flush()
	return nil
}
