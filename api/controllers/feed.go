package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/unicampus/campus-backend/api/responses"
	"github.com/unicampus/campus-backend/internal/feed"
	pkgerrors "github.com/unicampus/campus-backend/pkg/errors"
	"github.com/unicampus/campus-backend/pkg/logger"
)

var feedHeartbeatInterval = 25 * time.Second

type changeSource interface {
	Changes(ctx context.Context) (<-chan feed.Change, error)
}

// ChangeFeed streams row changes the caller may see as server-sent events.
// ?tables= narrows the stream; an empty list means every table.
func ChangeFeed(source changeSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			unavailable(w, r, logg, "change feed")
			return
		}
		p, ok := principal(w, r, logg)
		if !ok {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		changes, err := source.Changes(ctx)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to change feed"))
			return
		}

		viewer := feed.Viewer{UserID: p.UserID, Role: p.Role, VendorID: p.VendorID}
		tables := feed.ParseTables(r.URL.Query().Get("tables"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		heartbeat := time.NewTicker(feedHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case change, open := <-changes:
				if !open {
					return
				}
				if !feed.Wants(tables, change) || !viewer.CanSee(change) {
					continue
				}
				payload, err := json.Marshal(change)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
