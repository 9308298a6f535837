package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/ingest"
	"github.com/iliyamo/farm-monitor/internal/middleware"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/queue"
)

var errNoFile = errors.New("no file uploaded")

// saveUpload stores the multipart file under dir/<kind>/<uuid>_<basename>.
// The basename is stripped of any directory part the client sent.
func saveUpload(c echo.Context, field, dir string, kind ingest.Kind) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", errNoFile
		}
		return "", err
	}
	name := filepath.Base(filepath.Clean("/" + fh.Filename))
	if name == "/" || name == "." {
		return "", errNoFile
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	target := filepath.Join(dir, string(kind))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(target, uuid.NewString()+"_"+name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", err
	}
	return path, dst.Close()
}

// importEvent builds the audit event for a finished import.  region is nil
// for kinds that are not tied to one region.
func importEvent(c echo.Context, rep ingest.Report, file string, region *model.Region, importErr error) queue.ImportCompletedEvent {
	ev := queue.ImportCompletedEvent{
		Kind:       string(rep.Kind),
		File:       filepath.Base(file),
		Rows:       rep.Rows,
		Records:    rep.Records,
		Failed:     importErr != nil,
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if region != nil {
		ev.RegionID = region.ID
		ev.RegionName = region.Name
	}
	if importErr != nil {
		ev.Error = importErr.Error()
	}
	if u, ok := middleware.CurrentUser(c); ok {
		ev.UserID = u.ID
		ev.UserEmail = u.Email
	}
	return ev
}

// publish hands the event to the broker when one is configured.  Failures
// are logged; the import result stands regardless.
func (h *InformationHandler) publish(c echo.Context, ev queue.ImportCompletedEvent) {
	if h.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 5*time.Second)
	defer cancel()
	if err := h.Events.PublishImportCompleted(ctx, ev); err != nil {
		h.Log.Warn(ctx, "publish import event", "kind", ev.Kind, "err", err)
	}
}
