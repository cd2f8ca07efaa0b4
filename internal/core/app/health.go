package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nsresolve/internal/core/ports"
	"nsresolve/internal/engine/index"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	// Index
	st := s.app.Index.Status()
	switch {
	case st.State != index.Ready.String():
		status.Status = "degraded"
		status.Components["index"] = st.State
	case !st.Indexed:
		status.Status = "degraded"
		status.Components["index"] = "rebuilding"
	default:
		status.Components["index"] = fmt.Sprintf("ok (%d files, %d classes)", st.Files, st.Classes)
	}

	// Store
	if _, err := s.app.store.Load(ctx); err != nil && !errors.Is(err, ports.ErrBlobNotFound) {
		status.Status = "degraded"
		status.Components["store"] = "error: " + err.Error()
	} else {
		status.Components["store"] = "ok"
	}

	s.app.watchMu.Lock()
	watching := s.app.activeWatcher != nil
	s.app.watchMu.Unlock()
	if watching {
		status.Components["watcher"] = "running"
	} else {
		status.Components["watcher"] = "stopped"
	}

	return status
}
