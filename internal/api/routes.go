package api

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/stacklok/movies-etl/internal/api/common"
	"github.com/stacklok/movies-etl/internal/checkpoint"
	etlsync "github.com/stacklok/movies-etl/internal/sync"
	"github.com/stacklok/movies-etl/internal/versions"
)

// Routes serves the loop state
type Routes struct {
	provider StatusProvider
}

// NewRoutes creates a new Routes instance reading from provider
func NewRoutes(provider StatusProvider) *Routes {
	return &Routes{provider: provider}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()
	common.WriteJSONResponse(w, VersionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	}, http.StatusOK)
}

// readiness reports ready while the loop holds the run guard
func (rr *Routes) readiness(w http.ResponseWriter, _ *http.Request) {
	s := rr.provider.Status()
	if s.State != etlsync.StateRunning {
		common.WriteErrorResponse(w, fmt.Sprintf("sync loop not running: state %s", s.State),
			http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
}

func (rr *Routes) status(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, rr.provider.Status(), http.StatusOK)
}

func (rr *Routes) watermark(w http.ResponseWriter, r *http.Request) {
	name, err := common.GetAndValidateURLParam(r, "stream")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	stream := checkpoint.Stream(name)
	if !slices.Contains(checkpoint.Streams, stream) {
		common.WriteErrorResponse(w, fmt.Sprintf("unknown stream %q", name), http.StatusNotFound)
		return
	}

	resp := WatermarkResponse{Stream: string(stream)}
	if mark := rr.provider.Status().Watermarks.Get(stream); !mark.IsZero() {
		utc := mark.UTC()
		resp.Watermark = &utc
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

