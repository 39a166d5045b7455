// Package handlers implements the community detection REST endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/3leaps/commundetect/pkg/jobqueue"
)

// maxUploadBytes bounds the in-memory portion of multipart parsing;
// larger uploads spill to temp files.
const maxUploadBytes = 32 << 20

// Handler serves the /cd/v1 endpoints. All collaborators are injected;
// the status probes are fields so tests can simulate disk pressure.
type Handler struct {
	manager *jobqueue.Manager
	logger  *zap.Logger

	version        string
	diskFullCutoff int

	// diskUsage reports the root filesystem's usage percentage.
	// Overridable in tests.
	diskUsage func() (int, error)

	// loadAverages reports the 1/5/15 minute load averages.
	loadAverages func() ([3]float64, error)
}

func New(manager *jobqueue.Manager, logger *zap.Logger, version string, diskFullCutoff int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager:        manager,
		logger:         logger,
		version:        version,
		diskFullCutoff: diskFullCutoff,
		diskUsage:      rootDiskUsage,
		loadAverages:   systemLoadAverages,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
