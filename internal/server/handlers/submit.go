package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/3leaps/commundetect/pkg/jobqueue"
)

// Form field names, matching the published API.
const (
	algorithmField   = "algorithm"
	edgeFileField    = "edgefile"
	directedField    = "graphdirected"
	rootNetworkField = "rootnetwork"
)

// Submit accepts a community detection task.
//
// Required multipart fields: algorithm and edgefile. Validation failures
// are client errors at acceptance time; once a job id exists, all later
// failures surface through the polling response instead.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse multipart form: "+err.Error())
		return
	}

	algorithm := strings.TrimSpace(r.FormValue(algorithmField))
	if algorithm == "" {
		writeError(w, http.StatusBadRequest, "algorithm is a required field")
		return
	}

	edgeFile, _, err := r.FormFile(edgeFileField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "edgefile is a required file upload")
		return
	}
	defer func() { _ = edgeFile.Close() }()

	directed := false
	if raw := strings.TrimSpace(r.FormValue(directedField)); raw != "" {
		directed, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "graphdirected must be a boolean")
			return
		}
	}

	id, err := h.manager.Submit(jobqueue.SubmitRequest{
		Algorithm:   algorithm,
		Directed:    directed,
		RootNetwork: r.FormValue(rootNetworkField),
		EdgeList:    edgeFile,
	})
	if err != nil {
		h.logger.Error("unable to create task", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "unable to create task: "+err.Error())
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", strings.TrimSuffix(r.URL.Path, "/"), id))
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}
