package handlers

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// serverStatus is the liveness/capacity probe payload.
type serverStatus struct {
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	PcDiskFull  int        `json:"pcDiskFull"`
	Load        [3]float64 `json:"load"`
	RestVersion string     `json:"restVersion"`
}

// ServerStatus reports service health: disk usage against the configured
// cutoff, system load, and the service version. An undeterminable disk
// usage is reported as -1 without failing the probe.
func (h *Handler) ServerStatus(w http.ResponseWriter, r *http.Request) {
	status := serverStatus{
		Status:      "ok",
		PcDiskFull:  -1,
		RestVersion: h.version,
	}

	pct, err := h.diskUsage()
	if err != nil {
		h.logger.Warn("unable to determine disk usage", zap.Error(err))
	} else {
		status.PcDiskFull = pct
	}
	if status.PcDiskFull >= h.diskFullCutoff {
		status.Status = "error"
		status.Message = "Disk is full"
	}

	load, err := h.loadAverages()
	if err != nil {
		h.logger.Warn("unable to determine load averages", zap.Error(err))
	} else {
		status.Load = load
	}

	writeJSON(w, http.StatusOK, status)
}

// rootDiskUsage returns the root filesystem's usage percentage.
func rootDiskUsage() (int, error) {
	var st unix.Statfs_t
	if err := unix.Statfs("/", &st); err != nil {
		return -1, err
	}
	if st.Blocks == 0 {
		return -1, nil
	}
	used := float64(st.Blocks-st.Bavail) / float64(st.Blocks)
	return int(used * 100), nil
}

// systemLoadAverages reads the 1/5/15 minute load averages.
func systemLoadAverages() ([3]float64, error) {
	var load [3]float64
	b, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return load, err
	}
	fields := strings.Fields(string(b))
	for i := 0; i < 3 && i < len(fields); i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return load, err
		}
		load[i] = v
	}
	return load, nil
}
