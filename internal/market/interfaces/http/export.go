package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	marketapp "microgrid-market/internal/market/application"
	"microgrid-market/internal/market/interfaces"
	"microgrid-market/internal/observability/metrics"
)

// ExportHandler serves GET /api/v1/history/export.pdf and export.xlsx.
type ExportHandler struct {
	engine *marketapp.Engine
}

// NewExportHandler constructs a handler.
func NewExportHandler(engine *marketapp.Engine) (*ExportHandler, error) {
	if engine == nil {
		return nil, errors.New("export handler: nil engine")
	}
	return &ExportHandler{engine: engine}, nil
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	format := strings.TrimPrefix(r.URL.Path, "/api/v1/history/export.")
	if format != "pdf" && format != "xlsx" {
		http.Error(w, "unknown export format", http.StatusNotFound)
		return
	}

	started := time.Now()
	snapshot, err := h.engine.Snapshot(r.Context())
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		respondError(w, err)
		return
	}

	var payload []byte
	var contentType string
	switch format {
	case "pdf":
		payload, err = interfaces.BuildHistoryPDF(snapshot.GridStatus, snapshot.Pricing, snapshot.RecentHistory)
		contentType = "application/pdf"
	case "xlsx":
		payload, err = interfaces.BuildHistoryXLSX(snapshot.GridStatus, snapshot.Pricing, snapshot.RecentHistory)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, "export render error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(started))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=trade-history.%s", format))
	_, _ = w.Write(payload)
}
