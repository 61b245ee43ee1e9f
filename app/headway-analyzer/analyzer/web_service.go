package analyzer

import (
	"encoding/json"
	logger "log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

// ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

// reportHandler serves the finished analysis report as JSON.
type reportHandler struct {
	log    *logger.Logger
	report *Report
}

// ServeHTTP implements reportHandler's http.Handler interface
func (h *reportHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(h.log, w, h.report)
}

// stopReportHandler serves a single stop's headways and statistics.
type stopReportHandler struct {
	log    *logger.Logger
	report *Report
}

// ServeHTTP implements stopReportHandler's http.Handler interface
func (h *stopReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stopId, err := strconv.Atoi(vars["stopId"])
	if err != nil || stopId < 1 || stopId > len(h.report.Stops) {
		http.Error(w, "unknown stop", http.StatusNotFound)
		return
	}
	writeJSON(h.log, w, h.report.Stops[stopId-1])
}

func writeJSON(log *logger.Logger, w http.ResponseWriter, value interface{}) {
	bytes, err := json.Marshal(value)
	if err != nil {
		log.Printf("Failed to marshal report to json, error:%s", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(bytes); err != nil {
		log.Printf("Error writing bytes to http.ResponseWriter, error:%s", err)
	}
}

// newRouter builds the report web service's routes.
func newRouter(log *logger.Logger, report *Report) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/", &defaultHttpHandler{})
	router.Handle("/headways", &reportHandler{log: log, report: report})
	router.Handle("/headways/{stopId}", &stopReportHandler{log: log, report: report})
	return router
}

// ServeReport blocks serving the finished report over http at addr.
func ServeReport(log *logger.Logger, addr string, report *Report) error {
	log.Printf("serving headway report at %s", addr)
	return http.ListenAndServe(addr, newRouter(log, report))
}
