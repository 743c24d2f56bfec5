package restserver

import (
	"html/template"
	"net/http"
	"time"

	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/types"
	"github.com/Owen1B/fusionflow/pkg/responseformat"
)

// Handlers holds the HTTP request handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
	indexTmpl  *template.Template
}

// NewHandlers creates the handler set for a controller.
func NewHandlers(c *Controller) *Handlers {
	tmpl, err := template.ParseFS(content, "assets/index.html.tmpl")
	if err != nil {
		log.Errorf("could not parse index template: %v", err)
	}
	return &Handlers{
		controller: c,
		formatter:  responseformat.NewFormatter(),
		indexTmpl:  tmpl,
	}
}

// latestResponse wraps the snapshot with display-ready derived values.
type latestResponse struct {
	Snapshot      types.Snapshot `json:"snapshot"`
	FlowMlPerHour float32        `json:"flow_ml_per_hour"`
	LEDColor      int            `json:"led_color"`
}

// GetLatest returns the most recent snapshot as JSON (or MessagePack with
// ?format=msgpack).
func (h *Handlers) GetLatest(w http.ResponseWriter, r *http.Request) {
	snap := h.controller.core.Snapshot()
	resp := latestResponse{
		Snapshot:      snap,
		FlowMlPerHour: snap.FlowMlPerHour(h.controller.cfg.Core.LiquidDensity),
		LEDColor:      int(h.controller.core.LEDColor()),
	}

	if err := h.formatter.WriteResponse(w, r, resp, nil); err != nil {
		log.Errorf("error writing latest snapshot response: %v", err)
	}
}

// eventResponse is the wire form of one recorded event.
type eventResponse struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// GetRecentEvents returns the most recent discrete core events.
func (h *Handlers) GetRecentEvents(w http.ResponseWriter, r *http.Request) {
	events := h.controller.RecentEvents()

	resp := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		er := eventResponse{
			Kind:      ev.Kind.String(),
			Timestamp: ev.Timestamp,
			Detail:    ev.Detail,
		}
		if ev.Kind == types.EventStateChanged {
			er.State = ev.NewState.WireName()
		}
		resp = append(resp, er)
	}

	if err := h.formatter.WriteResponse(w, r, resp, nil); err != nil {
		log.Errorf("error writing events response: %v", err)
	}
}

// ServeIndex renders the embedded dashboard page.
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	if h.indexTmpl == nil {
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	data := struct {
		DeviceID string
	}{
		DeviceID: h.controller.cfg.DeviceID,
	}
	if err := h.indexTmpl.Execute(w, data); err != nil {
		log.Errorf("error rendering index template: %v", err)
	}
}
