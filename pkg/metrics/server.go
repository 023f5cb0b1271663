package metrics

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// statusFamilies are the metric families summarised on the landing page.
var statusFamilies = []string{
	"channel_index_channels",
	"channel_index_terms",
	"channel_index_generation",
	"circuit_breaker_state",
	"catalog_reloads_total",
}

var statusPage = template.Must(template.New("status").Parse(`<html><body>
<h1>Channel Search Metrics</h1>
<p><a href="/metrics">/metrics</a></p>
<table>
{{range .}}<tr><td>{{.Name}}</td><td>{{.Value}}</td></tr>
{{end}}</table>
</body></html>`))

type statusRow struct {
	Name  string
	Value string
}

// StartServer serves /metrics and a status page on port in the background
// and returns its shutdown function.
func StartServer(port int, m *Metrics) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      m.mux(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}

func (m *Metrics) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		rows, err := m.statusRows()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := statusPage.Execute(w, rows); err != nil {
			slog.Warn("rendering metrics status page", "error", err)
		}
	})
	return mux
}

// statusRows gathers the index and catalog families, one row per series.
func (m *Metrics) statusRows() ([]statusRow, error) {
	families, err := m.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	var rows []statusRow
	for _, name := range statusFamilies {
		f, ok := byName[name]
		if !ok {
			continue
		}
		series := make([]statusRow, 0, len(f.GetMetric()))
		for _, metric := range f.GetMetric() {
			series = append(series, statusRow{
				Name:  name + labelSuffix(metric.GetLabel()),
				Value: formatValue(metric),
			})
		}
		sort.Slice(series, func(i, j int) bool { return series[i].Name < series[j].Name })
		rows = append(rows, series...)
	}
	return rows, nil
}

func labelSuffix(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func formatValue(metric *dto.Metric) string {
	switch {
	case metric.Gauge != nil:
		return fmt.Sprintf("%g", metric.GetGauge().GetValue())
	case metric.Counter != nil:
		return fmt.Sprintf("%g", metric.GetCounter().GetValue())
	}
	return ""
}
