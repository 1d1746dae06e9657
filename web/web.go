// Package web serves a read-only dashboard over the option tables: filter and
// sort the stored rows, export the current view as CSV, and eyeball disk
// usage trends.
package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erikbryant/optionsdb/export"
	"github.com/erikbryant/optionsdb/store"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Server renders the dashboard pages from one Store.
type Server struct {
	db     *store.Store
	router *mux.Router
}

// NewServer wires the routes.
func NewServer(db *store.Store) *Server {
	s := &Server{db: db, router: mux.NewRouter()}

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/historical", s.handleHistorical).Methods("GET")
	s.router.HandleFunc("/historical.csv", s.handleHistoricalCSV).Methods("GET")
	s.router.HandleFunc("/options", s.handleOptions).Methods("GET")
	s.router.HandleFunc("/options.csv", s.handleOptionsCSV).Methods("GET")
	s.router.HandleFunc("/atmoption", s.handleATMOption).Methods("GET")
	s.router.HandleFunc("/storage", s.handleStorage).Methods("GET")

	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe blocks serving the dashboard on addr.
func (s *Server) ListenAndServe(addr string) error {
	log.WithField("addr", addr).Info("Serving dashboard")
	return http.ListenAndServe(addr, s.router)
}

// parseQuery turns ?f_<col>=x&s_<col>=asc&limit=n parameters into a Query.
// Unknown columns pass through; the store rejects them.
func parseQuery(values url.Values) store.Query {
	q := store.Query{
		Filters: map[string]string{},
		Sorts:   map[string]string{},
	}

	for key, vals := range values {
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		switch {
		case strings.HasPrefix(key, "f_"):
			q.Filters[strings.TrimPrefix(key, "f_")] = vals[0]
		case strings.HasPrefix(key, "s_"):
			q.Sorts[strings.TrimPrefix(key, "s_")] = vals[0]
		case key == "limit":
			if n, err := strconv.Atoi(vals[0]); err == nil {
				q.Limit = n
			}
		}
	}

	return q
}

var pageTemplate = template.Must(template.New("table").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 1em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 2px 8px; text-align: right; }
th { background: #eee; }
nav a { margin-right: 1em; }
</style>
</head>
<body>
<nav>
<a href="/historical">historical</a>
<a href="/options">options</a>
<a href="/atmoption">atmoption</a>
<a href="/storage">storage</a>
{{if .CSVLink}}<a href="{{.CSVLink}}">csv</a>{{end}}
</nav>
<h1>{{.Title}}</h1>
<table>
<tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
</body>
</html>
`))

type page struct {
	Title   string
	CSVLink string
	Columns []string
	Rows    [][]string
}

func (s *Server) render(w http.ResponseWriter, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, p); err != nil {
		log.WithError(err).Error("Unable to render page")
	}
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case *float64:
		if x == nil {
			return ""
		}
		return strconv.FormatFloat(*x, 'f', -1, 64)
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case time.Time:
		return x.Format("2006-01-02")
	case string:
		return x
	}
	return fmt.Sprintf("%v", v)
}

// historyCells formats one history row in historyColumns order.
func historyCells(r store.HistoryRow) []string {
	return []string{
		cell(r.Symbol), cell(r.QuoteDate), cell(r.UnderlyingLast), cell(r.ExpireDate),
		cell(r.CallVolume), cell(r.CallOpen), cell(r.CallHigh), cell(r.CallLow), cell(r.CallClose),
		cell(r.Strike),
		cell(r.PutClose), cell(r.PutLow), cell(r.PutHigh), cell(r.PutOpen), cell(r.PutVolume),
		cell(r.ItmPercCalls), cell(r.ItmPercPuts), cell(r.DTE),
	}
}

// chainCells formats one chain row in chainColumns order.
func chainCells(r store.ChainRow) []string {
	return []string{
		cell(r.Symbol), cell(r.QuoteDate), cell(r.RunTime), cell(r.UnderlyingLast),
		cell(r.ExpireDate), cell(r.Strike),
		cell(r.CallSymbol), cell(r.CallVolume), cell(r.CallBid), cell(r.CallAsk), cell(r.CallMid),
		cell(r.PutSymbol), cell(r.PutVolume), cell(r.PutBid), cell(r.PutAsk), cell(r.PutMid),
		cell(r.ItmPercCalls), cell(r.ItmPercPuts), cell(r.DTE),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/historical", http.StatusFound)
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.SelectHistory(parseQuery(r.URL.Query()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := page{
		Title:   "Historical EOD",
		CSVLink: "/historical.csv?" + r.URL.RawQuery,
		Columns: store.HistoryColumns(),
	}
	for _, row := range rows {
		p.Rows = append(p.Rows, historyCells(row))
	}

	s.render(w, p)
}

func (s *Server) handleHistoricalCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.SelectHistory(parseQuery(r.URL.Query()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="historical.csv"`)
	if err := export.Write(w, rows); err != nil {
		log.WithError(err).Error("Unable to stream CSV")
	}
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.SelectChain(parseQuery(r.URL.Query()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := page{
		Title:   "Chain snapshots",
		CSVLink: "/options.csv?" + r.URL.RawQuery,
		Columns: store.ChainColumns(),
	}
	for _, row := range rows {
		p.Rows = append(p.Rows, chainCells(row))
	}

	s.render(w, p)
}

func (s *Server) handleOptionsCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.SelectChain(parseQuery(r.URL.Query()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="options.csv"`)
	if err := export.Write(w, rows); err != nil {
		log.WithError(err).Error("Unable to stream CSV")
	}
}

// handleATMOption is the at-the-money view. No query backs it yet, so it
// renders the frame with no rows.
func (s *Server) handleATMOption(w http.ResponseWriter, r *http.Request) {
	s.render(w, page{
		Title:   "ATM options",
		Columns: store.ChainColumns(),
	})
}

var storageTemplate = template.Must(template.New("storage").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 1em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 2px 8px; text-align: right; }
th { background: #eee; }
nav a { margin-right: 1em; }
.chart-wrap { max-width: 900px; }
</style>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"></script>
</head>
<body>
<nav>
<a href="/historical">historical</a>
<a href="/options">options</a>
<a href="/atmoption">atmoption</a>
<a href="/storage">storage</a>
</nav>
<h1>{{.Title}}</h1>
<div class="chart-wrap"><canvas id="usageChart" aria-label="Storage usage chart"></canvas></div>
<table>
<tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
<script>
new Chart(document.getElementById("usageChart"), {
	type: "line",
	data: {
		labels: {{.Labels}},
		datasets: [
			{label: "root used %", data: {{.RootPct}}},
			{label: "volume used %", data: {{.VolPct}}}
		]
	},
	options: {scales: {y: {min: 0, max: 100}}}
});
</script>
</body>
</html>
`))

type storagePage struct {
	Title   string
	Labels  template.JS
	RootPct template.JS
	VolPct  template.JS
	Columns []string
	Rows    [][]string
}

func jsArray(v interface{}) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return template.JS("[]")
	}
	return template.JS(b)
}

// storageView shapes the snapshot rows into the per-day trend series the
// chart plots, plus the table rows.
func storageView(rows []store.DiskRow) storagePage {
	labels := []string{}
	rootPct := []float64{}
	volPct := []float64{}

	p := storagePage{
		Title:   "Disk usage",
		Columns: []string{"date", "root path", "root used %", "volume path", "volume used %"},
	}

	for _, row := range rows {
		rp := pctUsed(row.RootUsedBytes, row.RootTotalBytes)
		vp := pctUsed(row.VolUsedBytes, row.VolTotalBytes)

		labels = append(labels, row.CapturedAt.Format("2006-01-02"))
		rootPct = append(rootPct, math.Round(rp*10000)/10000)
		volPct = append(volPct, math.Round(vp*10000)/10000)

		p.Rows = append(p.Rows, []string{
			row.CapturedAt.Format("2006-01-02"),
			row.RootPath,
			fmt.Sprintf("%.2f", rp),
			row.VolumePath,
			fmt.Sprintf("%.2f", vp),
		})
	}

	p.Labels = jsArray(labels)
	p.RootPct = jsArray(rootPct)
	p.VolPct = jsArray(volPct)

	return p
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.SelectDiskUsage()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := storageTemplate.Execute(w, storageView(rows)); err != nil {
		log.WithError(err).Error("Unable to render page")
	}
}

func pctUsed(used, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}
