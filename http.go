package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

type HTTPConfig struct {
	Addr     string
	Log      *Logger
	Store    *SnapshotStore
	Screener *Screener
	Params   *Params
	Hub      *Hub
	Source   string
	Run      RunContext
	M        *Metrics
}

type HTTPServer struct {
	cfg HTTPConfig
}

func NewHTTPServer(cfg HTTPConfig) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(cfg),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func newRouter(cfg HTTPConfig) http.Handler {
	mux := http.NewServeMux()
	hs := &HTTPServer{cfg: cfg}

	mux.HandleFunc("/", hs.handleDashboard)
	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/symbols", hs.handleSymbols)
	mux.HandleFunc("/view", hs.handleView)
	mux.HandleFunc("/refresh", hs.handleRefresh)
	mux.HandleFunc("/params", hs.handleParams)
	mux.HandleFunc("/rank/trading", hs.handleRankTrading)
	mux.HandleFunc("/rank/value", hs.handleRankValue)
	mux.HandleFunc("/chart", hs.handleChart)
	if cfg.Hub != nil {
		mux.HandleFunc("/ws", cfg.Hub.ServeWS)
	}
	return mux
}

func (hs *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := hs.cfg.M.Snapshot()
	snap["run"] = map[string]any{
		"run_id":    hs.cfg.Run.ID,
		"run_start": hs.cfg.Run.Start.Format(time.RFC3339Nano),
	}
	snap["feed"] = map[string]any{
		"source":      hs.cfg.Source,
		"instruments": hs.cfg.Store.Len(),
	}
	if hs.cfg.Hub != nil {
		snap["ws_clients"] = hs.cfg.Hub.ClientCount()
	}
	writeJSON(w, snap)
}

func (hs *HTTPServer) handleSymbols(w http.ResponseWriter, r *http.Request) {
	recs := hs.cfg.Store.CurrentRecords()
	writeJSON(w, map[string]any{
		"count":   len(recs),
		"symbols": toRows(recs),
	})
}

func (hs *HTTPServer) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, hs.cfg.Screener.Latest())
}

func (hs *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, hs.cfg.Screener.Tick(r.Context()))
}

func (hs *HTTPServer) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, hs.cfg.Params.Get())
	case http.MethodPost:
		const maxBody = 1 << 12
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		next := hs.cfg.Params.Get()
		if err := json.Unmarshal(b, &next); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		stored, err := hs.cfg.Params.Set(next)
		if err != nil {
			if errors.Is(err, ErrInvalidParams) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hs.cfg.Log.Infof("params updated rsi_max=%.1f min_volume=%d", stored.RSIMax, stored.MinVolume)
		hs.cfg.Screener.Tick(r.Context())
		writeJSON(w, stored)
	default:
		http.Error(w, "GET or POST", http.StatusMethodNotAllowed)
	}
}

// /rank/trading ranks the live snapshot with ad-hoc params; missing query
// values fall back to the current params.
func (hs *HTTPServer) handleRankTrading(w http.ResponseWriter, r *http.Request) {
	p := hs.cfg.Params.Get()
	q := r.URL.Query()
	if s := q.Get("rsi_max"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			http.Error(w, "bad rsi_max", http.StatusBadRequest)
			return
		}
		p.RSIMax = v
	}
	if s := q.Get("min_volume"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, "bad min_volume", http.StatusBadRequest)
			return
		}
		p.MinVolume = v
	}
	p, err := p.normalize()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pol := TradingPolicy(p.RSIMax, p.MinVolume)
	pol.Limit = parseLimit(r, pol.Limit)
	rows := toRows(Rank(hs.cfg.Store.CurrentRecords(), pol))
	writeJSON(w, map[string]any{
		"policy": pol.Name,
		"params": p,
		"limit":  pol.Limit,
		"rows":   rows,
	})
}

func (hs *HTTPServer) handleRankValue(w http.ResponseWriter, r *http.Request) {
	pol := ValuePolicy()
	pol.Limit = parseLimit(r, pol.Limit)
	rows := toRows(Rank(hs.cfg.Store.CurrentRecords(), pol))
	writeJSON(w, map[string]any{
		"policy": pol.Name,
		"limit":  pol.Limit,
		"rows":   rows,
	})
}

func (hs *HTTPServer) handleChart(w http.ResponseWriter, r *http.Request) {
	field := FieldRSI
	if s := r.URL.Query().Get("field"); s != "" {
		f, err := ParseField(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		field = f
	}
	writeJSON(w, map[string]any{
		"field":  field.String(),
		"values": Summarize(hs.cfg.Store.CurrentRecords(), field),
	})
}

func parseLimit(r *http.Request, def int) int {
	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 && v <= 50 {
			return v
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func (hs *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, dashboardHTML)
}

const dashboardHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>PSX Stock Screener</title>
  <style>
    body { font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Arial; background:#0c0c0f; color:#eaeaea; margin:0; }
    header { display:flex; justify-content:space-between; align-items:center; padding:12px 16px; border-bottom:1px solid #1c1f25; background:#0d0d12; gap:12px; flex-wrap:wrap; }
    .pill { padding:6px 10px; border-radius:999px; background:#2a2f3a; font-size:12px; }
    main { max-width: 1100px; margin: 16px auto; padding: 0 16px; }
    table { width:100%; border-collapse: collapse; font-variant-numeric: tabular-nums; margin-bottom: 24px; }
    th, td { padding:8px 10px; border-bottom:1px solid #1c1f25; text-align:right; }
    th:first-child, td:first-child { text-align:left; }
    .muted { color:#8a8f98; }
    .controls { display:flex; gap:16px; align-items:center; flex-wrap:wrap; margin: 8px 0 16px; }
    .bar { display:flex; align-items:center; gap:8px; margin:4px 0; }
    .bar .lbl { width:70px; }
    .bar .fill { background:#2563eb; height:16px; border-radius:4px; }
    input { background:#0d0d12; color:#eaeaea; border:1px solid #2a2f3a; border-radius:6px; padding:4px 6px; }
  </style>
</head>
<body>
<header>
  <div><b>PSX Stock Screener</b> <span class="muted">trading &amp; value picks</span></div>
  <div class="pill" id="status">connecting…</div>
</header>
<main>
  <div class="controls">
    <label>Max RSI <input id="rsi" type="range" min="10" max="70" value="35"/> <span id="rsiv">35</span></label>
    <label>Min Volume <input id="vol" type="number" value="300000" step="10000"/></label>
  </div>
  <div class="muted" id="meta"></div>

  <h3>Top 5 Daily Trading Stocks</h3>
  <table><thead><tr><th>Ticker</th><th>Price</th><th>Volume</th><th>RSI</th><th>P/E</th><th>Yield</th><th>EPS</th></tr></thead>
  <tbody id="trading"></tbody></table>

  <h3>Top Value Investing Picks</h3>
  <table><thead><tr><th>Ticker</th><th>Price</th><th>Volume</th><th>RSI</th><th>P/E</th><th>Yield</th><th>EPS</th></tr></thead>
  <tbody id="value"></tbody></table>

  <h3 id="charttitle">RSI Distribution of All Stocks</h3>
  <div id="chart"></div>
</main>
<script>
function esc(s) {
  return (''+s).replaceAll('&','&amp;').replaceAll('<','&lt;').replaceAll('>','&gt;').replaceAll('"','&quot;').replaceAll("'",'&#39;');
}
function num(v, d) { return (v === null || v === undefined) ? '' : Number(v).toFixed(d); }
function rows(id, list) {
  const tb = document.getElementById(id);
  tb.innerHTML = '';
  for (const r of (list || [])) {
    const tr = document.createElement('tr');
    tr.innerHTML = '<td><b>' + esc(r.key) + '</b></td><td>' + num(r.price, 2) + '</td><td>' + (r.volume ?? '') +
      '</td><td>' + num(r.rsi, 1) + '</td><td>' + num(r.pe_ratio, 2) + '</td><td>' + num(r.dividend_yield, 2) +
      '</td><td>' + num(r.eps, 2) + '</td>';
    tb.appendChild(tr);
  }
}
function chart(c) {
  const el = document.getElementById('chart');
  el.innerHTML = '';
  document.getElementById('charttitle').textContent = (c.field || '').toUpperCase() + ' Distribution of All Stocks';
  const vals = c.values || {};
  const max = Math.max(1, ...Object.values(vals));
  for (const k of (c.keys || [])) {
    const d = document.createElement('div');
    d.className = 'bar';
    d.innerHTML = '<span class="lbl">' + esc(k) + '</span><span class="fill" style="width:' + (400 * vals[k] / max) + 'px"></span><span class="muted">' + num(vals[k], 1) + '</span>';
    el.appendChild(d);
  }
}
function render(v) {
  document.getElementById('meta').textContent = 'as of ' + v.as_of + ' · session ' + v.session + ' · instruments ' + v.count;
  document.getElementById('rsi').value = v.params.rsi_max;
  document.getElementById('rsiv').textContent = v.params.rsi_max;
  document.getElementById('vol').value = v.params.min_volume;
  rows('trading', v.trading);
  rows('value', v.value);
  chart(v.chart);
}
async function setParams() {
  const body = {rsi_max: Number(document.getElementById('rsi').value), min_volume: Number(document.getElementById('vol').value)};
  await fetch('/params', {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body)});
}
document.getElementById('rsi').addEventListener('input', e => document.getElementById('rsiv').textContent = e.target.value);
document.getElementById('rsi').addEventListener('change', setParams);
document.getElementById('vol').addEventListener('change', setParams);

function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = ev => {
    const m = JSON.parse(ev.data);
    if (m.type === 'view') render(m.view);
    if (m.type === 'status') document.getElementById('status').textContent = m.text;
  };
  ws.onclose = () => { document.getElementById('status').textContent = 'disconnected'; setTimeout(connect, 2000); };
}
fetch('/view', {cache:'no-store'}).then(r => r.json()).then(render).catch(() => {});
connect();
</script>
</body>
</html>`
