package httpapi

import (
	"net/http"
	"time"

	"insights/internal/marketdata"
	"insights/pkg/insights"
)

const dateLayout = "2006-01-02"

// defaultBarsYears bounds a bars request with no start date.
const defaultBarsYears = 2

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	adjust := q.Get("adjust")
	if adjust == "" {
		adjust = insights.AdjustCashDividends
	}
	if !marketdata.ValidAdjust(adjust) {
		writeError(w, http.StatusBadRequest, "adjust must be one of CASHDIVIDENDS, TOTALRETURN, CAPITAL")
		return
	}

	end := s.opts.Now().UTC()
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		end = t
	}
	start := end.AddDate(-defaultBarsYears, 0, 0)
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		start = t
	}

	bars, err := s.source.Bars(r.Context(), symbol, adjust, start, end)
	if err != nil {
		s.log.Error("loading bars", "symbol", symbol, "adjust", adjust, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(bars) == 0 {
		writeError(w, http.StatusNotFound, "No data found")
		return
	}

	resp := insights.BarsResponse{
		Symbol: symbol,
		Adjust: adjust,
		Bars:   make([]insights.Bar, len(bars)),
	}
	for i, b := range bars {
		resp.Bars[i] = insights.Bar{
			TS:     b.Timestamp.Format(dateLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
