package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"insights/internal/review"
	"insights/pkg/insights"
)

func (s *Server) handleKeepOrReplace(w http.ResponseWriter, r *http.Request) {
	var req insights.PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Strategy == "" {
		req.Strategy = "momo_trend@0.1.0"
	}
	if req.Benchmark == "" {
		req.Benchmark = "SPY"
	}

	universe, err := s.loadUniverse(r.Context(), req.Symbols)
	if err != nil {
		s.log.Error("loading universe", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := review.KeepOrReplace(req, universe)
	switch {
	case errors.Is(err, review.ErrUnknownStrategy):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, review.ErrNoData):
		writeError(w, http.StatusNotFound, "No data found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("reviewed portfolio",
		"account", req.AccountID,
		"symbols", len(req.Symbols),
		"items", len(resp.Items),
		"universe", len(universe),
	)
	writeJSON(w, http.StatusOK, resp)
}

// loadUniverse loads dividend-adjusted closes for every catalogued symbol
// plus the requested ones. Symbols that fail to load are left out.
func (s *Server) loadUniverse(ctx context.Context, requested []string) (map[string]review.History, error) {
	adjust := insights.AdjustCashDividends
	listed, err := s.source.Symbols(ctx, adjust)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(listed)+len(requested))
	var symbols []string
	for _, group := range [][]string{listed, requested} {
		for _, sym := range group {
			if !seen[sym] {
				seen[sym] = true
				symbols = append(symbols, sym)
			}
		}
	}

	end := s.opts.Now().UTC()
	start := end.AddDate(0, -s.opts.AnalysisMonths, 0)

	var mu sync.Mutex
	universe := make(map[string]review.History, len(symbols))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.LoadWorkers)
	for _, sym := range symbols {
		g.Go(func() error {
			bars, err := s.source.Bars(ctx, sym, adjust, start, end)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warn("skipping symbol", "symbol", sym, "error", err)
				return nil
			}
			if len(bars) == 0 {
				return nil
			}
			h := review.History{}
			for _, b := range bars {
				h.Dates = append(h.Dates, b.Timestamp)
				h.Closes = append(h.Closes, b.Close)
			}
			mu.Lock()
			universe[sym] = h
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return universe, nil
}
