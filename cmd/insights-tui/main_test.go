package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insights/internal/dashboard"
	"insights/pkg/insights"
)

type stubService struct{}

func (stubService) KeepOrReplace(_ context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
	resp := &insights.PortfolioResponse{AsOf: "2024-08-30"}
	for _, s := range req.Symbols {
		resp.Items = append(resp.Items, insights.VerdictItem{Symbol: s, AsOf: "2024-08-30", Action: insights.ActionWatch})
	}
	return resp, nil
}

func (stubService) GetBars(context.Context, string, time.Time, string) (*insights.BarsResponse, error) {
	return &insights.BarsResponse{Bars: []insights.Bar{{Close: 1}, {Close: 2}}}, nil
}

func TestModelSubmitAndRender(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := dashboard.New(stubService{}, stubService{}, dashboard.Options{Logger: logger})
	defer d.Close()
	d.SetSymbolsText("AAPL,MSFT")

	var m tea.Model = initialModel(d, logger)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Contains(t, m.View(), "Holdings Review")
	assert.Contains(t, m.View(), "Analyze")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	m, _ = m.Update(changedMsg{})
	out := m.View()
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "MSFT")
	assert.Contains(t, out, "WATCH")
	assert.True(t, strings.Contains(out, "As of 2024-08-30"))
}
