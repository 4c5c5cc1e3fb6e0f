// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package calendar loads the days of a month that have planned items.
//
// Switching months quickly supersedes pending requests: each Load cancels the
// previous request's context, and only the result of the latest request is
// applied.
package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/rs/zerolog/log"
)

// Source fetches planning data. *api.Client implements it.
type Source interface {
	PlanningMonth(ctx context.Context, year, month int) ([]int, error)
	PlanningDay(ctx context.Context, year, month, day int) ([]string, error)
}

// Request is one month fetch issued by Load.
type Request struct {
	ID    uint64
	Year  int
	Month int
	ctx   context.Context
}

// Result is the outcome of a Request.
type Result struct {
	Request Request
	Days    []int
	Err     error
}

// Aborted reports whether the request was canceled by a newer one.
func (r Result) Aborted() bool {
	if r.Err == nil {
		return false
	}
	return api.IsCanceled(r.Err) || (r.Request.ctx != nil && r.Request.ctx.Err() != nil)
}

// Loader tracks the displayed month and its highlighted days.
type Loader struct {
	src Source

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	year    int
	month   int
	loading bool
	days    []int
}

// NewLoader creates a loader showing the current month. Nothing is fetched
// until Load is called.
func NewLoader(src Source) *Loader {
	now := time.Now()
	return &Loader{src: src, year: now.Year(), month: int(now.Month())}
}

// Load cancels any pending request and starts tracking a new one for
// year/month. Highlighted days are cleared until the result is applied. Run
// the returned request with Fetch.
func (l *Loader) Load(parent context.Context, year, month int) Request {
	year, month = normalize(year, month)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.seq++
	l.year, l.month = year, month
	l.loading = true
	l.days = nil
	return Request{ID: l.seq, Year: year, Month: month, ctx: ctx}
}

// Next loads the following month.
func (l *Loader) Next(parent context.Context) Request {
	y, m := l.Month()
	return l.Load(parent, y, m+1)
}

// Prev loads the previous month.
func (l *Loader) Prev(parent context.Context) Request {
	y, m := l.Month()
	return l.Load(parent, y, m-1)
}

// Fetch performs the request. It blocks and is meant to run off the UI loop.
func (l *Loader) Fetch(req Request) Result {
	days, err := l.src.PlanningMonth(req.ctx, req.Year, req.Month)
	return Result{Request: req, Days: days, Err: err}
}

// Apply stores a result if it belongs to the latest request. Aborted and
// superseded results are swallowed and report false. A failed latest request
// reports true with no highlighted days; the caller decides whether to show
// res.Err.
func (l *Loader) Apply(res Result) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if res.Request.ID != l.seq {
		log.Debug().
			Str("component", "calendar").
			Int("year", res.Request.Year).
			Int("month", res.Request.Month).
			Msg("discarding superseded month result")
		return false
	}
	if res.Aborted() {
		return false
	}
	l.loading = false
	if res.Err != nil {
		l.days = nil
		return true
	}
	l.days = append([]int(nil), res.Days...)
	return true
}

// Day fetches the planned items of one day.
func (l *Loader) Day(ctx context.Context, year, month, day int) ([]string, error) {
	return l.src.PlanningDay(ctx, year, month, day)
}

// Close cancels the pending request, if any.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Month returns the displayed year and month (1-12).
func (l *Loader) Month() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.year, l.month
}

// Loading reports whether the latest request is pending.
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Highlighted returns the days with planned items, ascending.
func (l *Loader) Highlighted() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.days...)
}

// IsHighlighted reports whether day has planned items.
func (l *Loader) IsHighlighted(day int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range l.days {
		if d == day {
			return true
		}
	}
	return false
}

func normalize(year, month int) (int, int) {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), int(t.Month())
}
