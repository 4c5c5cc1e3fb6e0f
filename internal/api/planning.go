// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
)

type planningMonthResponse struct {
	Items map[string]json.RawMessage `json:"items"`
}

type planningDayResponse struct {
	Items []string `json:"items"`
}

// PlanningMonth returns the days of the month that have planned items,
// ascending. month is 1-based.
func (c *Client) PlanningMonth(ctx context.Context, year, month int) ([]int, error) {
	var resp planningMonthResponse
	u := fmt.Sprintf("%s/%d/%d", c.config.PlanningURL, year, month)
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}

	days := make([]int, 0, len(resp.Items))
	for key := range resp.Items {
		day, err := strconv.Atoi(key)
		if err != nil || day < 1 || day > 31 {
			return nil, &ClientError{
				Type:    ErrTypeInvalidResponse,
				Message: fmt.Sprintf("invalid day key %q", key),
				Cause:   err,
			}
		}
		days = append(days, day)
	}
	sort.Ints(days)
	return days, nil
}

// PlanningDay returns the planned items of one day.
func (c *Client) PlanningDay(ctx context.Context, year, month, day int) ([]string, error) {
	var resp planningDayResponse
	u := fmt.Sprintf("%s/%d/%d/%d", c.config.PlanningURL, year, month, day)
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
