// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/witness-lens/internal/calendar"
)

func newCalendarCommand(flags *Flags) *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "calendar [year month]",
		Short: "Show the days of a month that have planned items",
		Example: `  witness-lens calendar
  witness-lens calendar 2025 3
  witness-lens calendar 2025 3 --day 14`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return NewUsageError("expected no arguments or <year> <month>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			year, month := now.Year(), int(now.Month())
			if len(args) == 2 {
				var err error
				if year, err = strconv.Atoi(args[0]); err != nil {
					return NewUsageError("invalid year %q", args[0])
				}
				if month, err = strconv.Atoi(args[1]); err != nil || month < 1 || month > 12 {
					return NewUsageError("invalid month %q", args[1])
				}
			}

			return runWithApp(flags, func(app *App) error {
				if _, err := app.RequireUser(); err != nil {
					return err
				}
				ctx := cmd.Context()
				loader := calendar.NewLoader(app.API)
				defer loader.Close()

				res := loader.Fetch(loader.Load(ctx, year, month))
				loader.Apply(res)
				if res.Err != nil {
					return NewCommandError("calendar", "load", res.Err)
				}
				out := cmd.OutOrStdout()
				printMonth(out, year, month, loader.IsHighlighted)

				if day > 0 {
					if day > calendar.DaysIn(year, month) {
						return NewUsageError("day %d is outside the month", day)
					}
					items, err := loader.Day(ctx, year, month, day)
					if err != nil {
						return NewCommandError("calendar", "day", err)
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("%04d-%02d-%02d", year, month, day)))
					if len(items) == 0 {
						fmt.Fprintln(out, DimStyle.Render("Nothing planned."))
					}
					for _, it := range items {
						fmt.Fprintln(out, "  • "+it)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "also list the items planned on this day")
	return cmd
}

// printMonth writes a Sunday-first grid; planned days are marked with *.
func printMonth(w io.Writer, year, month int, highlighted func(int) bool) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("%s %d", time.Month(month), year)))
	fmt.Fprintln(w, DimStyle.Render(" Su  Mo  Tu  We  Th  Fr  Sa"))
	for _, week := range calendar.Grid(year, month) {
		var sb strings.Builder
		for _, d := range week {
			switch {
			case d == 0:
				sb.WriteString("    ")
			case highlighted(d):
				sb.WriteString(SuccessStyle.Render(fmt.Sprintf("%3d*", d)))
			default:
				sb.WriteString(fmt.Sprintf("%3d ", d))
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}
}
