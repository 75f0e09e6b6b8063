package cli

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/clintjedwards/gofer-sub001/internal/models"
)

// unixMilli renders a unix-millisecond timestamp as a humanized relative
// time, or zeroMsg if unix is 0 (unset).
func unixMilli(unix int64, zeroMsg string) string {
	if unix == 0 {
		return zeroMsg
	}
	return humanize.Time(time.UnixMilli(unix))
}

// duration renders a humanized, second-truncated duration between two
// unix-millisecond timestamps. end of 0 means "still running" and duration
// is measured against now.
func duration(start, end int64) string {
	if start == 0 {
		return "0s"
	}

	startTime := time.UnixMilli(start)
	endTime := time.Now()
	if end != 0 {
		endTime = time.UnixMilli(end)
	}

	return "~" + endTime.Sub(startTime).Truncate(time.Second).String()
}

func colorizeRunStatus(status models.RunStatus) string {
	switch status {
	case models.RunStatusSuccessful:
		return color.GreenString(string(status))
	case models.RunStatusFailed:
		return color.RedString(string(status))
	case models.RunStatusCancelled:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}

func colorizeRunState(state models.RunState) string {
	switch state {
	case models.RunStateComplete:
		return color.GreenString(string(state))
	default:
		return color.YellowString(string(state))
	}
}

// formatTable renders rows into the same plain-border, left-aligned,
// blue-header table style the full client CLI uses.
func formatTable(header []string, data [][]string, useColor bool) string {
	tableString := &strings.Builder{}
	table := tablewriter.NewWriter(tableString)

	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(true)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetRowSeparator("―")
	table.SetRowLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")

	if useColor {
		headerColors := make([]tablewriter.Colors, len(header))
		for i := range headerColors {
			headerColors[i] = tablewriter.Color(tablewriter.FgBlueColor)
		}
		table.SetHeaderColor(headerColors...)
	}

	table.AppendBulk(data)
	table.Render()

	return tableString.String()
}
