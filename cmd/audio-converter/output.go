package main

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/jaki95/audio-converter/internal/processor"
	"github.com/jaki95/audio-converter/internal/progress"
)

// progressListener drives a terminal progress bar from tracker events.
type progressListener struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressListener() *progressListener {
	return &progressListener{}
}

func (l *progressListener) handle(event progress.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch event.Stage {
	case progress.StageSplitting:
		if l.bar == nil {
			l.bar = newBar(-1, "[cyan][1/2][reset] Splitting...")
		}
		_ = l.bar.Add(1)
		return
	case progress.StageConverting:
	default:
		return
	}

	details := event.JobDetails
	if details == nil {
		// A new conversion stage starts with a fresh bar.
		if l.bar != nil {
			_ = l.bar.Finish()
		}
		l.bar = nil
		return
	}
	if l.bar == nil {
		l.bar = newBar(details.Total, "[cyan][2/2][reset] Converting...")
	}
	_ = l.bar.Set(details.Completed + details.Failed)
}

func (l *progressListener) finish() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bar != nil {
		_ = l.bar.Finish()
	}
}

func newBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(ansi.NewAnsiStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
	)
}

// renderTable draws rows under headers. Columns listed in rightAligned,
// counted from 1, are right aligned.
func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(tableRow(headers))
	for _, row := range rows {
		tw.AppendRow(tableRow(row))
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, column := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: column, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func tableRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}
	return row
}

func renderSummary(summary processor.Summary) string {
	rows := make([][]string, 0, len(summary.Results)+len(summary.Skipped)+len(summary.Errors)+1)
	for _, r := range summary.Results {
		status := "ok"
		if r.Err != nil {
			status = "failed: " + r.Job.State.String()
		}
		output := r.Job.OutputPath
		if r.Published != "" {
			output = r.Published
		}
		rows = append(rows, []string{filepath.Base(r.Job.SourcePath), output, status, fileSize(r.Job.OutputPath, r.Err)})
	}
	for _, e := range summary.Errors {
		rows = append(rows, []string{filepath.Base(e.Path), "", "failed", ""})
	}
	for _, s := range summary.Skipped {
		rows = append(rows, []string{filepath.Base(s.Path), "", "skipped", ""})
	}
	if summary.NotRun > 0 {
		rows = append(rows, []string{"", "", humanize.Comma(int64(summary.NotRun)) + " not started", ""})
	}
	return renderTable([]string{"Source", "Output", "Status", "Size"}, rows, 4)
}

func fileSize(path string, err error) string {
	if err != nil || path == "" {
		return ""
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		return ""
	}
	return humanize.Bytes(uint64(info.Size()))
}
