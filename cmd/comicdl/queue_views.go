package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"comicdl/internal/api"
	"comicdl/internal/events"
	"comicdl/internal/queue"
)

// queueStatusOrder lists statuses in lifecycle order for the summary table.
var queueStatusOrder = func() map[string]int {
	out := make(map[string]int)
	for i, status := range queue.AllStatuses() {
		out[string(status)] = i
	}
	return out
}()

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := queueStatusOrder[keys[i]]
		oj, jok := queueStatusOrder[keys[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), humanize.Comma(int64(stats[key]))})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(strings.ReplaceAll(status, "_", " "))
	if status == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(status)
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]api.QueueItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].CreatedAt)
		tj := parseQueueTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.MangaTitle,
			item.EpisodeTitle,
			formatStatusLabel(item.Status),
			formatProgress(item),
			formatQueueTime(item.UpdatedAt),
		})
	}
	return rows
}

func formatProgress(item api.QueueItem) string {
	if item.Status == string(queue.StatusCompleted) {
		return "done"
	}
	if item.Progress.Percent <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", item.Progress.Percent)
}

func parseQueueTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func formatQueueTime(value string) string {
	t := parseQueueTime(value)
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func printQueueItem(out io.Writer, item api.QueueItem) {
	fmt.Fprintf(out, "Item #%d\n", item.ID)
	fmt.Fprintf(out, "  Manga:    %s (id %d)\n", item.MangaTitle, item.MangaID)
	fmt.Fprintf(out, "  Episode:  %s (id %d)\n", item.EpisodeTitle, item.EpisodeID)
	fmt.Fprintf(out, "  Status:   %s\n", formatStatusLabel(item.Status))
	if item.ImageCount > 0 {
		fmt.Fprintf(out, "  Images:   %s\n", humanize.Comma(int64(item.ImageCount)))
	}
	if item.Progress.Stage != "" || item.Progress.Message != "" {
		fmt.Fprintf(out, "  Progress: %s %.0f%% %s\n", item.Progress.Stage, item.Progress.Percent, item.Progress.Message)
	}
	if item.DownloadPath != "" {
		fmt.Fprintf(out, "  Images at: %s\n", item.DownloadPath)
	}
	if item.ArchivePath != "" {
		fmt.Fprintf(out, "  Archive:  %s\n", item.ArchivePath)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:    %s\n", item.ErrorMessage)
	}
	fmt.Fprintf(out, "  Created:  %s\n", formatQueueTime(item.CreatedAt))
	fmt.Fprintf(out, "  Updated:  %s\n", formatQueueTime(item.UpdatedAt))
}

func renderOverallProgress(p events.OverallProgress) string {
	return fmt.Sprintf("  %s/%s images (%.1f%%)",
		humanize.Comma(int64(p.DownloadedImageCount)),
		humanize.Comma(int64(p.TotalImageCount)),
		p.Percentage,
	)
}
