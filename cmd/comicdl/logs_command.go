package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"comicdl/internal/ipc"
	"comicdl/internal/logging"
	"comicdl/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		Long: "Display daemon logs from the running daemon's stream. When the daemon is\n" +
			"not running the current log file is read instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			socket := cfg.SocketPath()
			client, err := ipc.Dial(socket)
			if err != nil {
				if !isDaemonUnavailable(err) {
					return wrapDialError(err, socket)
				}
				return tailLogFile(cmd, logs.CurrentPath(cfg.Paths.LogDir), opts)
			}
			defer client.Close()
			return streamLogs(cmd, client, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 20, "Number of recent entries to show first")
	cmd.Flags().StringVar(&opts.component, "component", "", "Only show entries from this component")
	cmd.Flags().Int64Var(&opts.episodeID, "episode", 0, "Only show entries for this episode id")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Include structured fields")
	return cmd
}

type logsOptions struct {
	follow    bool
	lines     int
	component string
	episodeID int64
	verbose   bool
}

func (o logsOptions) matches(evt logging.LogEvent) bool {
	if o.component != "" && !strings.EqualFold(evt.Component, o.component) {
		return false
	}
	return o.episodeID <= 0 || evt.EpisodeID == o.episodeID
}

func streamLogs(cmd *cobra.Command, client *ipc.Client, opts logsOptions) error {
	req := ipc.LogsRequest{
		Limit:     opts.lines,
		Tail:      true,
		Component: opts.component,
		EpisodeID: opts.episodeID,
	}
	if req.Limit <= 0 {
		req.Limit = 200
	}
	out := cmd.OutOrStdout()
	printed := false
	for {
		resp, err := client.Logs(req)
		if err != nil {
			return fmt.Errorf("fetch logs: %w", err)
		}
		if resp == nil {
			return errors.New("log response missing")
		}
		for _, evt := range resp.Events {
			fmt.Fprintln(out, formatLogEvent(evt, opts.verbose))
			printed = true
		}
		if !opts.follow {
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		}
		if err := cmd.Context().Err(); err != nil {
			return nil
		}
		req.Since = resp.Next
		req.Limit = 200
		req.Tail = false
		req.Follow = true
		req.WaitMillis = 1000
	}
}

// tailLogFile prints the log file the daemon left behind. Filters only apply
// to JSON records; console-format lines are printed as written.
func tailLogFile(cmd *cobra.Command, path string, opts logsOptions) error {
	out := cmd.OutOrStdout()
	lines := opts.lines
	if lines <= 0 {
		lines = 200
	}
	page, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Lines: lines})
	if err != nil {
		return err
	}
	if len(page.Lines) == 0 && !opts.follow {
		fmt.Fprintf(out, "No log entries available (daemon not running, %s is empty)\n", path)
		return nil
	}
	for {
		for _, line := range page.Lines {
			evt, ok := logs.ParseLine(line)
			if !ok {
				fmt.Fprintln(out, line)
				continue
			}
			if opts.matches(evt) {
				fmt.Fprintln(out, formatLogEvent(evt, opts.verbose))
			}
		}
		if !opts.follow {
			return nil
		}
		page, err = logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: page.Offset, Follow: true, Wait: time.Second})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func formatLogEvent(evt logging.LogEvent, verbose bool) string {
	ts := evt.Timestamp.Local().Format("2006-01-02 15:04:05")
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	line := strings.Join(parts, " ")
	if subject := composeSubject(evt.EpisodeID, evt.Stage); subject != "" {
		line += " " + subject
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += ": " + message
	}
	if !verbose || len(evt.Fields) == 0 {
		return line
	}
	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	var builder strings.Builder
	builder.WriteString(line)
	for _, key := range keys {
		value := strings.TrimSpace(evt.Fields[key])
		if value == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(key)
		builder.WriteString(": ")
		builder.WriteString(value)
	}
	return builder.String()
}

func composeSubject(episodeID int64, stage string) string {
	stage = strings.TrimSpace(stage)
	switch {
	case episodeID > 0 && stage != "":
		return fmt.Sprintf("Episode %d (%s)", episodeID, stage)
	case episodeID > 0:
		return fmt.Sprintf("Episode %d", episodeID)
	default:
		return stage
	}
}
