package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"comicdl/internal/api"
	"comicdl/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the episode history",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show history counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueAPI, _ bool) error {
				stats, err := q.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueAPI, _ bool) error {
				items, err := q.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if handled, err := writeStructured(cmd, output, items); handled {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Manga", "Episode", "Status", "Progress", "Updated"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	addOutputFlag(cmd, &output)
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one history item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueAPI, _ bool) error {
				item, err := q.Describe(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("%w: %d", errItemNotFound, ids[0])
				}
				if handled, err := writeStructured(cmd, output, item); handled {
					return err
				}
				printQueueItem(cmd.OutOrStdout(), *item)
				return nil
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Retry failed items (all failed items when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueAPI, online bool) error {
				resp, err := q.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					fmt.Fprintf(out, "Retried %d failed items\n", resp.Updated)
				} else {
					printQueueRetryResult(out, resp.Items)
				}
				if !online && resp.Updated > 0 {
					fmt.Fprintln(out, "Daemon not running; items resume on the next `comicdl start`")
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "remove <id...>",
		Short: "Remove history items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueAPI, _ bool) error {
				result, err := q.Remove(cmd.Context(), ids)
				if err != nil {
					return err
				}
				if handled, err := writeStructured(cmd, output, result); handled {
					return err
				}
				printQueueRemoveResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completed bool
	var failed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove history items in bulk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if completed && failed {
				return errors.New("--completed and --failed are mutually exclusive")
			}
			scope := ipc.ClearAll
			switch {
			case completed:
				scope = ipc.ClearCompleted
			case failed:
				scope = ipc.ClearFailed
			}
			return ctx.withQueue(func(q queueAPI, _ bool) error {
				removed, err := q.Clear(cmd.Context(), scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, clearScopeLabel(scope))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "Only remove completed items")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only remove failed items")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return in-flight items to their previous status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueAPI, _ bool) error {
				updated, err := q.ResetStuck(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d in-flight items\n", updated)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var database bool
	var output string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Summarize history health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueAPI, _ bool) error {
				out := cmd.OutOrStdout()
				if database {
					health, err := q.DatabaseHealth(cmd.Context())
					if err != nil && health.DBPath == "" {
						return err
					}
					if handled, err := writeStructured(cmd, output, ipc.DatabaseHealthResponse(health)); handled {
						return err
					}
					printDatabaseHealth(out, ipc.DatabaseHealthResponse(health))
					return nil
				}
				health, err := q.Health(cmd.Context())
				if err != nil {
					return err
				}
				if handled, err := writeStructured(cmd, output, ipc.QueueHealthResponse(health)); handled {
					return err
				}
				fmt.Fprintf(out, "Total: %d\n", health.Total)
				fmt.Fprintf(out, "Pending: %d\n", health.Pending)
				fmt.Fprintf(out, "Processing: %d\n", health.Processing)
				fmt.Fprintf(out, "Failed: %d\n", health.Failed)
				fmt.Fprintf(out, "Completed: %d\n", health.Completed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&database, "db", false, "Check the database schema and integrity instead")
	addOutputFlag(cmd, &output)
	return cmd
}

func printDatabaseHealth(out io.Writer, resp ipc.DatabaseHealthResponse) {
	fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
	fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
	fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
	fmt.Fprintf(out, "Schema version: %s\n", resp.SchemaVersion)
	fmt.Fprintf(out, "queue_items table present: %s\n", yesNo(resp.TableExists))
	if len(resp.MissingColumns) > 0 {
		missing := append([]string(nil), resp.MissingColumns...)
		sort.Strings(missing)
		fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
	} else {
		fmt.Fprintln(out, "Missing columns: none")
	}
	fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
	fmt.Fprintf(out, "Total items: %d\n", resp.TotalItems)
	if resp.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", resp.Error)
	}
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printQueueRemoveResult(out io.Writer, result api.RemoveItemsResult) {
	for _, item := range result.Items {
		switch item.Outcome {
		case api.RemoveItemNotFound:
			fmt.Fprintf(out, "Item %d not found\n", item.ID)
		case api.RemoveItemRemoved:
			fmt.Fprintf(out, "Item %d removed\n", item.ID)
		}
	}
}

func printQueueRetryResult(out io.Writer, items []api.RetryItemResult) {
	for _, item := range items {
		switch item.Outcome {
		case api.RetryItemNotFound:
			fmt.Fprintf(out, "Item %d not found\n", item.ID)
		case api.RetryItemNotFailed:
			fmt.Fprintf(out, "Item %d is not failed\n", item.ID)
		case api.RetryItemUpdated:
			fmt.Fprintf(out, "Item %d retried\n", item.ID)
		}
	}
}

func clearScopeLabel(scope ipc.ClearScope) string {
	switch scope {
	case ipc.ClearCompleted:
		return "completed items"
	case ipc.ClearFailed:
		return "failed items"
	default:
		return "history items"
	}
}
