package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"comicdl/internal/commands"
	"comicdl/internal/ipc"
)

func newWatermarkCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "watermark <dir>",
		Short: "Remove watermarks from the images in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				cursor, err := eventCursor(client)
				if err != nil {
					return err
				}
				if err := invokeWith(client, commands.RemoveWatermark, commands.RemoveWatermarkArgs{DirPath: dir}, nil); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removing watermarks in %s\n", dir)
				if !follow {
					return nil
				}
				return followWatermark(cmd, client, cursor, dir)
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Show progress until the pass finishes")
	return cmd
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Reveal a path in the system file manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			return ctx.invoke(commands.ShowPathInFileManager, commands.PathArgs{Path: path}, nil)
		},
	}
}
