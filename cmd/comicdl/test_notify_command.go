package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"comicdl/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon's ntfy settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), notifyOutcome(resp))
				return nil
			})
		},
	}
}

func notifyOutcome(resp *ipc.TestNotificationResponse) string {
	switch {
	case resp == nil:
		return "No response from daemon"
	case resp.Sent:
		return "Test notification sent"
	case resp.Message != "":
		return resp.Message
	default:
		return "Notification not sent"
	}
}
