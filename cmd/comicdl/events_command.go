package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"comicdl/internal/events"
	"comicdl/internal/ipc"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var since uint64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print journaled progress events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				req := ipc.EventsRequest{Since: since, Limit: followLimit}
				if follow {
					req.WaitMillis = int(followWait / time.Millisecond)
				}
				out := cmd.OutOrStdout()
				for {
					resp, err := client.Events(req)
					if err != nil {
						return err
					}
					for _, env := range resp.Events {
						if asJSON {
							if err := writeJSON(cmd, env); err != nil {
								return err
							}
							continue
						}
						printEnvelope(out, env)
					}
					req.Since = resp.Next
					if !follow && len(resp.Events) < req.Limit {
						return nil
					}
					if err := cmd.Context().Err(); err != nil {
						return nil
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Wait for new events")
	cmd.Flags().Uint64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw event envelopes as JSON")
	return cmd
}

func printEnvelope(out io.Writer, env events.Envelope) {
	ts := env.Time.Local().Format("15:04:05")
	payload, err := env.Decode()
	if err != nil {
		fmt.Fprintf(out, "%6d %s %s %s\n", env.Seq, ts, env.Name, string(env.Payload))
		return
	}
	fmt.Fprintf(out, "%6d %s %s\n", env.Seq, ts, describeEvent(payload))
}

func describeEvent(payload events.Payload) string {
	switch p := payload.(type) {
	case events.EpisodePending:
		return fmt.Sprintf("episode %d pending: %s", p.EpID, p.Title)
	case events.EpisodeStart:
		return fmt.Sprintf("episode %d started: %s (%d images)", p.EpID, p.Title, p.Total)
	case events.EpisodeEnd:
		if p.Failed() {
			return fmt.Sprintf("episode %d failed: %s", p.EpID, p.Message())
		}
		return fmt.Sprintf("episode %d finished", p.EpID)
	case events.ImageSuccess:
		return fmt.Sprintf("episode %d image %d saved", p.EpID, p.Current)
	case events.ImageError:
		return fmt.Sprintf("episode %d image failed: %s", p.EpID, p.ErrMsg)
	case events.OverallProgress:
		return fmt.Sprintf("progress %d/%d (%.1f%%)", p.DownloadedImageCount, p.TotalImageCount, p.Percentage)
	case events.DownloadSpeed:
		return "speed " + p.Speed
	case events.WatermarkStart:
		return fmt.Sprintf("watermark started in %s (%d images)", p.DirPath, p.Total)
	case events.WatermarkSuccess:
		return fmt.Sprintf("watermark removed from %s", p.ImgPath)
	case events.WatermarkError:
		return fmt.Sprintf("watermark failed for %s: %s", p.ImgPath, p.ErrMsg)
	case events.WatermarkEnd:
		return fmt.Sprintf("watermark finished in %s", p.DirPath)
	default:
		return payload.Kind().Name()
	}
}
