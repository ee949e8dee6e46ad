package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"comicdl/internal/download"
	"comicdl/internal/events"
	"comicdl/internal/ipc"
)

const (
	followWait  = time.Second
	followLimit = 256
)

// eventCursor returns the newest journal sequence so a follow loop only sees
// events published after the command it tracks.
func eventCursor(client *ipc.Client) (uint64, error) {
	resp, err := client.Events(ipc.EventsRequest{Since: math.MaxUint64, Limit: 1})
	if err != nil {
		return 0, err
	}
	return resp.Next, nil
}

func newProgressBar(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

type downloadFollower struct {
	out     io.Writer
	bar     *progressbar.ProgressBar
	titles  map[int64]string
	pending map[int64]struct{}
	failed  int
	max     int
}

func followDownloads(cmd *cobra.Command, client *ipc.Client, cursor uint64, tasks []download.EpisodeTask) error {
	f := &downloadFollower{
		out:     cmd.OutOrStdout(),
		bar:     newProgressBar(cmd.ErrOrStderr(), "Downloading"),
		titles:  make(map[int64]string, len(tasks)),
		pending: make(map[int64]struct{}, len(tasks)),
	}
	for _, task := range tasks {
		f.titles[task.EpisodeID] = task.MangaTitle + " - " + task.EpisodeTitle
		f.pending[task.EpisodeID] = struct{}{}
	}
	defer func() { _ = f.bar.Finish() }()

	for len(f.pending) > 0 {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		resp, err := client.Events(ipc.EventsRequest{Since: cursor, Limit: followLimit, WaitMillis: int(followWait / time.Millisecond)})
		if err != nil {
			return err
		}
		cursor = resp.Next
		for _, env := range resp.Events {
			payload, err := env.Decode()
			if err != nil {
				continue
			}
			f.handle(payload)
		}
		if len(resp.Events) == 0 && len(f.pending) > 0 {
			// Duplicates of in-flight work never produce their own events.
			status, err := client.Status()
			if err != nil {
				return err
			}
			if status.Downloads.Idle() {
				break
			}
		}
	}

	_ = f.bar.Clear()
	done := len(f.titles) - len(f.pending) - f.failed
	fmt.Fprintf(f.out, "%s downloaded, %d failed\n", english.Plural(done, "episode", "episodes"), f.failed)
	if f.failed > 0 {
		return fmt.Errorf("%s failed", english.Plural(f.failed, "episode", "episodes"))
	}
	return nil
}

func (f *downloadFollower) handle(payload events.Payload) {
	switch p := payload.(type) {
	case events.EpisodePending:
		if _, ok := f.pending[p.EpID]; ok {
			f.println("Waiting for a free slot: %s", f.titles[p.EpID])
		}
	case events.EpisodeEnd:
		if _, ok := f.pending[p.EpID]; !ok {
			return
		}
		delete(f.pending, p.EpID)
		if p.Failed() {
			f.failed++
			f.println("Failed: %s: %s", f.titles[p.EpID], p.Message())
			return
		}
		f.println("Done: %s", f.titles[p.EpID])
	case events.OverallProgress:
		if p.TotalImageCount != f.max {
			f.max = p.TotalImageCount
			f.bar.ChangeMax(p.TotalImageCount)
		}
		_ = f.bar.Set(p.DownloadedImageCount)
	case events.DownloadSpeed:
		f.bar.Describe("Downloading " + p.Speed)
	}
}

func (f *downloadFollower) println(format string, args ...any) {
	_ = f.bar.Clear()
	fmt.Fprintf(f.out, format+"\n", args...)
}

func followWatermark(cmd *cobra.Command, client *ipc.Client, cursor uint64, dir string) error {
	out := cmd.OutOrStdout()
	bar := newProgressBar(cmd.ErrOrStderr(), "Removing watermarks")
	defer func() { _ = bar.Finish() }()

	succeeded, failed := 0, 0
	for {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		resp, err := client.Events(ipc.EventsRequest{Since: cursor, Limit: followLimit, WaitMillis: int(followWait / time.Millisecond)})
		if err != nil {
			return err
		}
		cursor = resp.Next
		for _, env := range resp.Events {
			payload, err := env.Decode()
			if err != nil {
				continue
			}
			switch p := payload.(type) {
			case events.WatermarkStart:
				if p.DirPath == dir {
					bar.ChangeMax(p.Total)
				}
			case events.WatermarkSuccess:
				if p.DirPath == dir {
					succeeded++
					_ = bar.Set(p.Current)
				}
			case events.WatermarkError:
				if p.DirPath == dir {
					failed++
					_ = bar.Clear()
					fmt.Fprintf(out, "Failed: %s: %s\n", p.ImgPath, p.ErrMsg)
				}
			case events.WatermarkEnd:
				if p.DirPath == dir {
					_ = bar.Clear()
					fmt.Fprintf(out, "%s cleaned, %d failed\n", english.Plural(succeeded, "image", "images"), failed)
					if failed > 0 {
						return fmt.Errorf("%s failed", english.Plural(failed, "image", "images"))
					}
					return nil
				}
			}
		}
	}
}
