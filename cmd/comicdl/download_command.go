package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"comicdl/internal/catalog"
	"comicdl/internal/commands"
	"comicdl/internal/download"
	"comicdl/internal/ipc"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var episodeIDs []int64
	var redownload bool
	var follow bool

	cmd := &cobra.Command{
		Use:   "download <comic-id>",
		Short: "Queue episodes of a comic for download",
		Long: "Queue episodes of a comic for download. Without --episode every unlocked\n" +
			"episode that is not already on disk is queued.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comicID, err := parseComicID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				var comic catalog.Comic
				if err := invokeWith(client, commands.GetComic, commands.GetComicArgs{ComicID: comicID}, &comic); err != nil {
					return err
				}
				tasks, err := selectEpisodes(comic, episodeIDs, redownload)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(out, "Nothing to download")
					return nil
				}

				cursor, err := eventCursor(client)
				if err != nil {
					return err
				}
				if err := invokeWith(client, commands.DownloadEpisodes, commands.DownloadEpisodesArgs{Episodes: tasks}, nil); err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued %s of %s\n", english.Plural(len(tasks), "episode", "episodes"), comic.Title)
				if !follow {
					return nil
				}
				return followDownloads(cmd, client, cursor, tasks)
			})
		},
	}

	cmd.Flags().Int64SliceVarP(&episodeIDs, "episode", "e", nil, "Episode ids to download (repeatable)")
	cmd.Flags().BoolVar(&redownload, "redownload", false, "Include episodes that are already downloaded")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Show progress until the queued episodes finish")
	return cmd
}

// selectEpisodes turns the comic's episode list into download tasks. Explicit
// ids must exist in the comic; locked episodes are passed through so the
// daemon reports them.
func selectEpisodes(comic catalog.Comic, ids []int64, redownload bool) ([]download.EpisodeTask, error) {
	if len(ids) > 0 {
		tasks := make([]download.EpisodeTask, 0, len(ids))
		for _, id := range ids {
			idx := slices.IndexFunc(comic.Episodes, func(ep catalog.Episode) bool { return ep.EpisodeID == id })
			if idx < 0 {
				return nil, fmt.Errorf("episode %d is not part of comic %d", id, comic.ID)
			}
			tasks = append(tasks, taskFromEpisode(comic, comic.Episodes[idx], redownload))
		}
		return tasks, nil
	}

	tasks := make([]download.EpisodeTask, 0, len(comic.Episodes))
	for _, ep := range comic.Episodes {
		if ep.IsLocked {
			continue
		}
		if ep.IsDownloaded && !redownload {
			continue
		}
		tasks = append(tasks, taskFromEpisode(comic, ep, redownload))
	}
	if len(tasks) == 0 && len(comic.Episodes) > 0 && !slices.ContainsFunc(comic.Episodes, func(ep catalog.Episode) bool { return !ep.IsLocked }) {
		return nil, errors.New("every episode is locked; configure catalog.access_token to download purchased episodes")
	}
	return tasks, nil
}

// taskFromEpisode builds a task; redownload drops the downloaded flag so the
// daemon fetches the episode again.
func taskFromEpisode(comic catalog.Comic, ep catalog.Episode, redownload bool) download.EpisodeTask {
	mangaTitle := ep.MangaTitle
	if mangaTitle == "" {
		mangaTitle = comic.Title
	}
	mangaID := ep.MangaID
	if mangaID == 0 {
		mangaID = comic.ID
	}
	return download.EpisodeTask{
		EpisodeID:    ep.EpisodeID,
		EpisodeTitle: ep.EpisodeTitle,
		MangaID:      mangaID,
		MangaTitle:   mangaTitle,
		IsLocked:     ep.IsLocked,
		IsDownloaded: ep.IsDownloaded && !redownload,
	}
}
