package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"comicdl/internal/catalog"
	"comicdl/internal/commands"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var page int
	var output string
	cmd := &cobra.Command{
		Use:   "search <keyword...>",
		Short: "Search the catalog by keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.TrimSpace(strings.Join(args, " "))
			var result catalog.SearchResult
			if err := ctx.invoke(commands.Search, commands.SearchArgs{Keyword: keyword, PageNum: page}, &result); err != nil {
				return err
			}
			if handled, err := writeStructured(cmd, output, result); handled {
				return err
			}
			out := cmd.OutOrStdout()
			if len(result.Comics) == 0 {
				fmt.Fprintf(out, "No comics match %q\n", keyword)
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Authors", "Styles", "State"},
				buildSearchRows(result.Comics),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "Page %d of %d (%d results)\n", max(page, 1), result.TotalPage, result.TotalNum)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Result page (1-based)")
	addOutputFlag(cmd, &output)
	return cmd
}

func newComicCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "comic <comic-id>",
		Short: "Show comic details and its episodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comicID, err := parseComicID(args[0])
			if err != nil {
				return err
			}
			var comic catalog.Comic
			if err := ctx.invoke(commands.GetComic, commands.GetComicArgs{ComicID: comicID}, &comic); err != nil {
				return err
			}
			if handled, err := writeStructured(cmd, output, comic); handled {
				return err
			}
			printComic(cmd.OutOrStdout(), comic)
			return nil
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func parseComicID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid comic id %q", value)
	}
	return id, nil
}

func buildSearchRows(comics []catalog.SearchComic) [][]string {
	rows := make([][]string, 0, len(comics))
	for _, c := range comics {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.Title,
			strings.Join(c.AuthorNames, ", "),
			strings.Join(c.Styles, ", "),
			finishedLabel(c.IsFinish),
		})
	}
	return rows
}

func finishedLabel(finished bool) string {
	if finished {
		return "finished"
	}
	return "ongoing"
}

func printComic(out io.Writer, comic catalog.Comic) {
	fmt.Fprintf(out, "%s (id %d)\n", comic.Title, comic.ID)
	if len(comic.AuthorNames) > 0 {
		fmt.Fprintf(out, "  Authors: %s\n", strings.Join(comic.AuthorNames, ", "))
	}
	if len(comic.Styles) > 0 {
		fmt.Fprintf(out, "  Styles:  %s\n", strings.Join(comic.Styles, ", "))
	}
	fmt.Fprintf(out, "  State:   %s\n", finishedLabel(comic.IsFinish))
	if text := strings.TrimSpace(comic.Evaluate); text != "" {
		fmt.Fprintf(out, "  %s\n", text)
	}
	if len(comic.Episodes) == 0 {
		fmt.Fprintln(out, "No episodes")
		return
	}

	rows := make([][]string, 0, len(comic.Episodes))
	downloaded, locked := 0, 0
	for _, ep := range comic.Episodes {
		state := ""
		switch {
		case ep.IsDownloaded:
			state = "downloaded"
			downloaded++
		case ep.IsLocked:
			state = "locked"
			locked++
		}
		rows = append(rows, []string{
			strconv.FormatFloat(ep.Order, 'f', -1, 64),
			strconv.FormatInt(ep.EpisodeID, 10),
			ep.EpisodeTitle,
			state,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Episode ID", "Title", "State"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "%d episodes, %d downloaded, %d locked\n", len(comic.Episodes), downloaded, locked)
}
