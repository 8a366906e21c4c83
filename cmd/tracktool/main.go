// Command tracktool resolves track requests with the bot's resolver and source
// backends, without a Discord or Lavalink connection.
//
// Usage:
//
//	tracktool [-source youtube|music|spotify] resolve <url|text>
//	tracktool [-source youtube|music|spotify] query <url|text>
//	tracktool [-source youtube|music|spotify] suggest <text>
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sglre6355/jukebot/internal/bot"
	"github.com/sglre6355/jukebot/internal/modules/music_player"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

var (
	titleColor = color.New(color.Bold)
	dimColor   = color.New(color.FgHiBlack)
	errorColor = color.New(color.FgHiRed)
	okColor    = color.New(color.FgHiGreen)
)

func main() {
	source := flag.String("source", "youtube", "search source for free text: youtube, music or spotify")
	verbose := flag.Bool("v", false, "log backend calls to stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: tracktool [flags] resolve|query|suggest <input>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, input := flag.Arg(0), strings.Join(flag.Args()[1:], " ")
	hint := domain.ParseTrackSource(*source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, cmd, input, hint); err != nil {
		errorColor.Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, cmd, input string, hint domain.TrackSource) error {
	if cmd == "query" {
		return printQuery(w, input, hint)
	}

	bot.LoadDotEnv()
	cfg, err := music_player.LoadSourcesConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	resolver, err := music_player.NewResolver(ctx, cfg)
	if err != nil {
		return err
	}

	switch cmd {
	case "resolve":
		start := time.Now()
		res, err := resolver.Resolve(ctx, domain.TrackRequest{Input: input, SourceHint: hint})
		if err != nil {
			return err
		}
		printResolution(w, res, time.Since(start))
		return nil
	case "suggest":
		candidates, err := resolver.Suggest(ctx, input, hint)
		if err != nil {
			return err
		}
		printCandidates(w, candidates)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printQuery(w io.Writer, input string, hint domain.TrackSource) error {
	q, err := domain.ParseQuery(input, hint)
	if err != nil {
		return err
	}
	titleColor.Fprintln(w, q.Kind)
	fmt.Fprintf(w, "source: %s\n", q.Source.DisplayName())
	if q.ID != "" {
		fmt.Fprintf(w, "id:     %s\n", q.ID)
	}
	if q.URL != "" {
		fmt.Fprintf(w, "url:    %s\n", q.URL)
	}
	if q.Text != "" {
		fmt.Fprintf(w, "text:   %s\n", q.Text)
	}
	return nil
}

func printResolution(w io.Writer, res *usecases.Resolution, took time.Duration) {
	header := res.Kind.String()
	if res.CollectionName != "" {
		header += ": " + res.CollectionName
	}
	titleColor.Fprintln(w, header)

	for i, t := range res.Tracks {
		okColor.Fprintf(w, "%3d. ", i+1)
		fmt.Fprintf(w, "%s - %s [%s]\n", t.Title(), t.Artist(), t.FormattedDuration())
		dimColor.Fprintf(w, "     %s (%s, %s)\n", t.URI(), t.Source().DisplayName(), t.Kind())
		if t.MatchedFrom() != "" {
			dimColor.Fprintf(w, "     matched from %s\n", t.MatchedFrom())
		}
	}

	for _, f := range res.Failures.Failures {
		errorColor.Fprintf(w, "  x  %s: %s\n", f.Title, describe(f.Err))
	}
	if res.Truncated > 0 {
		dimColor.Fprintf(w, "%d more entries beyond the playlist limit\n", res.Truncated)
	}
	dimColor.Fprintf(w, "%d resolved, %d failed in %s\n",
		len(res.Tracks), res.Failures.Count(), took.Round(time.Millisecond))
}

func printCandidates(w io.Writer, candidates []ports.Candidate) {
	if len(candidates) == 0 {
		dimColor.Fprintln(w, "no suggestions")
		return
	}
	for i, c := range candidates {
		okColor.Fprintf(w, "%2d. ", i+1)
		fmt.Fprintf(w, "%s - %s", c.Title, c.Artist)
		if c.Duration > 0 {
			fmt.Fprintf(w, " [%s]", domain.FormatDuration(c.Duration))
		}
		fmt.Fprintln(w)
		dimColor.Fprintf(w, "    %s\n", c.URL)
	}
}

// describe includes the error kind and, unlike the bot, the internal detail.
func describe(err error) string {
	return fmt.Sprintf("[%s] %v", domain.KindOf(err), err)
}
