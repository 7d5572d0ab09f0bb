package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/csmith/cratesync/cache"
	"github.com/csmith/cratesync/catalog"
	"github.com/csmith/cratesync/config"
	"github.com/csmith/cratesync/history"
	"github.com/csmith/cratesync/matcher"
	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/reconcile"
	"github.com/csmith/cratesync/report"
	"github.com/csmith/cratesync/sources"
	"github.com/csmith/cratesync/state"
	"github.com/csmith/cratesync/syncer"
	"github.com/csmith/envflag/v2"
	"github.com/csmith/slogflags"
	"github.com/joho/godotenv"
)

const (
	exitError       = 1
	exitRateLimited = 3
)

var (
	source          = flag.String("source", "rekordbox", "Where to read playlists from: rekordbox, beatport, label, subsonic, lastfm or listenbrainz")
	library         = flag.String("library", "", "Path to a Rekordbox XML library export. Defaults to the remembered library.")
	rememberLibrary = flag.Bool("remember-library", false, "Remember -library as the default for future runs")
	playlist        = flag.String("playlist", "", "Only sync the Rekordbox playlist with this name or folder path")
	list            = flag.Bool("list", false, "List the playlists the source provides and exit")

	beatportURL    = flag.String("beatport-url", "", "Beatport chart URL to sync")
	labelURL       = flag.String("label-url", "", "Beatport label URL to sync")
	maxLabelTracks = flag.Int("max-label-tracks", 1000, "Refuse to sync labels with more tracks than this. Zero for no limit.")

	subsonicServer   = flag.String("subsonic-server", "", "Subsonic server base address")
	subsonicUsername = flag.String("subsonic-username", "", "Subsonic username")
	subsonicPassword = flag.String("subsonic-password", "", "Subsonic password")

	lastfmKey      = flag.String("lastfm-key", "", "Last.fm API key")
	lastfmSecret   = flag.String("lastfm-secret", "", "Last.fm API secret")
	lastfmUsername = flag.String("lastfm-username", "", "Last.fm username")
	lastfmPassword = flag.String("lastfm-password", "", "Last.fm password")

	listenbrainzToken    = flag.String("listenbrainz-token", "", "ListenBrainz token")
	listenbrainzUsername = flag.String("listenbrainz-username", "", "ListenBrainz username")

	spotifyID          = flag.String("spotify-id", "", "Spotify application client ID")
	spotifySecret      = flag.String("spotify-secret", "", "Spotify application client secret")
	spotifyRedirectURL = flag.String("spotify-redirect-url", "http://127.0.0.1:8888/callback", "Redirect URL registered for the Spotify application")

	threshold   = flag.Int("threshold", 80, "Minimum match confidence, 0 to 100")
	noCache     = flag.Bool("no-cache", false, "Ignore cached matches. New results are still cached.")
	retry       = flag.Bool("retry", false, "Search again for every previously unmatched track")
	retryDays   = flag.Int("retry-days", 7, "Search again for unmatched tracks cached more than this many days ago")
	incremental = flag.Bool("incremental", true, "Apply only the difference to existing playlists instead of replacing their contents")
	prefix      = flag.String("prefix", "", "Prefix for remote playlist names, giving \"prefix / name\"")
	dryRun      = flag.Bool("dry-run", false, "Match tracks and report what would change without touching any playlists")
	period      = flag.Duration("period", 0, "Length of time between each update. If zero, will update once and exit.")

	cacheFile   = flag.String("cache-file", ".cratesync_cache.json", "Path to the match cache")
	stateFile   = flag.String("state-file", ".cratesync_playlists.json", "Path to the playlist ownership state")
	configFile  = flag.String("config-file", ".cratesync_config.json", "Path to the app config")
	tokenFile   = flag.String("token-file", ".cratesync_token.json", "Path to the cached Spotify user token")
	reportFile  = flag.String("report", "", "Write a Markdown report of each run to this path")
	historyDB   = flag.String("history-db", "", "Record each run in this SQLite database")
	showHistory = flag.Int("show-history", 0, "Print this many recent runs from -history-db and exit")

	availableSources map[string]model.Source
)

func main() {
	_ = godotenv.Load()
	envflag.Parse()
	_ = slogflags.Logger(slogflags.WithSetDefault(true))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *showHistory > 0 {
		if err := printHistory(ctx); err != nil {
			slog.Error("Failed to read history", "error", err)
			os.Exit(exitError)
		}
		return
	}

	if err := initialiseSources(); err != nil {
		slog.Error("Failed to configure sources", "error", err)
		os.Exit(exitError)
	}

	src, err := selectedSource()
	if err != nil {
		slog.Error("Failed to get source", "error", err)
		os.Exit(exitError)
	}

	if *list {
		if err := listPlaylists(ctx, src); err != nil {
			slog.Error("Failed to list playlists", "source", *source, "error", err)
			os.Exit(exitError)
		}
		return
	}

	if *threshold < 0 || *threshold > 100 {
		slog.Error("Threshold must be between 0 and 100", "threshold", *threshold)
		os.Exit(exitError)
	}

	client, err := catalogClient(ctx)
	if err != nil {
		slog.Error("Failed to connect to Spotify", "error", err)
		os.Exit(exitError)
	}

	if period.Minutes() < 1 {
		slog.Debug("Period is less than 1 minute, doing a one-shot run")
		if err := run(ctx, src, client); err != nil {
			os.Exit(exitCode(err))
		}
		return
	}

	for {
		if err := run(ctx, src, client); err != nil {
			if ctx.Err() != nil {
				os.Exit(exitCode(err))
			}
			slog.Warn("Run failed, trying again next period", "error", err)
		}

		slog.Info("Sleeping until next update", "period", *period)
		select {
		case <-ctx.Done():
			return
		case <-time.After(*period):
		}
	}
}

// run syncs every playlist from the source, reporting what happened
func run(ctx context.Context, src model.Source, client *catalog.Client) error {
	rep := &report.Run{
		Started:   time.Now(),
		Threshold: *threshold,
		DryRun:    *dryRun,
	}

	playlists, err := src.Playlists(ctx)
	if err != nil {
		slog.Error("Failed to get playlists from source", "source", *source, "error", err)
		return err
	}

	slog.Info("Retrieved playlists", "source", *source, "count", len(playlists))

	matchCache, cacheResult := cache.Open(*cacheFile)
	rep.NoteSnapshot("match cache", cacheResult)
	store, stateResult := state.Open(*stateFile)
	rep.NoteSnapshot("playlist state", stateResult)

	s := syncer.New(
		matchCache,
		matcher.New(client, matcher.DefaultConfig()),
		reconcile.New(client, store, *prefix, *incremental),
		syncer.Options{
			Threshold:   *threshold,
			BypassCache: *noCache,
			ForceRetry:  *retry,
			RetryAge:    time.Duration(*retryDays) * 24 * time.Hour,
			DryRun:      *dryRun,
		},
	)

	for _, p := range playlists {
		result, err := s.Sync(ctx, p)
		if result != nil {
			rep.Playlists = append(rep.Playlists, result)
		}
		if err != nil {
			rep.Err = err
			break
		}
	}

	finish(ctx, rep)

	if rep.Err != nil {
		var rateLimit *catalog.RateLimitExceededError
		if errors.As(rep.Err, &rateLimit) {
			slog.Error("Spotify rate limit exceeded, progress has been saved", "retry_after", rateLimit.Wait())
		} else {
			slog.Error("Sync stopped early", "error", rep.Err)
		}
	}
	return rep.Err
}

// finish prints the run report and persists it wherever requested
func finish(ctx context.Context, rep *report.Run) {
	if err := rep.WriteText(os.Stdout); err != nil {
		slog.Warn("Failed to print report", "error", err)
	}

	if *reportFile != "" {
		if err := rep.SaveMarkdown(*reportFile); err != nil {
			slog.Warn("Failed to save report", "path", *reportFile, "error", err)
		} else {
			slog.Info("Saved report", "path", *reportFile)
		}
	}

	if *historyDB != "" {
		db, err := history.Open(*historyDB)
		if err != nil {
			slog.Warn("Failed to open history database", "path", *historyDB, "error", err)
			return
		}
		defer db.Close()

		// Record even if the run was interrupted.
		id, err := db.Record(context.WithoutCancel(ctx), rep, time.Now())
		if err != nil {
			slog.Warn("Failed to record run history", "error", err)
			return
		}
		slog.Debug("Recorded run history", "id", id)
	}
}

func exitCode(err error) int {
	var rateLimit *catalog.RateLimitExceededError
	if errors.As(err, &rateLimit) {
		return exitRateLimited
	}
	return exitError
}

// catalogClient connects to Spotify. Dry runs only search, so they use the
// application's credentials; real runs act on the user's behalf.
func catalogClient(ctx context.Context) (*catalog.Client, error) {
	if *spotifyID == "" || *spotifySecret == "" {
		return nil, fmt.Errorf("spotify-id and spotify-secret must be specified")
	}

	auth := &catalog.Auth{
		ClientID:     *spotifyID,
		ClientSecret: *spotifySecret,
		RedirectURL:  *spotifyRedirectURL,
		TokenPath:    *tokenFile,
		Prompt: func(url string) {
			fmt.Printf("Visit this URL to allow cratesync to manage your playlists:\n\n  %s\n\n", url)
		},
	}

	var httpClient *http.Client
	if *dryRun {
		httpClient = auth.AppClient(ctx)
	} else {
		var err error
		httpClient, err = auth.UserClient(ctx)
		if err != nil {
			return nil, err
		}
	}

	return catalog.NewClient(catalog.NewSpotify(httpClient)), nil
}

func initialiseSources() error {
	availableSources = make(map[string]model.Source)

	path, err := libraryPath()
	if err != nil {
		return err
	}

	if path != "" {
		availableSources["rekordbox"] = &sources.Rekordbox{
			Path:     path,
			Playlist: *playlist,
		}
	}

	if *beatportURL != "" {
		chart, err := sources.NewBeatport(*beatportURL)
		if err != nil {
			return err
		}
		availableSources["beatport"] = chart
	}

	if *labelURL != "" {
		label, err := sources.NewBeatportLabel(*labelURL, *maxLabelTracks)
		if err != nil {
			return err
		}
		availableSources["label"] = label
	}

	if *subsonicServer != "" {
		availableSources["subsonic"] = &sources.Subsonic{
			BaseURL:    *subsonicServer,
			Username:   *subsonicUsername,
			Password:   *subsonicPassword,
			ClientName: "cratesync",
		}
	}

	if *lastfmKey != "" && *lastfmSecret != "" {
		availableSources["lastfm"] = &sources.Lastfm{
			APIKey:   *lastfmKey,
			Secret:   *lastfmSecret,
			Username: *lastfmUsername,
			Password: *lastfmPassword,
		}
	}

	if *listenbrainzUsername != "" {
		availableSources["listenbrainz"] = &sources.ListenBrainz{
			Token:    *listenbrainzToken,
			Username: *listenbrainzUsername,
		}
	}

	return nil
}

// libraryPath returns the Rekordbox library to use, remembering it if asked.
// An explicit -library wins over the remembered one.
func libraryPath() (string, error) {
	cfg := config.Load(*configFile)

	if *library == "" {
		if *rememberLibrary {
			return "", fmt.Errorf("remember-library requires library to be specified")
		}
		if cfg.Settings.LibraryPath != "" {
			slog.Debug("Using remembered library", "path", cfg.Settings.LibraryPath)
		}
		return cfg.Settings.LibraryPath, nil
	}

	path, err := config.ExpandPath(*library)
	if err != nil {
		return "", err
	}

	if err := config.ValidateLibrary(path); err != nil {
		return "", err
	}

	if *rememberLibrary {
		if err := cfg.SetLibrary(path); err != nil {
			return "", err
		}
		if err := cfg.Save(); err != nil {
			return "", fmt.Errorf("saving config: %w", err)
		}
		slog.Info("Remembered library", "path", cfg.Settings.LibraryPath)
	}

	return path, nil
}

func selectedSource() (model.Source, error) {
	if *source == "" {
		return nil, fmt.Errorf("source must be specified")
	}

	src, ok := availableSources[*source]
	if !ok {
		return nil, fmt.Errorf("source not configured or invalid: %s", *source)
	}

	return src, nil
}

func listPlaylists(ctx context.Context, src model.Source) error {
	playlists, err := src.Playlists(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(playlists))
	for _, p := range playlists {
		seen[p.Identity] = true
		fmt.Printf("  %s (%d tracks)\n", p.Identity, len(p.Tracks))
	}

	store, _ := state.Open(*stateFile)
	var gone []string
	for _, identity := range store.Identities() {
		if !seen[identity] {
			gone = append(gone, identity)
		}
	}
	if len(gone) > 0 {
		fmt.Println("Previously synced, no longer in source:")
		for _, identity := range gone {
			fmt.Printf("  %s\n", identity)
		}
	}
	return nil
}

func printHistory(ctx context.Context) error {
	if *historyDB == "" {
		return fmt.Errorf("show-history requires history-db to be specified")
	}

	db, err := history.Open(*historyDB)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Recent(ctx, *showHistory)
	if err != nil {
		return err
	}

	for _, r := range runs {
		mode := "live"
		if r.DryRun {
			mode = "dry run"
		}
		status := "ok"
		if r.Error != "" {
			status = r.Error
		}
		fmt.Printf(
			"#%d  %s  %-7s  %d playlists  %d matched  %d unmatched  +%d -%d  %s\n",
			r.ID, r.Started.Format("2006-01-02 15:04"), mode, r.Playlists, r.Matched, r.Unresolved, r.Added, r.Removed, status,
		)
	}
	return nil
}
