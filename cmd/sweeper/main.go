package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/sweeper/config"
	"github.com/tomasstrnad1997/sweeper/db"
	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
	"github.com/tomasstrnad1997/sweeper/render"
	"github.com/tomasstrnad1997/sweeper/replay"
	"github.com/tomasstrnad1997/sweeper/session"
)

const usage = `usage: sweeper [-config file] <command> [args]

commands:
  play [-name player] [-size n] [-mines n]   play a game in the terminal
  list                                       list recorded games
  replay [-remote ws://host:port] [-interval d] <game id>
  verify <game id>                           check a recorded game replays`

var log = logrus.New()

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log = cfg.NewLogger()
	// Interactive output goes to stdout, keep the log out of the way.
	log.SetOutput(os.Stderr)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "play":
		err = runPlay(ctx, cfg, args[1:])
	case "list":
		err = runList(ctx, cfg)
	case "replay":
		err = runReplay(ctx, cfg, args[1:])
	case "verify":
		err = runVerify(ctx, cfg, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal(args[0] + " failed")
	}
}

func openStore(cfg config.Config) (*db.SQLStore, error) {
	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.DBPath, err)
	}
	if err := store.InitializeTables(); err != nil {
		store.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return store, nil
}

func runPlay(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	name := fs.String("name", os.Getenv("USER"), "player name")
	size := fs.Int("size", cfg.DefaultSize, "board size")
	mineCount := fs.Int("mines", cfg.DefaultMines, "number of mines")
	fs.Parse(args)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	sess, err := session.New(store, *name, *size, *mineCount, session.WithLogger(logrus.NewEntry(log)))
	if err != nil {
		return err
	}
	return play(ctx, sess, os.Stdin, os.Stdout)
}

func play(ctx context.Context, sess *session.Session, in io.Reader, out io.Writer) error {
	term := render.NewTerminal(out, sess.Size())
	scanner := bufio.NewScanner(in)
	last := mines.NoChange
	title := fmt.Sprintf("%dx%d board with %d mines, enter \"x y\" to reveal or \"x y f\" to flag", sess.Size(), sess.Size(), sess.Mines())
	for !sess.GameOver() {
		if err := term.Draw(title); err != nil {
			return err
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		move, err := mines.ParseMove(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		resp, err := sess.Apply(ctx, move)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		term.Apply(resp.Updates)
		if resp.Result != mines.NoChange {
			last = resp.Result
		}
		title = fmt.Sprintf("%s -> %s", move, resp.Result)
	}
	term.Apply(sess.Board())
	if err := term.Draw(title); err != nil {
		return err
	}
	if err := term.RenderEnd(history.OutcomeFor(last)); err != nil {
		return err
	}
	if id := sess.GameID(); id != 0 {
		fmt.Fprintf(out, "Recorded as game %d\n", id)
	}
	return nil
}

func runList(ctx context.Context, cfg config.Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	games, err := store.ListGames(ctx)
	if err != nil {
		return err
	}
	for _, g := range games {
		fmt.Printf("%5d  %s  %-16s %2dx%-2d %3d mines  %s\n",
			g.ID, g.Date.Local().Format("2006-01-02 15:04"), g.PlayerName, g.Width, g.Height, g.MinesCount, g.Outcome)
	}
	return nil
}

func parseGameID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected a single game id, got %d arguments", len(args))
	}
	return strconv.ParseInt(args[0], 10, 64)
}

func runReplay(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	remote := fs.String("remote", "", "stream the replay from a sweeper server, e.g. ws://localhost:8080")
	interval := fs.Duration("interval", cfg.ReplayInterval, "delay between moves")
	fs.Parse(args)
	id, err := parseGameID(fs.Args())
	if err != nil {
		return err
	}
	if *remote != "" {
		return remoteReplay(ctx, *remote, id, *interval, os.Stdout)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	record, moves, err := store.GetGameForReplay(ctx, id)
	if err != nil {
		return err
	}
	r, err := replay.New(record, moves)
	if err != nil {
		return err
	}
	term := render.NewTerminal(os.Stdout, record.Width)
	if err := term.Draw(fmt.Sprintf("Replay of game %d by %s", record.ID, record.PlayerName)); err != nil {
		return err
	}
	return replay.Play(ctx, r, *interval, term)
}

func runVerify(ctx context.Context, cfg config.Config, args []string) error {
	id, err := parseGameID(args)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	record, moves, err := store.GetGameForReplay(ctx, id)
	if err != nil {
		return err
	}
	r, err := replay.New(record, moves)
	if err != nil {
		return err
	}
	if _, err := r.RunAll(); err != nil {
		return err
	}
	fmt.Printf("Game %d replays cleanly: %d moves, %s\n", id, r.Len(), r.Outcome())
	return nil
}
