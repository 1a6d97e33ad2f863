package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: authsession <command> [flags]

commands:
  login   -username U -password P   exchange credentials and store the tokens
  session [-refresh]                open the session and print it
  logout                            revoke and clear the stored credentials
  get     -url URL [-override-old A -override-new B]
                                    call an API with the session token`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("authsession failed")
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	// .env is optional
	_ = godotenv.Load()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c.GetLogLevel())

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return errors.New("missing command")
	}
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, commandArgs := args[0], args[1:]
	switch command {
	case "login":
		return loginCommand(ctx, c, commandArgs)
	case "session":
		return sessionCommand(ctx, c, commandArgs)
	case "logout":
		return logoutCommand(ctx, c, commandArgs)
	case "get":
		return getCommand(ctx, c, commandArgs)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(os.Stderr, myFigure.String())
}
