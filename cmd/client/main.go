/*
Package main is the terminal chat client.

It wires the client components together, asks for a display name and runs the
bubbletea program until the user quits. Logs go to a file so they do not corrupt
the screen.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chatroom/internal/app/actions"
	"chatroom/internal/app/registry"
	"chatroom/internal/app/rpc"
	"chatroom/internal/app/session"
	"chatroom/internal/app/stream"
	"chatroom/internal/app/user"
	"chatroom/internal/app/view"
	"chatroom/internal/configs"
	"chatroom/internal/pkg/logx"
	"chatroom/internal/tui"
)

const renewCheckInterval = 30 * time.Second

func main() {
	cfg, err := configs.LoadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := logx.InitFileLogger(cfg.LogFile, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New()
	api := rpc.NewClient(cfg.ServerURL, sess, cfg.RequestTimeout)

	users := registry.New(api)
	router := view.NewRouter(sess, users)
	events := stream.New(api, api, router, stream.Options{
		ReconnectBase: cfg.ReconnectBase,
		ReconnectMax:  cfg.ReconnectMax,
	})
	auth := actions.NewAuth(api, sess, user.FlagNone)

	start := func(ctx context.Context) (<-chan error, error) {
		if err := users.FetchAll(ctx); err != nil {
			return nil, err
		}
		if err := events.LoadPrevious(ctx, cfg.HistoryLimit); err != nil {
			return nil, err
		}

		done := make(chan error, 1)
		go func() { done <- events.Run(ctx) }()
		go auth.KeepRenewed(ctx, renewCheckInterval)
		return done, nil
	}

	model := tui.New(ctx, tui.Deps{
		Session:  sess,
		Auth:     auth,
		Composer: actions.NewComposer(api, router),
		Router:   router,
		Registry: users,
		Status:   api,
		Start:    start,
	})
	defer model.Close()

	logx.Info("Client starting", "server", cfg.ServerURL.String())

	_, runErr := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	interrupted := ctx.Err() != nil
	stop()

	if sess.Authenticated() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		_ = auth.Leave(leaveCtx)
		cancel()
	}

	if runErr != nil && !interrupted {
		logx.Error(runErr, "Terminal program failed")
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
