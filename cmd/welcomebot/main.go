/*
Package main runs the welcome bot: a headless participant that greets every user
joining the chatroom.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatroom/internal/app/actions"
	"chatroom/internal/app/bot"
	"chatroom/internal/app/event"
	"chatroom/internal/app/registry"
	"chatroom/internal/app/rpc"
	"chatroom/internal/app/session"
	"chatroom/internal/app/stream"
	"chatroom/internal/app/user"
	"chatroom/internal/app/view"
	"chatroom/internal/configs"
	"chatroom/internal/pkg/logx"
)

const renewCheckInterval = 30 * time.Second

func main() {
	cfg, err := configs.LoadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New()
	api := rpc.NewClient(cfg.ServerURL, sess, cfg.RequestTimeout)
	auth := actions.NewAuth(api, sess, user.FlagBot)
	welcomer := bot.NewWelcomer(api, sess)

	router := view.NewRouter(sess, registry.New(api))
	events := stream.New(api, api, router, stream.Options{
		ReconnectBase: cfg.ReconnectBase,
		ReconnectMax:  cfg.ReconnectMax,
		OnEvent: func(env event.Envelope, _ bool) {
			go func() { _, _ = welcomer.HandleEvent(ctx, env) }()
		},
	})

	if err := auth.Join(ctx, cfg.BotName); err != nil {
		logx.Fatal(err, "Failed to join chatroom", "name", cfg.BotName)
	}
	logx.Info("Welcome bot joined", "name", cfg.BotName, "user_id", sess.UserID().String())

	if err := welcomer.Greet(ctx); err != nil {
		logx.Warn("Failed to send greeting", "error", err.Error())
	}

	go auth.KeepRenewed(ctx, renewCheckInterval)

	runErr := events.Run(ctx)
	stop()

	if errors.Is(runErr, rpc.ErrSessionEnded) {
		logx.Info("Welcome bot was removed from the chatroom")
		return
	}

	leaveCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	if err := welcomer.Goodbye(leaveCtx); err != nil {
		logx.Warn("Failed to send goodbye", "error", err.Error())
	}
	if err := auth.Leave(leaveCtx); err != nil {
		logx.Error(err, "Failed to leave chatroom")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logx.Error(runErr, "Event stream ended")
		os.Exit(1)
	}
	logx.Info("Welcome bot stopped.")
}
