/*
Package main runs the chatter bot: a headless participant that keeps typing and
sending random sentences to the global room.
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

	"github.com/google/uuid"

	"chatroom/internal/app/actions"
	"chatroom/internal/app/bot"
	"chatroom/internal/app/rpc"
	"chatroom/internal/app/session"
	"chatroom/internal/app/user"
	"chatroom/internal/configs"
	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/logx"
)

const (
	renewCheckInterval = 30 * time.Second
	joinAttempts       = 3
)

// globalRoom addresses every chat to everyone.
type globalRoom struct{}

func (globalRoom) Active() uuid.UUID { return uuid.Nil }

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

	// random names may collide with active users
	for i := 0; ; i++ {
		err = auth.Join(ctx, bot.RandomName())
		if err == nil || !errs.HasCode(err, errs.ErrUserNameTaken) || i == joinAttempts-1 {
			break
		}
	}
	if err != nil {
		logx.Fatal(err, "Failed to join chatroom")
	}
	logx.Info("Chatter bot joined", "user_id", sess.UserID().String())

	go auth.KeepRenewed(ctx, renewCheckInterval)

	chatter := bot.NewChatter(actions.NewComposer(api, globalRoom{}))
	runErr := chatter.Run(ctx)
	stop()

	if rpc.IsPermanent(runErr) {
		logx.Info("Chatter bot session ended")
		return
	}

	leaveCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if err := auth.Leave(leaveCtx); err != nil {
		logx.Error(err, "Failed to leave chatroom")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logx.Error(runErr, "Chatter stopped")
		return
	}
	logx.Info("Chatter bot stopped.")
}
