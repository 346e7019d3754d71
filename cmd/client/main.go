package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/messages"
	"github.com/cbodonnell/gameflow/pkg/network"
	"github.com/cbodonnell/gameflow/pkg/version"
)

func main() {
	serverURL := flag.String("url", "ws://localhost:8889"+network.NotificationsPath, "notifications endpoint")
	token := flag.String("token", os.Getenv("GAMEFLOW_API_TOKEN"), "bearer token")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)

	log.Info("Starting gameflow client version %s", version.Get())
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	client, err := network.DialWSClient(dialCtx, network.NewWSClientOptions{
		URL:   *serverURL,
		Token: *token,
	})
	cancelDial()
	if err != nil {
		panic(fmt.Sprintf("Failed to connect: %v", err))
	}
	defer client.Close()
	log.Info("Connected to %s", *serverURL)

	err = client.Listen(ctx, func(msg *messages.Message) {
		log.Info("%s at %s: %s", msg.Type, time.UnixMilli(msg.Timestamp).Format(time.RFC3339Nano), describe(msg))
	})
	if err != nil && ctx.Err() == nil {
		log.Error("Connection lost: %v", err)
		os.Exit(1)
	}
}

// describe renders the payload of a known message type.
func describe(msg *messages.Message) string {
	var v interface{}
	switch msg.Type {
	case messages.MessageTypePauseChanged:
		v = &messages.PauseChanged{}
	case messages.MessageTypeGameOver:
		v = &messages.GameOver{}
	case messages.MessageTypeStateChanged:
		v = &messages.StateChanged{}
	case messages.MessageTypeScoreChanged:
		v = &messages.ScoreChanged{}
	default:
		return string(msg.Payload)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Sprintf("undecodable payload: %v", err)
	}
	return fmt.Sprintf("%+v", v)
}
