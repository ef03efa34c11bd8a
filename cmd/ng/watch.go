package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alfredjeanlab/nodegraph/internal/client"
	"github.com/alfredjeanlab/nodegraph/internal/events"
	"github.com/alfredjeanlab/nodegraph/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [topic-pattern]",
	Short: "Stream session events",
	Long: `Stream session events as they happen.

Events are read from NATS when nats_url is configured (or --nats is given),
and from the editor server's event stream otherwise. The pattern uses NATS
wildcards; the default is every nodegraph topic.`,
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := "nodegraph.>"
		if len(args) == 1 {
			pattern = args[0]
		}
		natsURL := cfg.NATSURL
		if cmd.Flags().Changed("nats") {
			natsURL, _ = cmd.Flags().GetString("nats")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, natsURL, pattern)
		}
		hc, ok := editorClient.(*client.HTTPEditor)
		if !ok {
			return fmt.Errorf("event stream needs an HTTP editor client")
		}
		ch, err := hc.Events(ctx, pattern)
		if err != nil {
			return fmt.Errorf("opening event stream: %w", err)
		}
		printMessages(ctx, ch)
		return nil
	},
}

func watchNATS(ctx context.Context, natsURL, pattern string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(pattern)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()
	printMessages(ctx, ch)
	return nil
}

func printMessages(ctx context.Context, ch <-chan events.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Println(formatMessage(msg, time.Now()))
		}
	}
}

// formatMessage renders one event line. Under --json the message is printed
// as a single JSON object.
func formatMessage(msg events.Message, at time.Time) string {
	if jsonOutput {
		data, err := json.Marshal(msg)
		if err != nil {
			return msg.Topic
		}
		return string(data)
	}
	topic := strings.TrimPrefix(msg.Topic, "nodegraph.")
	if msg.Source != "" {
		topic += ui.RenderMuted(" @" + msg.Source)
	}
	return fmt.Sprintf("%s  %s  %s", ui.RenderMuted(at.Format("15:04:05")), ui.RenderAccent(topic), msg.Data)
}

func init() {
	watchCmd.Flags().String("nats", "", "NATS URL to subscribe to (default from config)")
}
