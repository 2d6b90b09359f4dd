package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/recast/pkg/bus"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// relay streams envelopes from stdin through an in-memory pub/sub pipeline:
// feeder -> in topic -> reform handler -> out topic -> printer. It runs
// until interrupted.
func newRelayCmd() *cobra.Command {
	var inTopic, outTopic string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the transform as an in-memory pub/sub pipeline over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			reformer, defaultTag, err := buildReformer(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := bus.NewInMemoryBus()
			if err != nil {
				return err
			}
			b.AddReformHandler("reform", inTopic, outTopic, reformer, defaultTag)

			out, err := b.Subscriber.Subscribe(ctx, outTopic)
			if err != nil {
				return errors.Wrap(err, "subscribe output topic")
			}

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				err := b.Run(egCtx)
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			eg.Go(func() error {
				return printEnvelopes(egCtx, cmd.OutOrStdout(), out)
			})
			eg.Go(func() error {
				return feedLines(egCtx, cmd.InOrStdin(), b.Publisher, inTopic)
			})

			if err := eg.Wait(); err != nil {
				return errors.Wrap(err, "relay")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inTopic, "in-topic", "events.in", "Input topic name")
	cmd.Flags().StringVar(&outTopic, "out-topic", "events.out", "Output topic name")
	return cmd
}

func feedLines(ctx context.Context, r io.Reader, pub message.Publisher, topic string) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if line != "" && line != "\n" {
			msg := message.NewMessage(watermill.NewUUID(), []byte(line))
			if perr := pub.Publish(topic, msg); perr != nil {
				return errors.Wrap(perr, "publish event")
			}
		}
		if errors.Is(err, io.EOF) {
			// Keep the pipeline alive for in-flight events until the
			// relay is interrupted.
			<-ctx.Done()
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func printEnvelopes(ctx context.Context, w io.Writer, msgs <-chan *message.Message) error {
	bw := bufio.NewWriter(w)
	defer func() { _ = bw.Flush() }()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if _, err := bw.Write(append(msg.Payload, '\n')); err != nil {
				msg.Nack()
				return err
			}
			if err := bw.Flush(); err != nil {
				msg.Nack()
				return err
			}
			msg.Ack()
		case <-ctx.Done():
			return nil
		}
	}
}
