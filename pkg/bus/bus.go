package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	gochannel "github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/recast/pkg/reform"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Envelope is the wire form of one event on the bus: a routing tag, a Unix
// timestamp in seconds, and the record body.
type Envelope struct {
	Tag    string         `json:"tag"`
	Time   int64          `json:"time,omitempty"`
	Record map[string]any `json:"record"`
}

// DecodeEnvelope accepts either a full {tag, time, record} envelope or a
// bare record object, which gets the default tag.
func DecodeEnvelope(payload []byte, defaultTag string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Record == nil {
		var record map[string]any
		if rerr := json.Unmarshal(payload, &record); rerr != nil {
			return Envelope{}, errors.Wrap(rerr, "decode event")
		}
		env = Envelope{Record: record}
	}
	if env.Tag == "" {
		env.Tag = defaultTag
	}
	return env, nil
}

// EventTime interprets the envelope timestamp, defaulting to now.
func (e Envelope) EventTime() time.Time {
	if e.Time > 0 {
		return time.Unix(e.Time, 0)
	}
	return time.Now()
}

type Bus struct {
	Router     *message.Router
	Publisher  message.Publisher
	Subscriber message.Subscriber

	runOnce sync.Once
}

func NewInMemoryBus() (*Bus, error) {
	logger := watermill.NopLogger{}
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1024}, logger)

	r, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new watermill router")
	}
	return &Bus{
		Router:     r,
		Publisher:  pubsub,
		Subscriber: pubsub,
	}, nil
}

// AddReformHandler consumes envelopes from inTopic, reforms each record, and
// publishes transformed envelopes to outTopic. Malformed payloads and events
// dropped by the reformer produce no output message; the stream continues.
func (b *Bus) AddReformHandler(name, inTopic, outTopic string, r *reform.Reformer, defaultTag string) {
	b.Router.AddHandler(name, inTopic, b.Subscriber, outTopic, b.Publisher,
		func(msg *message.Message) ([]*message.Message, error) {
			env, err := DecodeEnvelope(msg.Payload, defaultTag)
			if err != nil {
				log.Warn().Err(err).Str("message_uuid", msg.UUID).
					Msg("dropping message: invalid envelope payload")
				return nil, nil
			}

			tag := env.Tag
			out := r.ReformBatch(tag, []reform.Event{{Time: env.EventTime(), Record: env.Record}})
			msgs := make([]*message.Message, 0, len(out))
			for _, ev := range out {
				payload, err := json.Marshal(Envelope{
					Tag:    tag,
					Time:   ev.Time.Unix(),
					Record: ev.Record,
				})
				if err != nil {
					log.Warn().Err(err).Str("tag", tag).
						Msg("dropping event: marshal transformed envelope")
					continue
				}
				msgs = append(msgs, message.NewMessage(watermill.NewUUID(), payload))
			}
			return msgs, nil
		})
}

func (b *Bus) Run(ctx context.Context) error {
	var runErr error
	b.runOnce.Do(func() {
		go func() {
			<-ctx.Done()
			_ = b.Router.Close()
		}()
		runErr = b.Router.Run(ctx)
	})
	return runErr
}
