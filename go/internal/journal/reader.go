package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Reader follows the journal stream with an ordered consumer.
type Reader struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config Config
}

func NewReader(cfg Config) (*Reader, error) {
	nc, js, err := connect(cfg, "quizlive-journal-reader")
	if err != nil {
		return nil, err
	}
	return &Reader{nc: nc, js: js, config: cfg}, nil
}

// Follow delivers events for subject filter (an event name or ">") until ctx
// is done. With replay set the stream is read from the beginning.
func (r *Reader) Follow(ctx context.Context, filter string, replay bool, handle func(Envelope)) error {
	policy := jetstream.DeliverNewPolicy
	if replay {
		policy = jetstream.DeliverAllPolicy
	}
	consumer, err := r.js.OrderedConsumer(ctx, r.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{fmt.Sprintf("%s.%s", r.config.SubjectPrefix, filter)},
		DeliverPolicy:  policy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		env, err := DecodeEnvelope(msg.Data())
		if err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("skipping undecodable event")
			return
		}
		handle(env)
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	return nil
}

func (r *Reader) Close() {
	r.nc.Close()
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.EventType == "" || env.GameID == "" {
		return Envelope{}, fmt.Errorf("event envelope missing type or game id")
	}
	return env, nil
}
