package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// Message headers set by NATSPublisher.
const (
	HeaderSource = "Nodegraph-Source"
	HeaderSeq    = "Nodegraph-Seq"
)

// NATSPublisher publishes each event as JSON on the subject named by its
// topic. Every message carries the publishing session's client id and a
// per-publisher sequence number; together they also form the Nats-Msg-Id,
// so a JetStream stream bound to these subjects deduplicates redeliveries.
type NATSPublisher struct {
	conn   *nats.Conn
	source string
	seq    atomic.Uint64
}

// NewNATSPublisher connects to the server at url. source identifies the
// session in message headers and is normally its client id.
func NewNATSPublisher(url, source string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name("nodegraph " + source)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc, source: source}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	seq := strconv.FormatUint(p.seq.Add(1), 10)
	msg := nats.NewMsg(topic)
	msg.Data = data
	msg.Header.Set(HeaderSource, p.source)
	msg.Header.Set(HeaderSeq, seq)
	msg.Header.Set(nats.MsgIdHdr, p.source+"-"+seq)
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil && err != nats.ErrConnectionClosed {
		p.conn.Close()
		return err
	}
	return nil
}

// NATSSubscriber receives events from NATS subjects. It reconnects forever.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to url. Extra options (disconnect and
// reconnect handlers, a client name) are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe delivers messages on subjects matching topic, which may use NATS
// wildcards ("nodegraph.>"). Messages beyond the buffer are dropped by the
// NATS client as a slow consumer. cancel unsubscribes and closes the
// channel; it is safe to call more than once.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	raw := make(chan *nats.Msg, subscriberBuffer)
	sub, err := s.conn.ChanSubscribe(topic, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// The subscription must reach the server before messages published on
	// other connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	out := make(chan Message, subscriberBuffer)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		for {
			select {
			case <-stop:
				return
			case m := <-raw:
				select {
				case out <- toMessage(m):
				case <-stop:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			close(stop)
			<-done
		})
	}
	return out, cancel, nil
}

func toMessage(m *nats.Msg) Message {
	return Message{Topic: m.Subject, Source: m.Header.Get(HeaderSource), Data: m.Data}
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
