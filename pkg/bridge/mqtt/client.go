package mqtt

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/trackside/pkg/bridge/msgs"
)

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Client talks to nodes through the broker.
type Client struct {
	Queue           *Queue
	Name            string
	DiscoverTimeout time.Duration

	seq uint64
}

// NewClient creates a Client and connects.
func NewClient(brokerURL, name string) (*Client, error) {
	opts, topicPrefix, qos, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	c := NewClientWith(NewQueue(opts, topicPrefix, qos), name)
	token := c.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewClientWith creates a Client on an existing Queue.
func NewClientWith(q *Queue, name string) *Client {
	return &Client{Queue: q, Name: name, DiscoverTimeout: DefaultDiscoverTimeout}
}

// Close implements io.Closer.
func (c *Client) Close() error {
	return c.Queue.Close()
}

// Discover collects retained meta of nodes until timeout.
func (c *Client) Discover(ctx context.Context) ([]NodeMeta, error) {
	metaCh := make(chan NodeMeta, 16)
	sub := c.Queue.Sub(NodeTopic("+", TopicMeta), func(topic string, payload []byte) {
		meta, err := ParseNodeMeta(payload)
		if err != nil {
			glog.Warningf("%s: %v", topic, err)
			return
		}
		if meta == nil {
			return
		}
		if node, _, ok := SplitNodeTopic(topic); ok {
			meta.Node = node
		}
		select {
		case metaCh <- *meta:
		case <-time.After(time.Second):
		}
	})
	defer sub.Close()

	dur := c.DiscoverTimeout
	if dur == 0 {
		dur = DefaultDiscoverTimeout
	}
	found := make(map[string]NodeMeta)
	timeout := time.After(dur)
	for {
		select {
		case meta := <-metaCh:
			found[meta.Node] = meta
		case <-timeout:
			nodes := make([]NodeMeta, 0, len(found))
			for _, meta := range found {
				nodes = append(nodes, meta)
			}
			sort.Slice(nodes, func(i, j int) bool { return nodes[i].Node < nodes[j].Node })
			return nodes, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Send submits a message or a complete frame to a node.
func (c *Client) Send(node string, data []byte) error {
	payload, err := msgs.Encode(&msgs.Frame{
		Node:      c.Name,
		Seq:       atomic.AddUint64(&c.seq, 1),
		Data:      data,
		Timestamp: time.Now().UnixNano(),
		Direction: msgs.Submit,
	})
	if err != nil {
		return err
	}
	token := c.Queue.Pub(NodeTopic(node, TopicTx), payload)
	token.Wait()
	return token.Error()
}

// Monitor subscribes frames received by node, "+" for all nodes.
func (c *Client) Monitor(node string, handler func(*msgs.Frame)) *Subscription {
	return c.Queue.Sub(NodeTopic(node, TopicRx), func(topic string, payload []byte) {
		f, err := msgs.Decode(payload)
		if err != nil {
			glog.Warningf("%s: %v", topic, err)
			return
		}
		if node, _, ok := SplitNodeTopic(topic); ok && f.Node == "" {
			f.Node = node
		}
		handler(f)
	})
}
