package mqtt

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"

	"github.com/robotalks/trackside/pkg/bridge"
	"github.com/robotalks/trackside/pkg/bridge/msgs"
)

// Bridge publishes frames received by a node and submits frames
// published to the node.
type Bridge struct {
	Queue *Queue
	Hub   *bridge.Hub

	metaJSON []byte
}

// NewBridge creates a Bridge for the node of hub.
func NewBridge(brokerURL string, hub *bridge.Hub, meta NodeMeta) (*Bridge, error) {
	opts, topicPrefix, qos, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+NodeTopic(hub.Node, TopicMeta), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("trackside:" + hub.Node)
	}
	return NewBridgeWith(NewQueue(opts, topicPrefix, qos), hub, meta), nil
}

// NewBridgeWith creates a Bridge on an existing Queue.
func NewBridgeWith(q *Queue, hub *bridge.Hub, meta NodeMeta) *Bridge {
	meta.Node = hub.Node
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		panic(err)
	}
	b := &Bridge{Queue: q, Hub: hub, metaJSON: metaJSON}
	q.OnConnect = func(*Queue) { b.publishMeta() }
	return b
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "mqtt"
}

// Run implements framework.Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	frames := b.Hub.Subscribe()
	defer frames.Close()
	sub := b.Queue.Sub(NodeTopic(b.Hub.Node, TopicTx), b.handleSubmit)
	b.Queue.Connect()
	defer b.Queue.Close()
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			b.Queue.PubWith(NodeTopic(b.Hub.Node, TopicMeta), nil, 1, true).Wait()
			return nil
		case f, ok := <-frames.C:
			if !ok {
				return nil
			}
			b.publishFrame(f)
		}
	}
}

func (b *Bridge) publishMeta() {
	b.Queue.PubWith(NodeTopic(b.Hub.Node, TopicMeta), b.metaJSON, 1, true)
}

func (b *Bridge) publishFrame(f *msgs.Frame) {
	payload, err := msgs.Encode(f)
	if err != nil {
		glog.Errorf("encode frame %d: %v", f.Seq, err)
		return
	}
	b.Queue.Pub(NodeTopic(b.Hub.Node, TopicRx), payload)
}

func (b *Bridge) handleSubmit(topic string, payload []byte) {
	f, err := msgs.Decode(payload)
	if err != nil {
		glog.Warningf("%s: %v", topic, err)
		return
	}
	f.Direction = msgs.Submit
	if err := b.Hub.Submit(f); err != nil {
		glog.Warningf("%s: submit % X: %v", topic, f.Data, err)
	}
}
