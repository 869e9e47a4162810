package mqtt

import (
	"encoding/json"
	"strings"
	"time"
)

// Topic suffixes under a node.
const (
	TopicRx   = "rx"
	TopicTx   = "tx"
	TopicMeta = "meta"
)

// NodeTopic builds the topic of a node.
func NodeTopic(node, suffix string) string {
	return node + "/" + suffix
}

// SplitNodeTopic extracts node and suffix from a topic relative to the
// prefix.
func SplitNodeTopic(topic string) (node, suffix string, ok bool) {
	items := strings.Split(topic, "/")
	if len(items) != 2 || items[0] == "" {
		return "", "", false
	}
	return items[0], items[1], true
}

// NodeMeta describes a node. It's published retained on the meta topic.
type NodeMeta struct {
	Node        string    `json:"node"`
	Device      string    `json:"device,omitempty"`
	Description string    `json:"description,omitempty"`
	Started     time.Time `json:"started"`
}

// ParseNodeMeta decodes a meta payload, nil for a cleared meta.
func ParseNodeMeta(payload []byte) (*NodeMeta, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var meta NodeMeta
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
