package survey

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes block orientations and point estimates to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	nodes         map[string]NodeOrientation
	mu            sync.RWMutex
}

// NewPublisher creates a publisher; the topic prefix comes from
// MQTT_PUBLISH_PREFIX, then prefix, then "blockori"
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	return &Publisher{
		client:        client,
		publishPrefix: envOr("MQTT_PUBLISH_PREFIX", prefix, "blockori"),
		qos:           0,
		retain:        true,
		nodes:         make(map[string]NodeOrientation),
	}
}

// Prefix returns the topic prefix in use
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// PublishBlock publishes every node to {prefix}/{node} and the whole block
// to {prefix}/block. Nodes that left the block are dropped from the
// combined message.
func (p *Publisher) PublishBlock(sol *BlockSolution) error {
	if !sol.IsConnected() {
		return ErrNotConnected
	}
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	nodes := sol.Nodes()
	p.mu.Lock()
	p.nodes = make(map[string]NodeOrientation, len(nodes))
	for _, n := range nodes {
		p.nodes[n.NodeID] = n
	}
	p.mu.Unlock()

	for _, n := range nodes {
		if err := p.publishJSON(fmt.Sprintf("%s/%s", p.publishPrefix, n.NodeID), n); err != nil {
			log.Printf("Error publishing orientation for %s: %v", n.NodeID, err)
			return err
		}
	}

	message := map[string]interface{}{
		"root":      sol.Root,
		"nodes":     nodes,
		"edges":     len(sol.TreeEdges),
		"maxLocGap": sol.MaxLocGap,
		"timestamp": time.Now().Unix(),
	}
	if err := p.publishJSON(fmt.Sprintf("%s/block", p.publishPrefix), message); err != nil {
		log.Printf("Error publishing combined block: %v", err)
		return err
	}

	log.Printf("Published block of %d nodes (root %s)", len(nodes), sol.Root)
	return nil
}

// PublishPoint publishes a point estimate to {prefix}/points/{id}
func (p *Publisher) PublishPoint(est PointEstimate) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	return p.publishJSON(fmt.Sprintf("%s/points/%s", p.publishPrefix, est.ID), est)
}

func (p *Publisher) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// GetOrientation returns the last published orientation for a node
func (p *Publisher) GetOrientation(nodeID string) (NodeOrientation, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[nodeID]
	return n, ok
}

// GetAllOrientations returns the last published block, sorted by node
func (p *Publisher) GetAllOrientations() []NodeOrientation {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]NodeOrientation, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
