package survey

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MeasurementHandler receives decoded measurements from the broker. On a
// decode failure it is called with the topic, a nil slice and the error.
type MeasurementHandler func(topic string, ms []Measurement, err error)

// MQTTClient manages the broker connection and the measurement subscription
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	handler     MeasurementHandler
	isConnected bool
	received    int
	mu          sync.RWMutex
}

// InitMQTT builds a client from config with env overrides and starts
// connecting in the background. With no broker configured it returns nil.
func InitMQTT(config *Config, handler MeasurementHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config == nil || config.Block.MeasurementTopic == "" {
		return nil, fmt.Errorf("MQTT enabled but no measurement topic configured")
	}

	c := &MQTTClient{config: config, handler: handler}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(envOr("MQTT_CLIENT_ID", config.MQTT.ClientID, "blockori"))

	if username := envOr("MQTT_USERNAME", config.MQTT.Username, ""); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", config.MQTT.Password, ""))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	// measurements are last-write-wins per edge, so arrival order matters
	opts.SetOrderMatters(true)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Println("MQTT reconnecting...")
	})

	c.client = mqtt.NewClient(opts)
	go c.connectWithRetry()

	return c, nil
}

// envOr returns the env var, then the configured value, then the fallback
func envOr(key, configured, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if configured != "" {
		return configured
	}
	return fallback
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay = min(retryDelay*2, maxRetryDelay)
	}
}

// onConnect subscribes to the measurement topic
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	topic := c.config.Block.MeasurementTopic
	log.Printf("MQTT connected, subscribing to %s", topic)
	token := client.Subscribe(topic, 1, c.createMessageHandler())
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("Error subscribing to %s: %v", topic, token.Error())
		return
	}
	log.Printf("Successfully subscribed to %s", topic)
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// createMessageHandler decodes a measurement payload (object or array)
func (c *MQTTClient) createMessageHandler() mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("[DEBUG] received %d bytes on %s", len(payload), msg.Topic())

		ms, err := DecodeMeasurements(payload)
		if err != nil {
			log.Printf("Error decoding measurement on %s: %v", msg.Topic(), err)
			if c.handler != nil {
				c.handler(msg.Topic(), nil, err)
			}
			return
		}

		c.mu.Lock()
		c.received += len(ms)
		c.mu.Unlock()

		if c.handler != nil {
			c.handler(msg.Topic(), ms, nil)
		}
	}
}

// Received counts measurements decoded since start
func (c *MQTTClient) Received() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.received
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock wraps an existing mqtt.Client, for tests
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler MeasurementHandler) *MQTTClient {
	return &MQTTClient{client: client, config: config, handler: handler}
}

// DecodeMeasurements accepts a single measurement object or an array of them
func DecodeMeasurements(payload []byte) ([]Measurement, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("parsing measurement JSON: %w", err)
	}

	var ms []Measurement
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &ms); err != nil {
			return nil, fmt.Errorf("parsing measurement array: %w", err)
		}
	} else {
		var m Measurement
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parsing measurement: %w", err)
		}
		ms = []Measurement{m}
	}

	for i, m := range ms {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("measurement %d: %w", i, err)
		}
	}
	return ms, nil
}
