package survey

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// handlerRecorder is a MeasurementHandler backed by testify's mock
type handlerRecorder struct {
	mock.Mock
	mu sync.Mutex
}

func (h *handlerRecorder) handle(topic string, ms []Measurement, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Called(topic, len(ms), err != nil)
}

func testMQTTConfig() *Config {
	cfg := DefaultConfig()
	cfg.Block.MeasurementTopic = "survey/measurements"
	return cfg
}

func TestInitMQTT_Disabled(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	client, err := InitMQTT(&Config{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitMQTT_RequiresTopic(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://127.0.0.1:1")

	client, err := InitMQTT(&Config{}, nil)
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("BLOCKORI_TEST_VALUE", "")
	assert.Equal(t, "fallback", envOr("BLOCKORI_TEST_VALUE", "", "fallback"))
	assert.Equal(t, "configured", envOr("BLOCKORI_TEST_VALUE", "configured", "fallback"))

	t.Setenv("BLOCKORI_TEST_VALUE", "env")
	assert.Equal(t, "env", envOr("BLOCKORI_TEST_VALUE", "configured", "fallback"))
}

func TestMQTTClient_IsConnected(t *testing.T) {
	c := newMQTTClientWithMock(NewMockClient(), testMQTTConfig(), nil)
	assert.False(t, c.IsConnected())

	c.setConnected(true)
	assert.True(t, c.IsConnected())

	c.onConnectionLost(nil, errors.New("broken pipe"))
	assert.False(t, c.IsConnected())
}

func TestMQTTClient_SubscribesAndDecodes(t *testing.T) {
	cfg := testMQTTConfig()
	rec := &handlerRecorder{}
	rec.On("handle", "survey/measurements", 2, false).Once()
	rec.On("handle", "survey/measurements", 0, true).Once()

	mc := NewMockClient()
	c := newMQTTClientWithMock(mc, cfg, rec.handle)
	mc.SetOnConnect(c.onConnect)
	require.NoError(t, mc.Connect().Error())
	assert.True(t, c.IsConnected())

	delivered := mc.SimulateMessage("survey/measurements", []byte(
		`[{"from":"a","into":"b","location":[1,0,0],"physAngle":[0,0,0]},
		  {"from":"b","into":"c","location":[0,1,0],"physAngle":[0,0,0.2]}]`))
	require.True(t, delivered)
	assert.Equal(t, 2, c.Received())

	require.True(t, mc.SimulateMessage("survey/measurements", []byte(`{"from":"a"}`)))
	assert.Equal(t, 2, c.Received())

	assert.False(t, mc.SimulateMessage("other/topic", []byte(`[]`)))
	rec.AssertExpectations(t)
}

func TestMQTTClient_SubscribeError(t *testing.T) {
	mc := NewMockClient()
	mc.SetSubscribeError(errors.New("not authorized"))
	c := newMQTTClientWithMock(mc, testMQTTConfig(), nil)
	mc.SetOnConnect(c.onConnect)
	require.NoError(t, mc.Connect().Error())

	assert.False(t, mc.SimulateMessage("survey/measurements", []byte(`[]`)))
}

func TestMQTTClient_Disconnect(t *testing.T) {
	mc := NewMockClient()
	mc.SetConnected(true)
	c := newMQTTClientWithMock(mc, testMQTTConfig(), nil)
	c.setConnected(true)

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.False(t, mc.IsConnected())
	assert.Same(t, mc, c.GetClient())
}
