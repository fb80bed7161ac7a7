package mqtt

import (
	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/FlowPlatform/flow-connector/internal/platform/logger"
	"github.com/sirupsen/logrus"
)

// CreateBrokerConnection builds the paho client options from the
// functional options and connects.  Reconnection after the initial
// connection succeeds is paho's business (AutoReconnect); a failed
// initial connection is returned to the caller, which fails fast -
// retry/backoff for channel connections is not this service's job.
func CreateBrokerConnection(brokerUrl string, opts ...MqttClientOptionsFunc) (MQTT.Client, error) {

	connOpts, err := NewBrokerOptions(brokerUrl, opts...)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to build MQTT client options")
		return nil, err
	}

	mqttClient := MQTT.NewClient(connOpts)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		logger.Log.WithFields(logrus.Fields{"error": token.Error()}).Error("Unable to connect to MQTT broker")
		return nil, token.Error()
	}

	logger.Log.Info("Connected to MQTT broker: ", brokerUrl)

	return mqttClient, nil
}

type Subscriber struct {
	Topic      string
	EntryPoint MQTT.MessageHandler
	Qos        byte
}

// RegisterSubscribers connects to the broker and installs the topic
// subscriptions.  The subscriptions are (re)established from the
// OnConnect handler so that they survive a paho auto reconnect.
func RegisterSubscribers(brokerUrl string, subscribers []Subscriber, defaultMessageHandler MQTT.MessageHandler, opts ...MqttClientOptionsFunc) (MQTT.Client, error) {

	connOpts, err := NewBrokerOptions(brokerUrl, opts...)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to build MQTT client options")
		return nil, err
	}

	connOpts.SetDefaultPublishHandler(defaultMessageHandler)

	connOpts.SetOnConnectHandler(func(client MQTT.Client) {
		for _, subscriber := range subscribers {
			logger.Log.Infof("Subscribing to MQTT topic: %s - QOS: %d\n", subscriber.Topic, subscriber.Qos)
			if token := client.Subscribe(subscriber.Topic, subscriber.Qos, subscriber.EntryPoint); token.Wait() && token.Error() != nil {
				logger.Log.WithFields(logrus.Fields{"error": token.Error()}).Errorf("Subscribing to MQTT topic (%s) failed", subscriber.Topic)
			}
		}
	})

	mqttClient := MQTT.NewClient(connOpts)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		logger.Log.WithFields(logrus.Fields{"error": token.Error()}).Error("Unable to connect to MQTT broker")
		return nil, token.Error()
	}

	logger.Log.Info("Connected to MQTT broker: ", brokerUrl)

	return mqttClient, nil
}

func NewBrokerOptions(brokerUrl string, opts ...MqttClientOptionsFunc) (*MQTT.ClientOptions, error) {
	connOpts := MQTT.NewClientOptions()

	connOpts.AddBroker(brokerUrl)
	connOpts.SetAutoReconnect(true)

	for _, opt := range opts {
		if err := opt(connOpts); err != nil {
			return nil, err
		}
	}

	return connOpts, nil
}
