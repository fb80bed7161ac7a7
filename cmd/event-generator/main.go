package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	kafka "github.com/segmentio/kafka-go"
)

// Test client that publishes events onto a channel over MQTT or kafka.

func main() {

	transport := flag.String("transport", "mqtt", "transport to publish over (mqtt / kafka)")
	broker := flag.String("broker", "tcp://eclipse-mosquitto:1883", "hostname / port of the mqtt broker")
	kafkaBrokers := flag.String("kafka-brokers", "localhost:9092", "comma separated list of kafka brokers")
	kafkaTopic := flag.String("kafka-topic", "platform.flow-connector.events", "kafka topic to publish events to")
	topicPrefix := flag.String("topic-prefix", "flow", "mqtt topic prefix")
	channelKey := flag.String("channel", "orders-http", "channel key to publish events on")
	payloadFile := flag.String("payload-file", "", "file containing the event payload")
	payload := flag.String("payload", "{\"orderId\": \"order-1\", \"amount\": 100}", "event payload")
	count := flag.Int("count", 1, "number of events to publish")
	flag.Parse()

	eventPayload := []byte(*payload)
	if *payloadFile != "" {
		fileContents, err := ioutil.ReadFile(*payloadFile)
		if err != nil {
			log.Fatal("Unable to read payload file: ", err)
		}
		eventPayload = fileContents
	}

	switch *transport {
	case "mqtt":
		publishOverMqtt(*broker, *topicPrefix, *channelKey, eventPayload, *count)
	case "kafka":
		publishOverKafka(strings.Split(*kafkaBrokers, ","), *kafkaTopic, *channelKey, eventPayload, *count)
	default:
		log.Fatal("Invalid transport: ", *transport)
	}
}

func publishOverMqtt(broker string, topicPrefix string, channelKey string, payload []byte, count int) {

	connOpts := MQTT.NewClientOptions()
	connOpts.AddBroker(broker)
	connOpts.SetClientID(fmt.Sprintf("event-generator-%d", os.Getpid()))

	client := MQTT.NewClient(connOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal("Unable to connect to mqtt broker: ", token.Error())
	}

	topic := fmt.Sprintf("%s/channels/%s/events", topicPrefix, channelKey)
	fmt.Println("Publishing events to topic: ", topic)

	for i := 0; i < count; i++ {
		if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
			log.Fatal("Unable to publish event: ", token.Error())
		}
	}

	client.Disconnect(250)
}

func publishOverKafka(brokers []string, topic string, channelKey string, payload []byte, count int) {

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	defer writer.Close()

	fmt.Println("Publishing events to kafka topic: ", topic)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messages := make([]kafka.Message, 0, count)
	for i := 0; i < count; i++ {
		messages = append(messages, kafka.Message{
			Key:   []byte(channelKey),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "channel", Value: []byte(channelKey)},
			},
		})
	}

	if err := writer.WriteMessages(ctx, messages...); err != nil {
		log.Fatal("Unable to publish events: ", err)
	}
}
