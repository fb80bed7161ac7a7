package mqtt

import (
	"errors"
	"strings"
)

const (
	defaultTopicPrefix         string = "flow"
	eventMessageIncomingTopic  string = "channels/+/events"
	eventMessageTopicSegment   string = "channels"
	eventMessageTopicLeafLabel string = "events"
)

type TopicVerifier struct {
	prefix string
}

func NewTopicVerifier(prefix string) *TopicVerifier {

	topicVerifier := &TopicVerifier{prefix: defaultTopicPrefix}
	if prefix != "" {
		topicVerifier.prefix = prefix
	}

	return topicVerifier
}

// VerifyIncomingTopic parses an event topic and returns the channel key
// it carries.
func (tv *TopicVerifier) VerifyIncomingTopic(topic string) (string, error) {

	items := strings.Split(topic, "/")
	if len(items) != 4 {
		return "", errors.New("MQTT topic requires 4 sections: " + tv.prefix + ", channels, <channelKey>, events : " + topic)
	}

	if items[0] != tv.prefix || items[1] != eventMessageTopicSegment || items[3] != eventMessageTopicLeafLabel {
		return "", errors.New("MQTT topic needs to be " + tv.prefix + "/channels/<channelKey>/events")
	}

	if items[2] == "" {
		return "", errors.New("MQTT topic is missing the channel key")
	}

	return items[2], nil
}

type TopicBuilder struct {
	prefix string
}

func NewTopicBuilder(prefix string) *TopicBuilder {

	topicBuilder := &TopicBuilder{prefix: defaultTopicPrefix}
	if prefix != "" {
		topicBuilder.prefix = prefix
	}

	return topicBuilder
}

func (tb *TopicBuilder) BuildEventTopic(channelKey string) string {
	return tb.prefix + "/" + eventMessageTopicSegment + "/" + channelKey + "/" + eventMessageTopicLeafLabel
}

func (tb *TopicBuilder) BuildIncomingWildcardEventTopic() string {
	return tb.prefix + "/" + eventMessageIncomingTopic
}
