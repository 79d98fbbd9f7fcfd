package kafka_client

type KafkaConfig struct {
	Broker       string
	GroupID      string
	RequestTopic string
	ResultTopic  string
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if c.RequestTopic == "" {
		c.RequestTopic = KAFKA_TOPIC_EMOTION_REQUESTS
	}
	if c.ResultTopic == "" {
		c.ResultTopic = KAFKA_TOPIC_EMOTION_RESULTS
	}
	return c
}
