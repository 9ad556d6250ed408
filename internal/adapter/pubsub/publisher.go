package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// NewPublisher opens an AMQP publisher bound to a durable topic
// exchange. Routing keys pass through verbatim: the export feed
// publishes to panel.events.{guild}.{kind} and consumers bind whatever
// subset they care about.
func NewPublisher(url, exchange string, wmLogger watermill.LoggerAdapter) (message.Publisher, error) {
	cfg := amqp.NewDurablePubSubConfig(url, nil)
	cfg.Exchange = topicExchange(exchange)
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	return amqp.NewPublisher(cfg, wmLogger)
}

// NewSubscriber opens an AMQP subscriber on a named durable queue bound
// to the exchange. The watermill topic doubles as the binding routing
// key, so one subscriber can feed several router handlers.
func NewSubscriber(url, exchange, queue string, wmLogger watermill.LoggerAdapter) (message.Subscriber, error) {
	cfg := amqp.NewDurablePubSubConfig(url, amqp.GenerateQueueNameConstant(queue))
	cfg.Exchange = topicExchange(exchange)
	cfg.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
	return amqp.NewSubscriber(cfg, wmLogger)
}

func topicExchange(name string) amqp.ExchangeConfig {
	return amqp.ExchangeConfig{
		GenerateName: func(string) string { return name },
		Type:         "topic",
		Durable:      true,
	}
}
