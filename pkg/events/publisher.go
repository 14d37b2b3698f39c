package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// PublisherManager distributes transcript events to a set of watermill
// publishers. Publishers are subscribed per topic; Publish serializes the
// payload to JSON and delivers it to every publisher on its topic.
//
// Outgoing messages carry a monotonically increasing sequence number in
// their metadata, in the order Publish handles them.
type PublisherManager struct {
	publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mu             sync.Mutex
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		publishers: make(map[string][]message.Publisher),
	}
}

func (pm *PublisherManager) Subscribe(topic string, publisher message.Publisher) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.publishers[topic] = append(pm.publishers[topic], publisher)
}

// Publish distributes a payload to all publishers across all topics.
func (pm *PublisherManager) Publish(payload interface{}) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("sequence_number", fmt.Sprintf("%d", pm.sequenceNumber))
	pm.sequenceNumber++

	for topic, publishers := range pm.publishers {
		for _, publisher := range publishers {
			if err := publisher.Publish(topic, msg); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("failed to publish transcript event")
			}
		}
	}

	return nil
}

// PublishBlind publishes and logs instead of returning on failure, for call
// sites that must not propagate publish errors.
func (pm *PublisherManager) PublishBlind(payload interface{}) {
	if err := pm.Publish(payload); err != nil {
		log.Warn().Err(err).Msg("failed to publish transcript event")
	}
}

// NewGoChannel returns an in-process pubsub suitable for wiring UI
// subscribers to a PublisherManager.
func NewGoChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NopLogger{})
}
