package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"os"
	"sync"

	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

var (
	ErrChannelNotFound  = errors.New("inbound channel not found")
	ErrDuplicateChannel = errors.New("duplicate inbound channel key")
)

type ChannelRegistrar interface {
	Register(ctx context.Context, ch domain.InboundChannel) error
}

type ChannelLocator interface {
	GetChannel(ctx context.Context, key string) (domain.InboundChannel, error)
	GetChannels(ctx context.Context, offset int, limit int) ([]domain.InboundChannel, int, error)
}

// LocalChannelRegistry holds the channel descriptors for this process.
// Channels are registered at startup (from the channel config file) and
// through the management api.
type LocalChannelRegistry struct {
	channels map[string]domain.InboundChannel
	ordered  []string
	sync.RWMutex
}

func NewLocalChannelRegistry() *LocalChannelRegistry {
	return &LocalChannelRegistry{
		channels: make(map[string]domain.InboundChannel),
	}
}

func (r *LocalChannelRegistry) Register(ctx context.Context, ch domain.InboundChannel) error {
	r.Lock()
	defer r.Unlock()

	if _, exists := r.channels[ch.Key]; exists {
		logger.Log.WithFields(logrus.Fields{"channel": ch.Key}).Warn("Attempting to register duplicate channel")
		return ErrDuplicateChannel
	}

	r.channels[ch.Key] = ch
	r.ordered = append(r.ordered, ch.Key)

	logger.Log.Printf("Registered an inbound channel (%s)", ch.Key)
	return nil
}

func (r *LocalChannelRegistry) GetChannel(ctx context.Context, key string) (domain.InboundChannel, error) {
	r.RLock()
	defer r.RUnlock()

	ch, exists := r.channels[key]
	if !exists {
		return domain.InboundChannel{}, ErrChannelNotFound
	}

	return ch, nil
}

func (r *LocalChannelRegistry) GetChannels(ctx context.Context, offset int, limit int) ([]domain.InboundChannel, int, error) {
	r.RLock()
	defer r.RUnlock()

	total := len(r.ordered)

	if offset >= total {
		return []domain.InboundChannel{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	channels := make([]domain.InboundChannel, 0, end-offset)
	for _, key := range r.ordered[offset:end] {
		channels = append(channels, r.channels[key])
	}

	return channels, total, nil
}

// LoadChannelsFromFile registers the channel descriptors declared in a
// JSON config file.
func LoadChannelsFromFile(ctx context.Context, registrar ChannelRegistrar, configFile string) error {

	logger.Log.Debug("Loading channel config file: ", configFile)

	file, err := os.Open(configFile)
	if err != nil {
		logger.Log.Error("Could not load channel config file: ", err)
		return err
	}
	defer file.Close()

	jsonBytes, err := ioutil.ReadAll(file)
	if err != nil {
		logger.Log.Error("Could not load channel config file: ", err)
		return err
	}

	var channels []domain.InboundChannel
	err = json.Unmarshal(jsonBytes, &channels)
	if err != nil {
		logger.Log.Error("Could not parse channel config file: ", err)
		return err
	}

	for _, ch := range channels {
		if err := registrar.Register(ctx, ch); err != nil {
			return err
		}
	}

	return nil
}
