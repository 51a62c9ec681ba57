// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package eventprocessor

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/logging"
)

// Bus backend names.
const (
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// Bus is a publisher and subscriber pair on one backend.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	backend    string
	instanceID string
	server     *EmbeddedServer
	closers    []func() error
}

// NewBus builds the configured backend. An empty instance id in cfg gets a
// random one.
func NewBus(cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = logging.NewWatermillLogger()
	}
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	url := cfg.NATSURL
	var srv *EmbeddedServer
	if cfg.Embedded {
		var err error
		srv, err = NewEmbeddedServer(cfg.Host, cfg.Port)
		if err != nil {
			return nil, err
		}
		url = srv.ClientURL()
	}

	if url == "" {
		bus := NewGoChannelBus(logger)
		bus.instanceID = instanceID
		return bus, nil
	}

	bus, err := newNATSBus(url, logger)
	if err != nil {
		if srv != nil {
			srv.Shutdown()
		}
		return nil, err
	}
	bus.instanceID = instanceID
	bus.server = srv
	return bus, nil
}

// NewGoChannelBus returns an in-process bus.
func NewGoChannelBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = logging.NewWatermillLogger()
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: false,
	}, logger)

	return &Bus{
		Publisher:  pubSub,
		Subscriber: pubSub,
		backend:    BackendGoChannel,
		instanceID: uuid.NewString(),
		closers:    []func() error{pubSub.Close},
	}
}

func newNATSBus(url string, logger watermill.LoggerAdapter) (*Bus, error) {
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOptions("publisher", logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	// No queue group: every instance receives every event.
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOptions("subscriber", logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Bus{
		Publisher:  pub,
		Subscriber: sub,
		backend:    BackendNATS,
		closers:    []func() error{pub.Close, sub.Close},
	}, nil
}

// natsOptions configures reconnection and logs connection state changes.
func natsOptions(role string, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("fleetwatch-" + role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"role": role, "url": nc.ConnectedUrl()})
		}),
	}
}

// Backend names the backend in use.
func (b *Bus) Backend() string { return b.backend }

// EmbeddedServer returns the in-process NATS server, or nil when the bus
// connects to an external broker or runs on go channels.
func (b *Bus) EmbeddedServer() *EmbeddedServer { return b.server }

// InstanceID identifies this process on the bus.
func (b *Bus) InstanceID() string { return b.instanceID }

// Close closes the publisher, the subscriber and the embedded server.
func (b *Bus) Close() error {
	var errs []error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.server != nil {
		b.server.Shutdown()
	}
	return errors.Join(errs...)
}
