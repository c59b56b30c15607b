/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

// DeviceLink is the outbound half of the scale bridge. The bridge
// handles BLE discovery and pairing; barkeep only sees an mqtt topic
// pair carrying raw text payloads.
type DeviceLink interface {
	Publish(ctx context.Context, payload []byte) error
	Close(ctx context.Context) error
}

type mqttLink struct {
	conn       *autopaho.ConnectionManager
	writeTopic string
}

// dialDeviceLink connects to the scale bridge's broker and subscribes
// to the inbound weight topic, delivering each raw payload into
// readings. Payloads arriving while the buffer is full are dropped and
// logged.
func dialDeviceLink(ctx context.Context, cfg *Config, readings chan<- []byte) (*mqttLink, error) {
	u, err := url.Parse(cfg.deviceBroker)
	if err != nil {
		return nil, err
	}

	link := &mqttLink{
		writeTopic: cfg.deviceWrite,
	}

	cliCfg := autopaho.ClientConfig{
		BrokerUrls:     []*url.URL{u},
		KeepAlive:      20,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) { logf(cfg, "DEVICE: mqtt connection up") },
		OnConnectError: func(err error) { log.Printf("DEVICE: error whilst attempting connection: %v", err) },
		ClientConfig: paho.ClientConfig{
			ClientID: "barkeep-" + uuid.NewString(),
			Router: paho.NewSingleHandlerRouter(func(m *paho.Publish) {
				select {
				case readings <- m.Payload:
				default:
					log.Printf("DEVICE: dropped reading %q, hub not keeping up", m.Payload)
				}
			}),
			OnClientError: func(err error) { log.Printf("DEVICE: client error: %v", err) },
			OnServerDisconnect: func(d *paho.Disconnect) {
				log.Printf("DEVICE: server requested disconnect; reason code: %d", d.ReasonCode)
			},
		},
	}

	conn, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return nil, err
	}

	if err := conn.AwaitConnection(ctx); err != nil {
		return nil, err
	}

	if _, err := conn.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: cfg.deviceRead, QoS: 1}},
	}); err != nil {
		return nil, err
	}

	link.conn = conn

	return link, nil
}

func (l *mqttLink) Publish(ctx context.Context, payload []byte) error {
	_, err := l.conn.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   l.writeTopic,
		Payload: payload,
	})
	return err
}

func (l *mqttLink) Close(ctx context.Context) error {
	return l.conn.Disconnect(ctx)
}

// devicePayload serializes one participant in the scale's wire format.
func devicePayload(p Participant) []byte {
	return []byte(fmt.Sprintf("a=%g\nb=%g", p.Consumed, p.Capacity))
}

// deviceFeedbackLoop writes each participant's consumption and capacity
// to the scale on a fixed interval. It only reads the roster. Write
// failures are logged and retried by virtue of the next tick.
func deviceFeedbackLoop(ctx context.Context, cfg *Config, roster *Roster, link DeviceLink) {
	ticker := time.NewTicker(cfg.deviceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, p := range roster.Snapshot() {
				payload := devicePayload(p)

				if err := link.Publish(ctx, payload); err != nil {
					log.Printf("DEVICE: write failed for %q: %v", p.Name, err)
					continue
				}

				logf(cfg, "DEVICE: wrote %q for %q", payload, p.Name)
			}

		case <-ctx.Done():
			return
		}
	}
}
