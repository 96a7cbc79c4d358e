package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/evpolicy/core/factory"
	coremetrics "github.com/kilianp07/evpolicy/core/metrics"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
	"github.com/kilianp07/evpolicy/infra/logger"
)

// Publisher is a period sink publishing each record as JSON.
//
// Topics:
//
//	<prefix>/runs/<run id>/period   one message per closed period
//	<prefix>/sweep/<policy>         averaged final period of a sweep cell
type Publisher struct {
	cli    pahoClient
	cfg    Config
	logger logger.Logger
}

// PeriodMessage is the payload of a period message.
type PeriodMessage struct {
	RunID  string             `json:"run_id"`
	Policy model.PolicyConfig `json:"policy"`
	Seed   uint64             `json:"seed"`
	Record report.Record      `json:"record"`
}

// NewPublisher connects to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &Publisher{cli: c, cfg: cfg, logger: log}, nil
}

// PeriodTopic returns the topic used for the periods of a run.
func (p *Publisher) PeriodTopic(runID string) string {
	return fmt.Sprintf("%s/runs/%s/period", p.cfg.TopicPrefix, runID)
}

// RecordPeriod publishes rec.
func (p *Publisher) RecordPeriod(ctx context.Context, run coremetrics.RunInfo, rec report.Record) error {
	payload, err := json.Marshal(PeriodMessage{RunID: run.ID, Policy: run.Policy, Seed: run.Seed, Record: rec})
	if err != nil {
		return err
	}
	return p.publish(ctx, p.PeriodTopic(run.ID), payload)
}

// RecordSummary publishes the averaged final period of a sweep cell.
func (p *Publisher) RecordSummary(ctx context.Context, policy model.PolicyConfig, rec report.Record) error {
	payload, err := json.Marshal(struct {
		Policy model.PolicyConfig `json:"policy"`
		Record report.Record      `json:"record"`
	}{policy, rec})
	if err != nil {
		return err
	}
	return p.publish(ctx, fmt.Sprintf("%s/sweep/%s", p.cfg.TopicPrefix, policy), payload)
}

// publish retries with exponential backoff until the broker accepts the
// message, the retries are exhausted or ctx ends.
func (p *Publisher) publish(ctx context.Context, topic string, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.backoff() * time.Duration(1<<attempt)):
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
	return nil
}

func init() {
	_ = coremetrics.RegisterPeriodSink("mqtt", func(conf map[string]any) (coremetrics.PeriodSink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewPublisher(c)
	})
}
