// Package pubsub connects the outbox publisher and the worker to the domain
// event topic and its worker subscription.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/gcp"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

const checkTimeout = 10 * time.Second

var errNotInitialized = errors.New("pubsub client not initialized")

type Client struct {
	ps           *pubsub.Client
	project      string
	topic        string
	subscription string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient dials Pub/Sub and fails fast when the domain topic or the
// worker subscription is missing.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project, err := gcp.ProjectID(gcpCfg)
	if err != nil {
		return nil, err
	}
	c := &Client{
		project:      project,
		topic:        strings.TrimSpace(cfg.DomainTopic),
		subscription: strings.TrimSpace(cfg.DomainSubscription),
	}
	if c.topic == "" || c.subscription == "" {
		return nil, errors.New("pubsub domain topic and subscription are required")
	}
	c.ps, err = pubsub.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":        c.topic,
			"subscription": c.subscription,
		}), "pubsub client ready")
	}
	return c, nil
}

// Ping confirms the domain topic and subscription are both reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topicName(c.topic)})
	if err := describe("topic", c.topic, err); err != nil {
		return err
	}
	_, err = c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
		Subscription: c.subscriptionName(c.subscription),
	})
	return describe("subscription", c.subscription, err)
}

func describe(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case gcp.IsNotFound(err):
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Publisher returns the cached publisher for a topic id or full resource
// name, creating it on first use.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	name := c.topicName(topic)
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[name]; ok {
		return p
	}
	if c.publishers == nil {
		c.publishers = make(map[string]*pubsub.Publisher)
	}
	p := c.ps.Publisher(name)
	c.publishers[name] = p
	return p
}

func (c *Client) DomainSubscription() *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Subscriber(c.subscriptionName(c.subscription))
}

// Close flushes every cached publisher before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.ps.Close()
}

func (c *Client) topicName(name string) string {
	return gcp.ResourceName(c.project, "topics", name)
}

func (c *Client) subscriptionName(name string) string {
	return gcp.ResourceName(c.project, "subscriptions", name)
}
