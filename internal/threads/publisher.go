package threads

import (
	"context"
	"fmt"
	"time"

	"github.com/blacktop/threadpost/internal/logutil"
	"github.com/google/uuid"
)

// Container kinds reported to the Observer.
const (
	KindItem  = "item"
	KindOuter = "outer"
)

// Publisher turns a PostRequest into a published post: validate, create
// containers, wait for readiness, publish, and optionally resolve the
// permalink. Compose is not idempotent; every call creates new containers.
//
// Containers left behind by a failed Compose are not cleaned up; the service
// expires them on its own.
type Publisher struct {
	svc       ContainerService
	validator *Validator
	pollCfg   PollConfig
	sleep     Sleeper
	observer  Observer
	poller    *Poller
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithValidator replaces the default validator.
func WithValidator(v *Validator) Option {
	return func(p *Publisher) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithPollConfig sets the readiness polling policy.
func WithPollConfig(cfg PollConfig) Option {
	return func(p *Publisher) { p.pollCfg = cfg }
}

// WithSleeper replaces the function used to wait between status reads.
func WithSleeper(s Sleeper) Option {
	return func(p *Publisher) {
		if s != nil {
			p.sleep = s
		}
	}
}

// WithObserver registers an observer for pipeline events.
func WithObserver(o Observer) Option {
	return func(p *Publisher) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewPublisher returns a Publisher backed by svc.
func NewPublisher(svc ContainerService, opts ...Option) *Publisher {
	p := &Publisher{
		svc:       svc,
		validator: NewValidator(),
		pollCfg:   DefaultPollConfig(),
		sleep:     sleepContext,
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.poller = NewPoller(svc, p.pollCfg)
	p.poller.sleep = p.sleep
	p.poller.observer = p.observer
	return p
}

// Plan validates req and returns the creation plan without calling the service.
func (p *Publisher) Plan(ctx context.Context, req PostRequest) (CreationPlan, error) {
	if err := p.validator.Validate(ctx, req); err != nil {
		return CreationPlan{}, err
	}
	return BuildPlan(req)
}

// ComposePost publishes a typed post on behalf of creds.
func (p *Publisher) ComposePost(ctx context.Context, creds Credentials, post Post) (PublishResult, error) {
	return p.Compose(ctx, Request(creds, post))
}

// Compose publishes req. Any failure aborts the whole sequence; there is no
// partial result. If ctx is canceled after the publish call succeeded the
// post exists even though an error is returned.
func (p *Publisher) Compose(ctx context.Context, req PostRequest) (result PublishResult, err error) {
	start := time.Now()
	composeID := uuid.NewString()[:8]
	creds := req.Credentials()

	defer func() {
		elapsed := time.Since(start)
		p.observer.ComposeFinished(req.MediaType, Code(err), elapsed)
		if err != nil {
			logutil.Debugf("compose failed: compose_id=%s media_type=%s code=%s elapsed=%s err=%v", composeID, req.MediaType, Code(err), elapsed, err)
			return
		}
		logutil.Infof("published: compose_id=%s media_type=%s id=%s elapsed=%s", composeID, req.MediaType, result.ID, elapsed)
	}()

	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}

	logutil.Debugf("compose: compose_id=%s media_type=%s %s", composeID, req.MediaType, creds)
	plan, err := p.Plan(ctx, req)
	if err != nil {
		return PublishResult{}, err
	}

	containerID, err := p.createContainers(ctx, composeID, plan)
	if err != nil {
		return PublishResult{}, err
	}

	if _, err := p.poller.AwaitReady(ctx, creds, containerID); err != nil {
		return PublishResult{}, err
	}

	logutil.Debugf("publishing: compose_id=%s container_id=%s", composeID, containerID)
	publishedID, err := p.svc.Publish(ctx, creds, containerID)
	if err != nil {
		return PublishResult{}, PublishError{ContainerID: containerID, Err: err}
	}
	if publishedID == "" {
		return PublishResult{}, PublishError{ContainerID: containerID, Err: errEmptyID("publish")}
	}

	result = PublishResult{ID: publishedID}
	if !req.GetPermalink {
		return result, nil
	}

	item, err := p.svc.PublishedItem(ctx, creds, publishedID)
	if err != nil {
		return PublishResult{}, fmt.Errorf("resolve permalink for published post %s: %w", publishedID, err)
	}
	result.Permalink = item.Permalink
	return result, nil
}

// createContainers executes the plan and returns the id of the container to
// publish.
func (p *Publisher) createContainers(ctx context.Context, composeID string, plan CreationPlan) (string, error) {
	itemID := ""
	if plan.Wrapped() {
		id, err := p.svc.CreateContainer(ctx, plan.Credentials, plan.Item)
		if err != nil {
			return "", fmt.Errorf("create %s item container: %w", plan.MediaType, err)
		}
		if id == "" {
			return "", fmt.Errorf("create %s item container: %w", plan.MediaType, errEmptyID("create container"))
		}
		p.observer.ContainerCreated(KindItem)
		logutil.Debugf("item container created: compose_id=%s container_id=%s", composeID, id)
		itemID = id
	}

	id, err := p.svc.CreateContainer(ctx, plan.Credentials, plan.OuterFor(itemID))
	if err != nil {
		return "", fmt.Errorf("create %s container: %w", plan.MediaType, err)
	}
	if id == "" {
		return "", fmt.Errorf("create %s container: %w", plan.MediaType, errEmptyID("create container"))
	}
	p.observer.ContainerCreated(KindOuter)
	logutil.Debugf("container created: compose_id=%s container_id=%s", composeID, id)
	return id, nil
}

func errEmptyID(op string) error {
	return TransportError{Op: op, Message: "response did not include an id"}
}
