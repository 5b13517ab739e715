// Package memory provides an in-memory threads.ContainerService for tests and
// dry runs. Identifiers are deterministic: container_1, container_2, post_3...
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blacktop/threadpost/internal/threads"
)

// Op names a service operation.
type Op string

const (
	OpCreate          Op = "create container"
	OpStatus          Op = "container status"
	OpPublish         Op = "publish"
	OpPublishedItem   Op = "published item"
	OpPublishingLimit Op = "publishing limit"
)

// Call records one invocation of the service.
type Call struct {
	Op     Op
	UserID string
	ID     string
	Params threads.Params
}

type container struct {
	threads.Container
	userID    string
	params    threads.Params
	item      bool
	reads     int
	script    []threads.ContainerStatus
	errMsg    string
	published bool
}

// current is the status most recently reported, or the first scripted status
// before any read.
func (c *container) current() threads.ContainerStatus {
	if len(c.script) == 0 {
		return threads.StatusFinished
	}
	i := c.reads - 1
	if i < 0 {
		i = 0
	}
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	return c.script[i]
}

type post struct {
	threads.PublishedItem
	userID      string
	containerID string
}

// Service is a thread-safe in-memory implementation of threads.ContainerService
// and threads.QuotaReader.
type Service struct {
	mu         sync.Mutex
	seq        int
	containers map[string]*container
	posts      map[string]*post
	limits     map[string]threads.QuotaSnapshot
	script     []threads.ContainerStatus
	errMsg     string
	failures   map[Op]error
	errorMode  bool
	calls      []Call
}

var (
	_ threads.ContainerService = (*Service)(nil)
	_ threads.QuotaReader      = (*Service)(nil)
)

// New returns an empty Service. Containers report FINISHED on every read
// unless a status script is set.
func New() *Service {
	return &Service{
		containers: make(map[string]*container),
		posts:      make(map[string]*post),
		limits:     make(map[string]threads.QuotaSnapshot),
		failures:   make(map[Op]error),
	}
}

// SetStatusScript makes every container created afterwards (except carousel
// items) report the given statuses on successive reads. The last status
// repeats once the script is exhausted.
func (s *Service) SetStatusScript(statuses ...threads.ContainerStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append([]threads.ContainerStatus(nil), statuses...)
}

// SetErrorMessage sets the error message reported alongside ERROR or EXPIRED.
func (s *Service) SetErrorMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}

// Fail makes every call to op return err until cleared with Fail(op, nil).
func (s *Service) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// SetErrorMode makes every operation fail with a generic error.
func (s *Service) SetErrorMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorMode = enabled
}

// SetQuota seeds the publishing limit for a user.
func (s *Service) SetQuota(userID string, snap threads.QuotaSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[userID] = snap
}

// Calls returns a copy of the recorded calls in order.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded calls for op.
func (s *Service) CallsTo(op Op) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Container returns the stored state of a container.
func (s *Service) Container(id string) (threads.Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[id]
	if !ok {
		return threads.Container{}, false
	}
	out := c.Container
	out.Status = c.current()
	return out, true
}

// IsCarouselItem reports whether id was created as a carousel item.
func (s *Service) IsCarouselItem(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[id]
	return ok && c.item
}

// CreateContainer stores a new container.
func (s *Service) CreateContainer(ctx context.Context, creds threads.Credentials, params threads.Params) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpCreate, UserID: creds.UserID, Params: params.Clone()})
	if err := s.check(ctx, OpCreate, creds); err != nil {
		return "", err
	}

	mediaType, _ := params.Get("media_type")
	if !threads.MediaType(mediaType).Valid() {
		return "", s.reject(OpCreate, fmt.Sprintf("invalid media_type %q", mediaType))
	}
	item := false
	if v, ok := params.Get("is_carousel_item"); ok && v == "true" {
		item = true
	}
	if threads.MediaType(mediaType) == threads.MediaCarousel {
		children, _ := params.Get("children")
		for _, child := range strings.Split(children, ",") {
			c, ok := s.containers[child]
			if !ok || !c.item {
				return "", s.reject(OpCreate, fmt.Sprintf("children: %q is not a carousel item container", child))
			}
		}
	}

	id := s.nextID("container")
	c := &container{
		Container: threads.Container{ID: id},
		userID:    creds.UserID,
		params:    params.Clone(),
		item:      item,
	}
	if !item {
		c.script = append([]threads.ContainerStatus(nil), s.script...)
		c.errMsg = s.errMsg
	}
	s.containers[id] = c
	return id, nil
}

// ContainerStatus advances the container along its status script.
func (s *Service) ContainerStatus(ctx context.Context, creds threads.Credentials, containerID string) (threads.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpStatus, UserID: creds.UserID, ID: containerID})
	if err := s.check(ctx, OpStatus, creds); err != nil {
		return threads.Container{}, err
	}
	c, ok := s.containers[containerID]
	if !ok {
		return threads.Container{}, s.notFound(OpStatus, containerID)
	}
	c.reads++
	out := c.Container
	out.Status = c.current()
	if out.Status.Terminal() && out.Status != threads.StatusFinished {
		out.ErrorMessage = c.errMsg
	}
	return out, nil
}

// Publish turns a FINISHED container into a post.
func (s *Service) Publish(ctx context.Context, creds threads.Credentials, containerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpPublish, UserID: creds.UserID, ID: containerID})
	if err := s.check(ctx, OpPublish, creds); err != nil {
		return "", err
	}
	c, ok := s.containers[containerID]
	switch {
	case !ok:
		return "", s.notFound(OpPublish, containerID)
	case c.item:
		return "", s.reject(OpPublish, "carousel item containers cannot be published")
	case c.published:
		return "", s.reject(OpPublish, "container already published")
	case c.current() != threads.StatusFinished:
		return "", s.reject(OpPublish, fmt.Sprintf("container is not ready: status %s", c.current()))
	}

	c.published = true
	id := s.nextID("post")
	s.posts[id] = &post{
		PublishedItem: threads.PublishedItem{
			ID:        id,
			Permalink: fmt.Sprintf("https://www.threads.net/@%s/post/%s", creds.UserID, id),
		},
		userID:      creds.UserID,
		containerID: containerID,
	}
	if snap, ok := s.limits[creds.UserID]; ok {
		if _, reply := c.params.Get("reply_to_id"); reply {
			snap.Reply.Usage++
		} else {
			snap.Post.Usage++
		}
		s.limits[creds.UserID] = snap
	}
	return id, nil
}

// PublishedItem returns a stored post.
func (s *Service) PublishedItem(ctx context.Context, creds threads.Credentials, mediaID string) (threads.PublishedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpPublishedItem, UserID: creds.UserID, ID: mediaID})
	if err := s.check(ctx, OpPublishedItem, creds); err != nil {
		return threads.PublishedItem{}, err
	}
	p, ok := s.posts[mediaID]
	if !ok {
		return threads.PublishedItem{}, s.notFound(OpPublishedItem, mediaID)
	}
	return p.PublishedItem, nil
}

// PublishingLimit returns the seeded quota snapshot.
func (s *Service) PublishingLimit(ctx context.Context, creds threads.Credentials) (threads.QuotaSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpPublishingLimit, UserID: creds.UserID})
	if err := s.check(ctx, OpPublishingLimit, creds); err != nil {
		return threads.QuotaSnapshot{}, err
	}
	snap, ok := s.limits[creds.UserID]
	if !ok {
		return threads.QuotaSnapshot{}, s.notFound(OpPublishingLimit, creds.UserID)
	}
	return snap, nil
}

func (s *Service) check(ctx context.Context, op Op, creds threads.Credentials) error {
	if err := ctx.Err(); err != nil {
		return threads.TransportError{Op: string(op), Err: err}
	}
	if err, ok := s.failures[op]; ok {
		return err
	}
	if s.errorMode {
		return threads.TransportError{Op: string(op), StatusCode: 500, Message: fmt.Sprintf("failed to %s", op)}
	}
	if creds.AccessToken == "" {
		return threads.TransportError{Op: string(op), StatusCode: 401, Code: 190, Message: "invalid OAuth access token"}
	}
	return nil
}

func (s *Service) reject(op Op, msg string) error {
	return threads.TransportError{Op: string(op), StatusCode: 400, Code: 100, Message: msg}
}

func (s *Service) notFound(op Op, id string) error {
	return threads.TransportError{Op: string(op), StatusCode: 404, Message: fmt.Sprintf("object %q does not exist", id), Err: ErrNotFound}
}

func (s *Service) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

// ErrNotFound is wrapped by errors for unknown ids.
var ErrNotFound = errors.New("not found")
