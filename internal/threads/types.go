package threads

import (
	"context"
	"fmt"
	"time"
)

// MediaType selects which kind of container a post creates.
type MediaType string

const (
	MediaText     MediaType = "TEXT"
	MediaImage    MediaType = "IMAGE"
	MediaVideo    MediaType = "VIDEO"
	MediaCarousel MediaType = "CAROUSEL"
)

// Valid reports whether m is one of the supported media types.
func (m MediaType) Valid() bool {
	switch m {
	case MediaText, MediaImage, MediaVideo, MediaCarousel:
		return true
	}
	return false
}

// ReplyControl limits who may reply to a post.
type ReplyControl string

const (
	ReplyEveryone             ReplyControl = "everyone"
	ReplyAccountsYouFollow    ReplyControl = "accounts_you_follow"
	ReplyMentionedOnly        ReplyControl = "mentioned_only"
	ReplyParentPostAuthorOnly ReplyControl = "parent_post_author_only"
	ReplyFollowersOnly        ReplyControl = "followers_only"
)

// Valid reports whether r is a reply control the service understands.
func (r ReplyControl) Valid() bool {
	switch r {
	case ReplyEveryone, ReplyAccountsYouFollow, ReplyMentionedOnly, ReplyParentPostAuthorOnly, ReplyFollowersOnly:
		return true
	}
	return false
}

// Credentials identify the account a request acts on.
type Credentials struct {
	UserID      string
	AccessToken string
}

// String never prints the token in full.
func (c Credentials) String() string {
	return fmt.Sprintf("user=%s token=%s", c.UserID, RedactToken(c.AccessToken))
}

// RedactToken keeps at most the last four characters of a token.
func RedactToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	if len(token) <= 8 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}

// PollAttachment holds two to four poll options.
type PollAttachment struct {
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c,omitempty"`
	OptionD string `json:"option_d,omitempty"`
}

// TextEntity annotates a range of the post text, e.g. a spoiler.
type TextEntity struct {
	EntityType string `json:"entity_type"`
	Offset     int    `json:"offset"`
	Length     int    `json:"length"`
}

// StyledRange applies styling to a range of a text attachment.
type StyledRange struct {
	Offset      int      `json:"offset"`
	Length      int      `json:"length"`
	StylingInfo []string `json:"styling_info"`
}

// TextAttachment is a long-form text attachment.
type TextAttachment struct {
	Plaintext           string        `json:"plaintext"`
	LinkAttachmentURL   string        `json:"link_attachment_url,omitempty"`
	TextWithStylingInfo []StyledRange `json:"text_with_styling_info,omitempty"`
}

// GIFAttachment references a GIF from an external provider.
type GIFAttachment struct {
	GIFID    string `json:"gif_id"`
	Provider string `json:"provider"`
}

// PostRequest is the flat request shape accepted at the API boundary.
// Which fields are allowed depends on MediaType; Validator enforces that.
type PostRequest struct {
	UserID      string    `json:"userId"`
	AccessToken string    `json:"accessToken"`
	MediaType   MediaType `json:"mediaType"`

	Text                    string          `json:"text,omitempty"`
	ImageURL                string          `json:"imageUrl,omitempty"`
	VideoURL                string          `json:"videoUrl,omitempty"`
	AltText                 string          `json:"altText,omitempty"`
	LinkAttachment          string          `json:"linkAttachment,omitempty"`
	AllowlistedCountryCodes []string        `json:"allowlistedCountryCodes,omitempty"`
	ReplyControl            ReplyControl    `json:"replyControl,omitempty"`
	Children                []string        `json:"children,omitempty"`
	GetPermalink            bool            `json:"getPermalink,omitempty"`
	ReplyToID               string          `json:"replyToId,omitempty"`
	QuotePostID             string          `json:"quotePostId,omitempty"`
	PollAttachment          *PollAttachment `json:"pollAttachment,omitempty"`
	AutoPublishText         *bool           `json:"autoPublishText,omitempty"`
	TopicTag                string          `json:"topicTag,omitempty"`
	IsSpoilerMedia          *bool           `json:"isSpoilerMedia,omitempty"`
	TextEntities            []TextEntity    `json:"textEntities,omitempty"`
	TextAttachment          *TextAttachment `json:"textAttachment,omitempty"`
	GIFAttachment           *GIFAttachment  `json:"gifAttachment,omitempty"`
	IsGhostPost             bool            `json:"isGhostPost,omitempty"`
	LocationID              string          `json:"locationId,omitempty"`
}

// Credentials returns the identity portion of the request.
func (r PostRequest) Credentials() Credentials {
	return Credentials{UserID: r.UserID, AccessToken: r.AccessToken}
}

// ContainerStatus is the server-side lifecycle state of a container.
type ContainerStatus string

const (
	StatusInProgress ContainerStatus = "IN_PROGRESS"
	StatusFinished   ContainerStatus = "FINISHED"
	StatusError      ContainerStatus = "ERROR"
	StatusExpired    ContainerStatus = "EXPIRED"
	// StatusFailed is occasionally reported by the service; it is handled like ERROR.
	StatusFailed ContainerStatus = "FAILED"
)

// Terminal reports whether no further transition is expected.
func (s ContainerStatus) Terminal() bool {
	switch s {
	case StatusFinished, StatusError, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// Container is the observed state of a staging resource.
type Container struct {
	ID           string          `json:"id"`
	Status       ContainerStatus `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Permalink    string          `json:"permalink,omitempty"`
}

// PublishedItem is the subset of a published post this package reads back.
type PublishedItem struct {
	ID        string `json:"id"`
	Permalink string `json:"permalink,omitempty"`
}

// PublishResult is the outcome of a successful Compose. Permalink is only
// set when the request asked for it.
type PublishResult struct {
	ID        string `json:"id"`
	Permalink string `json:"permalink,omitempty"`
}

// QuotaUsage is one usage/limit pair.
type QuotaUsage struct {
	Usage  int
	Total  int
	Window time.Duration
}

// Remaining returns how many calls are left in the current window.
func (q QuotaUsage) Remaining() int {
	if q.Total <= 0 {
		return 0
	}
	if left := q.Total - q.Usage; left > 0 {
		return left
	}
	return 0
}

// Exhausted reports whether a configured limit has been reached.
func (q QuotaUsage) Exhausted() bool {
	return q.Total > 0 && q.Usage >= q.Total
}

// QuotaSnapshot is a point-in-time read of the account's rate limits.
type QuotaSnapshot struct {
	Post           QuotaUsage
	Reply          QuotaUsage
	Delete         QuotaUsage
	LocationSearch QuotaUsage
}

// Allows reports whether the quota that req would consume still has room.
// Categories the service did not report are treated as unlimited.
func (s QuotaSnapshot) Allows(req PostRequest) bool {
	if req.ReplyToID != "" {
		return !s.Reply.Exhausted()
	}
	return !s.Post.Exhausted()
}

// ContainerService is the remote collaborator that owns containers.
type ContainerService interface {
	CreateContainer(ctx context.Context, creds Credentials, params Params) (string, error)
	ContainerStatus(ctx context.Context, creds Credentials, containerID string) (Container, error)
	Publish(ctx context.Context, creds Credentials, containerID string) (string, error)
	PublishedItem(ctx context.Context, creds Credentials, mediaID string) (PublishedItem, error)
}

// QuotaReader reads the account's publishing limits.
type QuotaReader interface {
	PublishingLimit(ctx context.Context, creds Credentials) (QuotaSnapshot, error)
}
