package threads

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"slices"
	"time"

	"github.com/blacktop/threadpost/internal/logutil"
)

const (
	// MaxTextEntities is the most text-styling entities a post may carry.
	MaxTextEntities = 10
	// MinCarouselChildren is the fewest children a carousel may have.
	MinCarouselChildren = 2

	maxImageBytes = 8 << 20
	maxVideoBytes = 1 << 30

	defaultProbeTimeout = 5 * time.Second
)

var linkPattern = regexp.MustCompile(`^https?://[\w.-]+\.[a-zA-Z]{2,}`)

type mediaSpec struct {
	field    string
	noun     string
	types    []string
	formats  string
	maxBytes int64
	limit    string
}

var (
	imageSpec = mediaSpec{
		field:    "imageUrl",
		noun:     "image",
		types:    []string{"image/jpeg", "image/png"},
		formats:  "JPEG or PNG",
		maxBytes: maxImageBytes,
		limit:    "8 MB",
	}
	videoSpec = mediaSpec{
		field:    "videoUrl",
		noun:     "video",
		types:    []string{"video/mp4", "video/quicktime"},
		formats:  "MP4 or MOV",
		maxBytes: maxVideoBytes,
		limit:    "1 GB",
	}
)

// Validator checks a PostRequest against the media-type rules. The rules run
// in a fixed order and the first violation is returned.
type Validator struct {
	client       *http.Client
	probeTimeout time.Duration
	probe        bool
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithProbeClient sets the HTTP client used for the remote media probe.
func WithProbeClient(c *http.Client) ValidatorOption {
	return func(v *Validator) { v.client = c }
}

// WithProbeTimeout bounds each remote media probe.
func WithProbeTimeout(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		if d > 0 {
			v.probeTimeout = d
		}
	}
}

// WithoutProbe disables the remote media probe.
func WithoutProbe() ValidatorOption {
	return func(v *Validator) { v.probe = false }
}

// NewValidator returns a Validator that probes media URLs with a HEAD request.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		client:       http.DefaultClient,
		probeTimeout: defaultProbeTimeout,
		probe:        true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns a ValidationError describing the first rule req violates.
func (v *Validator) Validate(ctx context.Context, req PostRequest) error {
	if err := checkIdentity(req); err != nil {
		return err
	}
	if err := checkExclusivity(req); err != nil {
		return err
	}
	if err := checkAttachments(req); err != nil {
		return err
	}
	if req.IsGhostPost {
		if req.MediaType != MediaText {
			return ValidationError{Field: "isGhostPost", Reason: "can only be used with TEXT media type"}
		}
		if req.ReplyToID != "" {
			return ValidationError{Field: "isGhostPost", Reason: "cannot be used together with replyToId"}
		}
	}
	if len(req.TextEntities) > MaxTextEntities {
		return ValidationError{Field: "textEntities", Reason: fmt.Sprintf("cannot have more than %d entries", MaxTextEntities)}
	}
	if req.MediaType == MediaCarousel && len(req.Children) < MinCarouselChildren {
		return ValidationError{Field: "children", Reason: fmt.Sprintf("CAROUSEL media type requires at least %d children", MinCarouselChildren)}
	}
	if req.MediaType == MediaText && req.LinkAttachment != "" {
		if err := ValidateLinkURL(req.LinkAttachment); err != nil {
			return err
		}
	}

	if !v.probe {
		return nil
	}
	switch {
	case req.MediaType == MediaImage && req.ImageURL != "":
		return v.probeMedia(ctx, imageSpec, req.ImageURL)
	case req.MediaType == MediaVideo && req.VideoURL != "":
		return v.probeMedia(ctx, videoSpec, req.VideoURL)
	}
	return nil
}

func checkIdentity(req PostRequest) error {
	switch {
	case req.UserID == "":
		return ValidationError{Field: "userId", Reason: "is required"}
	case req.AccessToken == "":
		return ValidationError{Field: "accessToken", Reason: "is required"}
	case req.MediaType == "":
		return ValidationError{Field: "mediaType", Reason: "is required"}
	case !req.MediaType.Valid():
		return ValidationError{Field: "mediaType", Reason: fmt.Sprintf("%q is not one of TEXT, IMAGE, VIDEO, CAROUSEL", req.MediaType)}
	case req.ReplyControl != "" && !req.ReplyControl.Valid():
		return ValidationError{Field: "replyControl", Reason: fmt.Sprintf("%q is not a supported reply control", req.ReplyControl)}
	}
	return nil
}

func checkExclusivity(req PostRequest) error {
	switch {
	case req.ImageURL != "" && req.MediaType != MediaImage:
		return ValidationError{Field: "imageUrl", Reason: "can only be used with IMAGE media type"}
	case req.VideoURL != "" && req.MediaType != MediaVideo:
		return ValidationError{Field: "videoUrl", Reason: "can only be used with VIDEO media type"}
	case req.LinkAttachment != "" && req.MediaType != MediaText:
		return ValidationError{Field: "linkAttachment", Reason: "can only be used with TEXT media type"}
	case len(req.Children) > 0 && req.MediaType != MediaCarousel:
		return ValidationError{Field: "children", Reason: "can only be used with CAROUSEL media type"}
	}
	return nil
}

func checkAttachments(req PostRequest) error {
	text := req.MediaType == MediaText
	switch {
	case req.PollAttachment != nil && !text:
		return ValidationError{Field: "pollAttachment", Reason: "can only be used with TEXT media type"}
	case req.GIFAttachment != nil && !text:
		return ValidationError{Field: "gifAttachment", Reason: "can only be used with TEXT media type"}
	case req.TextAttachment != nil && !text:
		return ValidationError{Field: "textAttachment", Reason: "can only be used with TEXT media type"}
	case req.TextAttachment != nil && req.PollAttachment != nil:
		return ValidationError{Field: "textAttachment", Reason: "cannot be used together with pollAttachment"}
	}
	return nil
}

// ValidateLinkURL checks that a link attachment has an http(s) scheme and a
// dotted host with an alphabetic suffix.
func ValidateLinkURL(raw string) error {
	if !linkPattern.MatchString(raw) {
		return ValidationError{
			Field:  "linkAttachment",
			Reason: "has an invalid URL format: URL must start with http:// or https:// and contain a valid domain",
		}
	}
	return nil
}

// probeMedia issues a HEAD request for the media URL. Failures to perform the
// probe are ignored: many hosts refuse HEAD.
func (v *Validator) probeMedia(ctx context.Context, spec mediaSpec, rawURL string) error {
	probeCtx, cancel := context.WithTimeout(ctx, v.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		logutil.Debugf("skipping %s probe: %v", spec.noun, err)
		return nil
	}
	resp, err := v.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logutil.Debugf("skipping %s probe: %v", spec.noun, err)
		return nil
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed, resp.StatusCode == http.StatusNotImplemented:
		logutil.Debugf("skipping %s probe: host answered %s", spec.noun, resp.Status)
		return nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return ValidationError{Field: spec.field, Reason: fmt.Sprintf("could not fetch %s: %s", spec.noun, resp.Status)}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || !slices.Contains(spec.types, mediaType) {
			return ValidationError{Field: spec.field, Reason: fmt.Sprintf("%s format must be %s (got %q)", spec.noun, spec.formats, ct)}
		}
	}
	if resp.ContentLength > spec.maxBytes {
		return ValidationError{Field: spec.field, Reason: fmt.Sprintf("%s file size must not exceed %s", spec.noun, spec.limit)}
	}
	return nil
}
