package threads

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Param is a single container creation parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered set of creation parameters. Keys are unique.
type Params []Param

// Get returns the value for key and whether it is present.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set replaces the value for key, appending it when absent.
func (p *Params) Set(key, value string) {
	for i, kv := range *p {
		if kv.Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Param{Key: key, Value: value})
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	return append(Params(nil), p...)
}

// Values converts the parameters into form values.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for _, kv := range p {
		v.Set(kv.Key, kv.Value)
	}
	return v
}

func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for _, kv := range p {
		parts = append(parts, kv.Key+"="+kv.Value)
	}
	return strings.Join(parts, " ")
}

// CreationPlan describes the container creation calls for one post. Item is
// only set for VIDEO posts: the item container's id becomes the sole child of
// Outer, which is the container that gets polled and published.
type CreationPlan struct {
	Credentials Credentials
	MediaType   MediaType
	Item        Params
	Outer       Params
}

// Steps returns the number of creation calls the plan needs.
func (p CreationPlan) Steps() int {
	if p.Item != nil {
		return 2
	}
	return 1
}

// Wrapped reports whether the outer container wraps an item container.
func (p CreationPlan) Wrapped() bool { return p.Item != nil }

// OuterFor returns the outer container parameters with children pointing at
// the created item container.
func (p CreationPlan) OuterFor(itemID string) Params {
	outer := p.Outer.Clone()
	if p.Wrapped() {
		outer.Set("children", itemID)
	}
	return outer
}

// BuildPlan maps a validated request onto creation parameters. It performs
// no I/O.
func BuildPlan(req PostRequest) (CreationPlan, error) {
	plan := CreationPlan{Credentials: req.Credentials(), MediaType: req.MediaType}

	var outer Params
	outer.Set("media_type", string(req.MediaType))
	if req.Text != "" {
		outer.Set("text", req.Text)
	}
	if req.AltText != "" {
		outer.Set("alt_text", req.AltText)
	}
	if req.ReplyControl != "" {
		outer.Set("reply_control", string(req.ReplyControl))
	}
	if len(req.AllowlistedCountryCodes) > 0 {
		outer.Set("allowlisted_country_codes", strings.Join(req.AllowlistedCountryCodes, ","))
	}
	if req.ReplyToID != "" {
		outer.Set("reply_to_id", req.ReplyToID)
	}
	if req.QuotePostID != "" {
		outer.Set("quote_post_id", req.QuotePostID)
	}
	if req.TopicTag != "" {
		outer.Set("topic_tag", req.TopicTag)
	}
	if req.IsGhostPost {
		outer.Set("is_ghost_post", "true")
	}
	if req.LocationID != "" {
		outer.Set("location_id", req.LocationID)
	}
	if req.AutoPublishText != nil {
		outer.Set("auto_publish_text", strconv.FormatBool(*req.AutoPublishText))
	}
	if req.IsSpoilerMedia != nil {
		outer.Set("is_spoiler_media", strconv.FormatBool(*req.IsSpoilerMedia))
	}

	encoded := []struct {
		key   string
		value any
		set   bool
	}{
		{"poll_attachment", req.PollAttachment, req.PollAttachment != nil},
		{"text_entities", req.TextEntities, len(req.TextEntities) > 0},
		{"text_attachment", req.TextAttachment, req.TextAttachment != nil},
		{"gif_attachment", req.GIFAttachment, req.GIFAttachment != nil},
	}
	for _, e := range encoded {
		if !e.set {
			continue
		}
		data, err := json.Marshal(e.value)
		if err != nil {
			return CreationPlan{}, ValidationError{Field: e.key, Reason: fmt.Sprintf("cannot be encoded: %v", err)}
		}
		outer.Set(e.key, string(data))
	}

	switch req.MediaType {
	case MediaVideo:
		if req.VideoURL == "" {
			return CreationPlan{}, ValidationError{Field: "videoUrl", Reason: "is required for VIDEO media type"}
		}
		item, err := BuildItemParams(CarouselItem{MediaType: MediaVideo, VideoURL: req.VideoURL, AltText: req.AltText})
		if err != nil {
			return CreationPlan{}, err
		}
		plan.Item = item
		outer.Set("media_type", string(MediaCarousel))
		outer.Set("children", "")
	case MediaImage:
		if req.ImageURL == "" {
			return CreationPlan{}, ValidationError{Field: "imageUrl", Reason: "is required for IMAGE media type"}
		}
		outer.Set("image_url", req.ImageURL)
	case MediaText:
		if req.LinkAttachment != "" {
			outer.Set("link_attachment", req.LinkAttachment)
		}
	case MediaCarousel:
		outer.Set("children", strings.Join(req.Children, ","))
	default:
		return CreationPlan{}, ValidationError{Field: "mediaType", Reason: fmt.Sprintf("%q is not supported", req.MediaType)}
	}

	plan.Outer = outer
	return plan, nil
}
