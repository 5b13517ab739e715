package threads

import (
	"context"
	"fmt"

	"github.com/blacktop/threadpost/internal/logutil"
)

// CarouselItem is one image or video of a carousel post. Created items are
// referenced from a CAROUSEL request by their container ids.
type CarouselItem struct {
	MediaType MediaType `json:"mediaType"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	AltText   string    `json:"altText,omitempty"`
}

func (i CarouselItem) request(creds Credentials) PostRequest {
	return PostRequest{
		UserID:      creds.UserID,
		AccessToken: creds.AccessToken,
		MediaType:   i.MediaType,
		ImageURL:    i.ImageURL,
		VideoURL:    i.VideoURL,
		AltText:     i.AltText,
	}
}

// ValidateItem checks a carousel item with the same identity, exclusivity and
// media rules as a post.
func (v *Validator) ValidateItem(ctx context.Context, creds Credentials, item CarouselItem) error {
	req := item.request(creds)
	if err := checkIdentity(req); err != nil {
		return err
	}
	if item.MediaType != MediaImage && item.MediaType != MediaVideo {
		return ValidationError{Field: "mediaType", Reason: "carousel items must be either IMAGE or VIDEO type"}
	}
	if err := checkExclusivity(req); err != nil {
		return err
	}

	spec, url := imageSpec, item.ImageURL
	if item.MediaType == MediaVideo {
		spec, url = videoSpec, item.VideoURL
	}
	if url == "" {
		return ValidationError{Field: spec.field, Reason: fmt.Sprintf("is required for %s type carousel items", item.MediaType)}
	}
	if !v.probe {
		return nil
	}
	return v.probeMedia(ctx, spec, url)
}

// BuildItemParams maps a validated carousel item onto creation parameters.
func BuildItemParams(item CarouselItem) (Params, error) {
	params := Params{
		{Key: "is_carousel_item", Value: "true"},
		{Key: "media_type", Value: string(item.MediaType)},
	}
	switch item.MediaType {
	case MediaImage:
		if item.ImageURL == "" {
			return nil, ValidationError{Field: "imageUrl", Reason: "is required for IMAGE type carousel items"}
		}
		params.Set("image_url", item.ImageURL)
	case MediaVideo:
		if item.VideoURL == "" {
			return nil, ValidationError{Field: "videoUrl", Reason: "is required for VIDEO type carousel items"}
		}
		params.Set("video_url", item.VideoURL)
	default:
		return nil, ValidationError{Field: "mediaType", Reason: "carousel items must be either IMAGE or VIDEO type"}
	}
	if item.AltText != "" {
		params.Set("alt_text", item.AltText)
	}
	return params, nil
}

// CreateCarouselItem validates item and creates its container. The returned
// id is meant for the Children of a CAROUSEL request; the item itself is
// never published.
func (p *Publisher) CreateCarouselItem(ctx context.Context, creds Credentials, item CarouselItem) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := p.validator.ValidateItem(ctx, creds, item); err != nil {
		return "", err
	}
	params, err := BuildItemParams(item)
	if err != nil {
		return "", err
	}

	id, err := p.svc.CreateContainer(ctx, creds, params)
	if err != nil {
		return "", fmt.Errorf("create %s carousel item: %w", item.MediaType, err)
	}
	if id == "" {
		return "", fmt.Errorf("create %s carousel item: %w", item.MediaType, errEmptyID("create container"))
	}
	p.observer.ContainerCreated(KindItem)
	logutil.Infof("carousel item created: media_type=%s container_id=%s", item.MediaType, id)
	return id, nil
}
