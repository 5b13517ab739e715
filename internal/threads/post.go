package threads

// Post is one of TextPost, ImagePost, VideoPost or CarouselPost. Each variant
// only carries the fields its media type allows.
type Post interface {
	MediaType() MediaType
	apply(*PostRequest)
}

// Options are the fields every media type accepts.
type Options struct {
	Text                    string
	AltText                 string
	ReplyControl            ReplyControl
	AllowlistedCountryCodes []string
	ReplyToID               string
	QuotePostID             string
	TopicTag                string
	IsSpoilerMedia          *bool
	TextEntities            []TextEntity
	LocationID              string
	GetPermalink            bool
}

func (o Options) apply(r *PostRequest) {
	r.Text = o.Text
	r.AltText = o.AltText
	r.ReplyControl = o.ReplyControl
	r.AllowlistedCountryCodes = o.AllowlistedCountryCodes
	r.ReplyToID = o.ReplyToID
	r.QuotePostID = o.QuotePostID
	r.TopicTag = o.TopicTag
	r.IsSpoilerMedia = o.IsSpoilerMedia
	r.TextEntities = o.TextEntities
	r.LocationID = o.LocationID
	r.GetPermalink = o.GetPermalink
}

// TextPost is a text-only post with optional attachments.
type TextPost struct {
	Options
	LinkAttachment  string
	Poll            *PollAttachment
	GIF             *GIFAttachment
	Attachment      *TextAttachment
	AutoPublishText *bool
	Ghost           bool
}

func (TextPost) MediaType() MediaType { return MediaText }

func (p TextPost) apply(r *PostRequest) {
	p.Options.apply(r)
	r.LinkAttachment = p.LinkAttachment
	r.PollAttachment = p.Poll
	r.GIFAttachment = p.GIF
	r.TextAttachment = p.Attachment
	r.AutoPublishText = p.AutoPublishText
	r.IsGhostPost = p.Ghost
}

// ImagePost publishes a single image fetched by the service from ImageURL.
type ImagePost struct {
	Options
	ImageURL string
}

func (ImagePost) MediaType() MediaType { return MediaImage }

func (p ImagePost) apply(r *PostRequest) {
	p.Options.apply(r)
	r.ImageURL = p.ImageURL
}

// VideoPost publishes a single video fetched by the service from VideoURL.
type VideoPost struct {
	Options
	VideoURL string
}

func (VideoPost) MediaType() MediaType { return MediaVideo }

func (p VideoPost) apply(r *PostRequest) {
	p.Options.apply(r)
	r.VideoURL = p.VideoURL
}

// CarouselPost groups previously created carousel item containers.
type CarouselPost struct {
	Options
	Children []string
}

func (CarouselPost) MediaType() MediaType { return MediaCarousel }

func (p CarouselPost) apply(r *PostRequest) {
	p.Options.apply(r)
	r.Children = p.Children
}

// Request flattens a typed post into the boundary request shape.
func Request(creds Credentials, p Post) PostRequest {
	req := PostRequest{
		UserID:      creds.UserID,
		AccessToken: creds.AccessToken,
		MediaType:   p.MediaType(),
	}
	p.apply(&req)
	return req
}
