package threads

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func param(t *testing.T, p Params, key string) string {
	t.Helper()
	v, ok := p.Get(key)
	require.True(t, ok, "missing param %q in %s", key, p)
	return v
}

func TestBuildPlan_Text(t *testing.T) {
	yes := true
	req := baseRequest(MediaText)
	req.Text = "hello"
	req.LinkAttachment = "https://example.com"
	req.ReplyControl = ReplyFollowersOnly
	req.AllowlistedCountryCodes = []string{"US", "CA"}
	req.TopicTag = "golang"
	req.AutoPublishText = &yes
	req.PollAttachment = &PollAttachment{OptionA: "yes", OptionB: "no"}

	plan, err := BuildPlan(req)
	require.NoError(t, err)

	assert.False(t, plan.Wrapped())
	assert.Equal(t, 1, plan.Steps())
	assert.Equal(t, req.Credentials(), plan.Credentials)

	out := plan.Outer
	assert.Equal(t, "TEXT", param(t, out, "media_type"))
	assert.Equal(t, "hello", param(t, out, "text"))
	assert.Equal(t, "https://example.com", param(t, out, "link_attachment"))
	assert.Equal(t, "followers_only", param(t, out, "reply_control"))
	assert.Equal(t, "US,CA", param(t, out, "allowlisted_country_codes"))
	assert.Equal(t, "golang", param(t, out, "topic_tag"))
	assert.Equal(t, "true", param(t, out, "auto_publish_text"))
	assert.JSONEq(t, `{"option_a":"yes","option_b":"no"}`, param(t, out, "poll_attachment"))

	_, ok := out.Get("is_ghost_post")
	assert.False(t, ok, "is_ghost_post is only sent when set")
	_, ok = out.Get("image_url")
	assert.False(t, ok)
}

func TestBuildPlan_Ghost(t *testing.T) {
	req := baseRequest(MediaText)
	req.Text = "boo"
	req.IsGhostPost = true

	plan, err := BuildPlan(req)
	require.NoError(t, err)
	assert.Equal(t, "true", param(t, plan.Outer, "is_ghost_post"))
}

func TestBuildPlan_Image(t *testing.T) {
	no := false
	req := baseRequest(MediaImage)
	req.ImageURL = "https://example.com/a.jpg"
	req.AltText = "a cat"
	req.IsSpoilerMedia = &no
	req.TextEntities = []TextEntity{{EntityType: "SPOILER", Offset: 0, Length: 3}}

	plan, err := BuildPlan(req)
	require.NoError(t, err)

	out := plan.Outer
	assert.Equal(t, "IMAGE", param(t, out, "media_type"))
	assert.Equal(t, "https://example.com/a.jpg", param(t, out, "image_url"))
	assert.Equal(t, "a cat", param(t, out, "alt_text"))
	assert.Equal(t, "false", param(t, out, "is_spoiler_media"))

	var entities []TextEntity
	require.NoError(t, json.Unmarshal([]byte(param(t, out, "text_entities")), &entities))
	assert.Equal(t, req.TextEntities, entities)
}

func TestBuildPlan_ImageRequiresURL(t *testing.T) {
	_, err := BuildPlan(baseRequest(MediaImage))
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "imageUrl", verr.Field)
}

func TestBuildPlan_VideoIsWrapped(t *testing.T) {
	req := baseRequest(MediaVideo)
	req.VideoURL = "https://example.com/clip.mp4"
	req.Text = "watch this"
	req.AltText = "a clip"

	plan, err := BuildPlan(req)
	require.NoError(t, err)

	require.True(t, plan.Wrapped())
	assert.Equal(t, 2, plan.Steps())
	assert.Equal(t, MediaVideo, plan.MediaType)

	item := plan.Item
	assert.Equal(t, "true", param(t, item, "is_carousel_item"))
	assert.Equal(t, "VIDEO", param(t, item, "media_type"))
	assert.Equal(t, "https://example.com/clip.mp4", param(t, item, "video_url"))
	assert.Equal(t, "a clip", param(t, item, "alt_text"))
	_, ok := item.Get("text")
	assert.False(t, ok, "text belongs to the outer container")

	outer := plan.OuterFor("item_42")
	assert.Equal(t, "CAROUSEL", param(t, outer, "media_type"))
	assert.Equal(t, "item_42", param(t, outer, "children"))
	assert.Equal(t, "watch this", param(t, outer, "text"))
	_, ok = outer.Get("video_url")
	assert.False(t, ok)

	// OuterFor must not mutate the plan.
	assert.Equal(t, "", param(t, plan.Outer, "children"))
}

func TestBuildPlan_Carousel(t *testing.T) {
	req := baseRequest(MediaCarousel)
	req.Children = []string{"c1", "c2", "c3"}
	req.ReplyToID = "999"

	plan, err := BuildPlan(req)
	require.NoError(t, err)

	assert.False(t, plan.Wrapped())
	assert.Equal(t, "c1,c2,c3", param(t, plan.OuterFor(""), "children"))
	assert.Equal(t, "999", param(t, plan.Outer, "reply_to_id"))
}

func TestBuildPlan_IsPure(t *testing.T) {
	req := baseRequest(MediaVideo)
	req.VideoURL = "https://example.com/clip.mp4"

	a, err := BuildPlan(req)
	require.NoError(t, err)
	b, err := BuildPlan(req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParams(t *testing.T) {
	var p Params
	p.Set("a", "1")
	p.Set("b", "2")
	p.Set("a", "3")

	assert.Len(t, p, 2)
	assert.Equal(t, "a=3 b=2", p.String())

	c := p.Clone()
	c.Set("b", "changed")
	v, _ := p.Get("b")
	assert.Equal(t, "2", v)

	values := p.Values()
	assert.Equal(t, "3", values.Get("a"))
	assert.Equal(t, "2", values.Get("b"))
}

func TestBuildItemParams(t *testing.T) {
	params, err := BuildItemParams(CarouselItem{MediaType: MediaImage, ImageURL: "https://example.com/a.jpg", AltText: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, Params{
		{Key: "is_carousel_item", Value: "true"},
		{Key: "media_type", Value: "IMAGE"},
		{Key: "image_url", Value: "https://example.com/a.jpg"},
		{Key: "alt_text", Value: "a cat"},
	}, params)

	params, err = BuildItemParams(CarouselItem{MediaType: MediaVideo, VideoURL: "https://example.com/a.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "is_carousel_item=true media_type=VIDEO video_url=https://example.com/a.mp4", params.String())

	_, err = BuildItemParams(CarouselItem{MediaType: MediaVideo})
	assert.EqualError(t, err, "validation failed: videoUrl is required for VIDEO type carousel items")
	_, err = BuildItemParams(CarouselItem{MediaType: MediaText})
	assert.Equal(t, CodeInvalid, Code(err))
}
