package threads

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRequest(mt MediaType) PostRequest {
	return PostRequest{UserID: "17841400000", AccessToken: "EAAGtoken1234", MediaType: mt}
}

func TestValidator_Rules(t *testing.T) {
	v := NewValidator(WithoutProbe())
	ctx := context.Background()

	entities := make([]TextEntity, MaxTextEntities+1)
	for i := range entities {
		entities[i] = TextEntity{EntityType: "SPOILER", Offset: i, Length: 1}
	}

	tests := []struct {
		name   string
		mutate func(*PostRequest)
		mt     MediaType
		field  string
		reason string
	}{
		{
			name:   "missing user id",
			mt:     MediaText,
			mutate: func(r *PostRequest) { r.UserID = "" },
			field:  "userId",
		},
		{
			name:   "missing token",
			mt:     MediaText,
			mutate: func(r *PostRequest) { r.AccessToken = "" },
			field:  "accessToken",
		},
		{
			name:   "unknown media type",
			mt:     MediaType("AUDIO"),
			mutate: func(*PostRequest) {},
			field:  "mediaType",
		},
		{
			name:   "unknown reply control",
			mt:     MediaText,
			mutate: func(r *PostRequest) { r.ReplyControl = "nobody" },
			field:  "replyControl",
		},
		{
			name:   "image url on text post",
			mt:     MediaText,
			mutate: func(r *PostRequest) { r.ImageURL = "https://example.com/a.jpg" },
			field:  "imageUrl",
			reason: "can only be used with IMAGE media type",
		},
		{
			name:   "video url on text post",
			mt:     MediaText,
			mutate: func(r *PostRequest) { r.Text = "hello"; r.VideoURL = "https://example.com/a.mp4" },
			field:  "videoUrl",
			reason: "can only be used with VIDEO media type",
		},
		{
			name:   "video url on image post",
			mt:     MediaImage,
			mutate: func(r *PostRequest) { r.VideoURL = "https://example.com/a.mp4" },
			field:  "videoUrl",
			reason: "can only be used with VIDEO media type",
		},
		{
			name:   "link on image post",
			mt:     MediaImage,
			mutate: func(r *PostRequest) { r.ImageURL = "https://example.com/a.jpg"; r.LinkAttachment = "https://example.com" },
			field:  "linkAttachment",
			reason: "can only be used with TEXT media type",
		},
		{
			name:   "children on text post",
			mt:     MediaText,
			mutate: func(r *PostRequest) { r.Children = []string{"1", "2"} },
			field:  "children",
			reason: "can only be used with CAROUSEL media type",
		},
		{
			name:   "poll on image post",
			mt:     MediaImage,
			mutate: func(r *PostRequest) { r.PollAttachment = &PollAttachment{OptionA: "a", OptionB: "b"} },
			field:  "pollAttachment",
		},
		{
			name:   "gif on video post",
			mt:     MediaVideo,
			mutate: func(r *PostRequest) { r.GIFAttachment = &GIFAttachment{GIFID: "1", Provider: "TENOR"} },
			field:  "gifAttachment",
		},
		{
			name: "text attachment with poll",
			mt:   MediaText,
			mutate: func(r *PostRequest) {
				r.TextAttachment = &TextAttachment{Plaintext: "long"}
				r.PollAttachment = &PollAttachment{OptionA: "a", OptionB: "b"}
			},
			field:  "textAttachment",
			reason: "cannot be used together with pollAttachment",
		},
		{
			name:   "ghost post on image",
			mt:     MediaImage,
			mutate: func(r *PostRequest) { r.IsGhostPost = true },
			field:  "isGhostPost",
			reason: "can only be used with TEXT media type",
		},
		{
			name:   "ghost reply",
			mt:     MediaText,
			mutate: func(r *PostRequest) { r.IsGhostPost = true; r.ReplyToID = "123" },
			field:  "isGhostPost",
			reason: "cannot be used together with replyToId",
		},
		{
			name:   "too many text entities",
			mt:     MediaText,
			mutate: func(r *PostRequest) { r.TextEntities = entities },
			field:  "textEntities",
			reason: "cannot have more than 10 entries",
		},
		{
			name:   "carousel with one child",
			mt:     MediaCarousel,
			mutate: func(r *PostRequest) { r.Children = []string{"only"} },
			field:  "children",
			reason: "CAROUSEL media type requires at least 2 children",
		},
		{
			name:   "carousel without children",
			mt:     MediaCarousel,
			mutate: func(*PostRequest) {},
			field:  "children",
		},
		{
			name:   "malformed link",
			mt:     MediaText,
			mutate: func(r *PostRequest) { r.LinkAttachment = "ftp://example.com" },
			field:  "linkAttachment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest(tt.mt)
			req.Text = "hello"
			tt.mutate(&req)

			err := v.Validate(ctx, req)
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %T", err)
			assert.Equal(t, tt.field, verr.Field)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, verr.Reason)
			}
			assert.Equal(t, CodeInvalid, Code(err))
		})
	}
}

func TestValidator_RuleOrder(t *testing.T) {
	v := NewValidator(WithoutProbe())

	// Exclusivity is checked before the carousel child count.
	req := baseRequest(MediaCarousel)
	req.ImageURL = "https://example.com/a.jpg"
	req.Children = []string{"one"}

	err := v.Validate(context.Background(), req)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "imageUrl", verr.Field)
}

func TestValidator_Accepts(t *testing.T) {
	v := NewValidator(WithoutProbe())
	ctx := context.Background()

	entities := make([]TextEntity, MaxTextEntities)

	valid := map[string]PostRequest{
		"text": func() PostRequest {
			r := baseRequest(MediaText)
			r.Text = "hello"
			r.LinkAttachment = "https://example.com/post"
			r.TextEntities = entities
			return r
		}(),
		"ghost text": func() PostRequest {
			r := baseRequest(MediaText)
			r.Text = "boo"
			r.IsGhostPost = true
			return r
		}(),
		"image": func() PostRequest {
			r := baseRequest(MediaImage)
			r.ImageURL = "https://example.com/a.jpg"
			r.ReplyControl = ReplyMentionedOnly
			return r
		}(),
		"carousel": func() PostRequest {
			r := baseRequest(MediaCarousel)
			r.Children = []string{"1", "2"}
			return r
		}(),
	}
	for name, req := range valid {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, v.Validate(ctx, req))
		})
	}
}

func TestValidateLinkURL(t *testing.T) {
	good := []string{
		"https://example.com",
		"http://sub.example.co.uk/path?q=1",
		"https://my-site.dev",
	}
	for _, u := range good {
		assert.NoError(t, ValidateLinkURL(u), u)
	}

	bad := []string{
		"example.com",
		"ftp://example.com",
		"https://localhost",
		"https://example.c",
		"",
	}
	for _, u := range bad {
		err := ValidateLinkURL(u)
		var verr ValidationError
		if assert.ErrorAs(t, err, &verr, u) {
			assert.Equal(t, "linkAttachment", verr.Field)
			assert.Contains(t, verr.Reason, "invalid URL format")
		}
	}
}

func probeServer(t *testing.T, status int, contentType string, length int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		if length >= 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidator_ProbeImage(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts jpeg within limit", func(t *testing.T) {
		srv := probeServer(t, http.StatusOK, "image/jpeg", 1024)
		v := NewValidator(WithProbeClient(srv.Client()))
		req := baseRequest(MediaImage)
		req.ImageURL = srv.URL + "/a.jpg"
		assert.NoError(t, v.Validate(ctx, req))
	})

	t.Run("rejects gif", func(t *testing.T) {
		srv := probeServer(t, http.StatusOK, "image/gif", 1024)
		v := NewValidator(WithProbeClient(srv.Client()))
		req := baseRequest(MediaImage)
		req.ImageURL = srv.URL + "/a.gif"

		var verr ValidationError
		require.ErrorAs(t, v.Validate(ctx, req), &verr)
		assert.Equal(t, "imageUrl", verr.Field)
		assert.Contains(t, verr.Reason, "JPEG or PNG")
	})

	t.Run("rejects oversized image", func(t *testing.T) {
		srv := probeServer(t, http.StatusOK, "image/png", maxImageBytes+1)
		v := NewValidator(WithProbeClient(srv.Client()))
		req := baseRequest(MediaImage)
		req.ImageURL = srv.URL + "/a.png"

		var verr ValidationError
		require.ErrorAs(t, v.Validate(ctx, req), &verr)
		assert.Contains(t, verr.Reason, "8 MB")
	})

	t.Run("missing content type skips type check", func(t *testing.T) {
		srv := probeServer(t, http.StatusOK, "", 10)
		v := NewValidator(WithProbeClient(srv.Client()))
		req := baseRequest(MediaImage)
		req.ImageURL = srv.URL + "/a"
		assert.NoError(t, v.Validate(ctx, req))
	})

	t.Run("head not allowed is skipped", func(t *testing.T) {
		srv := probeServer(t, http.StatusMethodNotAllowed, "text/plain", 0)
		v := NewValidator(WithProbeClient(srv.Client()))
		req := baseRequest(MediaImage)
		req.ImageURL = srv.URL + "/a.jpg"
		assert.NoError(t, v.Validate(ctx, req))
	})

	t.Run("not found fails", func(t *testing.T) {
		srv := probeServer(t, http.StatusNotFound, "text/plain", 0)
		v := NewValidator(WithProbeClient(srv.Client()))
		req := baseRequest(MediaImage)
		req.ImageURL = srv.URL + "/missing.jpg"

		var verr ValidationError
		require.ErrorAs(t, v.Validate(ctx, req), &verr)
		assert.Contains(t, verr.Reason, "could not fetch image")
	})

	t.Run("unreachable host is skipped", func(t *testing.T) {
		srv := probeServer(t, http.StatusOK, "image/jpeg", 1)
		url := srv.URL + "/a.jpg"
		srv.Close()

		v := NewValidator(WithProbeClient(srv.Client()))
		req := baseRequest(MediaImage)
		req.ImageURL = url
		assert.NoError(t, v.Validate(ctx, req))
	})
}

func TestValidator_ProbeVideo(t *testing.T) {
	ctx := context.Background()

	srv := probeServer(t, http.StatusOK, "video/quicktime", 50<<20)
	v := NewValidator(WithProbeClient(srv.Client()))
	req := baseRequest(MediaVideo)
	req.VideoURL = srv.URL + "/clip.mov"
	assert.NoError(t, v.Validate(ctx, req))

	big := probeServer(t, http.StatusOK, "video/mp4", maxVideoBytes+1)
	v = NewValidator(WithProbeClient(big.Client()))
	req.VideoURL = big.URL + "/clip.mp4"
	var verr ValidationError
	require.ErrorAs(t, v.Validate(ctx, req), &verr)
	assert.Equal(t, "videoUrl", verr.Field)
	assert.Contains(t, verr.Reason, "1 GB")
}

func TestValidator_ProbeTimeoutIsSkipped(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	v := NewValidator(WithProbeClient(srv.Client()), WithProbeTimeout(50*time.Millisecond))
	req := baseRequest(MediaImage)
	req.ImageURL = srv.URL + "/slow.jpg"
	assert.NoError(t, v.Validate(context.Background(), req))
}

func TestValidator_ProbeCanceledContext(t *testing.T) {
	srv := probeServer(t, http.StatusOK, "image/jpeg", 1)
	v := NewValidator(WithProbeClient(srv.Client()))
	req := baseRequest(MediaImage)
	req.ImageURL = srv.URL + "/a.jpg"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := v.Validate(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidator_ValidateItemChecksMedia(t *testing.T) {
	ctx := context.Background()

	png := probeServer(t, http.StatusOK, "image/png", 1024)
	v := NewValidator(WithProbeClient(png.Client()))
	assert.NoError(t, v.ValidateItem(ctx, testCreds, CarouselItem{MediaType: MediaImage, ImageURL: png.URL + "/a.png"}))

	gif := probeServer(t, http.StatusOK, "image/gif", 1024)
	v = NewValidator(WithProbeClient(gif.Client()))
	var verr ValidationError
	require.ErrorAs(t, v.ValidateItem(ctx, testCreds, CarouselItem{MediaType: MediaImage, ImageURL: gif.URL + "/a.gif"}), &verr)
	assert.Equal(t, "imageUrl", verr.Field)
	assert.Contains(t, verr.Reason, "JPEG or PNG")

	big := probeServer(t, http.StatusOK, "video/mp4", maxVideoBytes+1)
	v = NewValidator(WithProbeClient(big.Client()))
	require.ErrorAs(t, v.ValidateItem(ctx, testCreds, CarouselItem{MediaType: MediaVideo, VideoURL: big.URL + "/a.mp4"}), &verr)
	assert.Equal(t, "videoUrl", verr.Field)
	assert.Contains(t, verr.Reason, "1 GB")

	v = NewValidator(WithoutProbe())
	require.ErrorAs(t, v.ValidateItem(ctx, testCreds, CarouselItem{MediaType: MediaText}), &verr)
	assert.Equal(t, "mediaType", verr.Field)
	assert.Equal(t, "carousel items must be either IMAGE or VIDEO type", verr.Reason)
}
