/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blacktop/threadpost/internal/config"
	"github.com/blacktop/threadpost/internal/logutil"
	"github.com/blacktop/threadpost/internal/threads"
	"github.com/blacktop/threadpost/internal/threads/graphapi"
)

// Version is set at build time.
var Version = "dev"

type postFlags struct {
	message      string
	mediaType    string
	imageURL     string
	videoURL     string
	altText      string
	link         string
	children     []string
	replyTo      string
	quote        string
	topic        string
	replyControl string
	countries    []string
	spoiler      bool
	ghost        bool
	location     string
	poll         []string
	permalink    bool
	dryRun       bool
	checkQuota   bool
	verbose      bool
}

var flags postFlags

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threadpost [text]",
		Short: "Publish posts to Threads",
		Long: "threadpost publishes a post to Threads through the container lifecycle: " +
			"create a media container, wait until the service has processed it, then publish. " +
			"Provide the text as an argument, with --message, or on stdin.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
		Example: `  threadpost "hello world"
  threadpost --image https://example.com/shot.jpg --alt-text "a screenshot" "Ship it!"
  threadpost --video https://example.com/clip.mp4 --permalink
  threadpost --child $(threadpost item --image https://example.com/a.jpg) \
    --child $(threadpost item --image https://example.com/b.jpg) "two pictures"
  echo "Release shipped" | threadpost --link https://example.com/release`,
	}

	f := cmd.Flags()
	f.StringVarP(&flags.message, "message", "m", "", "Text to post")
	f.StringVarP(&flags.mediaType, "type", "t", "", "Media type (TEXT, IMAGE, VIDEO, CAROUSEL); inferred when empty")
	f.StringVar(&flags.imageURL, "image", "", "Public URL of an image to post")
	f.StringVar(&flags.videoURL, "video", "", "Public URL of a video to post")
	f.StringVar(&flags.altText, "alt-text", "", "Alternative text for the image or video")
	f.StringVar(&flags.link, "link", "", "Link attachment for a text post")
	f.StringArrayVar(&flags.children, "child", nil, "Carousel item container id (repeatable)")
	f.StringVar(&flags.replyTo, "reply-to", "", "Id of the post to reply to")
	f.StringVar(&flags.quote, "quote", "", "Id of the post to quote")
	f.StringVar(&flags.topic, "topic", "", "Topic tag")
	f.StringVar(&flags.replyControl, "reply-control", "", "Who can reply (everyone, accounts_you_follow, mentioned_only, parent_post_author_only, followers_only)")
	f.StringSliceVar(&flags.countries, "country", nil, "Restrict visibility to these country codes")
	f.BoolVar(&flags.spoiler, "spoiler", false, "Mark the media as a spoiler")
	f.BoolVar(&flags.ghost, "ghost", false, "Publish as a ghost post")
	f.StringVar(&flags.location, "location", "", "Location id to tag")
	f.StringArrayVar(&flags.poll, "poll", nil, "Poll option (repeat 2 to 4 times)")
	f.BoolVar(&flags.permalink, "permalink", false, "Resolve and print the permalink after publishing")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Validate and print the container plan without posting")
	f.BoolVar(&flags.checkQuota, "check-quota", false, "Refuse to publish when the publishing quota is used up")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "V", false, "Enable debug logging")
	f.SortFlags = false

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.AddCommand(newCompletionCommand())
	cmd.AddCommand(newItemCommand())
	cmd.AddCommand(newQuotaCommand())
	cmd.AddCommand(newServeCommand())

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	message, err := resolveMessage(cmd, args)
	if err != nil {
		return err
	}

	req, err := buildRequest(cmd, cfg, message)
	if err != nil {
		return err
	}

	if flags.dryRun {
		return dryRun(ctx, cmd.OutOrStdout(), req)
	}

	if err := cfg.ValidateForPosting(); err != nil {
		return err
	}

	publisher, client := newPublisher(cfg, nil)
	if flags.checkQuota {
		if err := quotaPreflight(ctx, threads.NewAdvisor(client), req); err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "publishing %s post...\n", req.MediaType)
	result, err := publisher.Compose(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "published %s\n", result.ID)
	if result.Permalink != "" {
		fmt.Fprintln(out, result.Permalink)
	}
	return nil
}

// loadConfig reads the environment and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logutil.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if flags.verbose {
		logutil.SetVerbose(true)
	}
	return cfg, nil
}

func newPublisher(cfg *config.Config, observer threads.Observer) (*threads.Publisher, *graphapi.Client) {
	client := graphapi.New(graphapi.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: "threadpost/" + Version,
	})
	publisher := threads.NewPublisher(client,
		threads.WithValidator(threads.NewValidator(threads.WithProbeTimeout(cfg.ProbeTimeout))),
		threads.WithPollConfig(cfg.Poll.Threads()),
		threads.WithObserver(observer),
	)
	return publisher, client
}

func resolveMessage(cmd *cobra.Command, args []string) (string, error) {
	var message string

	if flags.message != "" {
		message = flags.message
	}

	if len(args) > 0 {
		if message != "" {
			return "", errors.New("provide the text either as an argument or with --message, not both")
		}
		message = strings.Join(args, " ")
	}

	if message != "" {
		return strings.TrimSpace(message), nil
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok {
		info, err := file.Stat()
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if (info.Mode() & os.ModeCharDevice) != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// buildRequest maps the flags onto a PostRequest. Text is optional: media
// posts and carousels can go out without it.
func buildRequest(cmd *cobra.Command, cfg *config.Config, message string) (threads.PostRequest, error) {
	req := threads.PostRequest{
		UserID:                  cfg.UserID,
		AccessToken:             cfg.AccessToken,
		MediaType:               inferMediaType(),
		Text:                    message,
		ImageURL:                strings.TrimSpace(flags.imageURL),
		VideoURL:                strings.TrimSpace(flags.videoURL),
		AltText:                 strings.TrimSpace(flags.altText),
		LinkAttachment:          strings.TrimSpace(flags.link),
		AllowlistedCountryCodes: normalizeCountries(flags.countries),
		ReplyControl:            threads.ReplyControl(strings.ToLower(strings.TrimSpace(flags.replyControl))),
		Children:                flags.children,
		GetPermalink:            flags.permalink,
		ReplyToID:               strings.TrimSpace(flags.replyTo),
		QuotePostID:             strings.TrimSpace(flags.quote),
		TopicTag:                strings.TrimSpace(flags.topic),
		IsGhostPost:             flags.ghost,
		LocationID:              strings.TrimSpace(flags.location),
	}
	if cmd.Flags().Changed("spoiler") {
		spoiler := flags.spoiler
		req.IsSpoilerMedia = &spoiler
	}

	if len(flags.poll) > 0 {
		poll, err := parsePoll(flags.poll)
		if err != nil {
			return threads.PostRequest{}, err
		}
		req.PollAttachment = poll
	}

	if req.MediaType == threads.MediaText && req.Text == "" && req.PollAttachment == nil {
		return threads.PostRequest{}, errors.New("text is required for a text post")
	}
	return req, nil
}

func inferMediaType() threads.MediaType {
	if t := strings.ToUpper(strings.TrimSpace(flags.mediaType)); t != "" {
		return threads.MediaType(t)
	}
	switch {
	case flags.imageURL != "":
		return threads.MediaImage
	case flags.videoURL != "":
		return threads.MediaVideo
	case len(flags.children) > 0:
		return threads.MediaCarousel
	}
	return threads.MediaText
}

func normalizeCountries(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parsePoll(options []string) (*threads.PollAttachment, error) {
	if len(options) < 2 || len(options) > 4 {
		return nil, fmt.Errorf("a poll needs 2 to 4 options, got %d", len(options))
	}
	opts := make([]string, 4)
	for i, o := range options {
		opts[i] = strings.TrimSpace(o)
		if opts[i] == "" {
			return nil, fmt.Errorf("poll option %d is empty", i+1)
		}
	}
	return &threads.PollAttachment{OptionA: opts[0], OptionB: opts[1], OptionC: opts[2], OptionD: opts[3]}, nil
}

// dryRun validates req without probing media URLs and prints the container
// plan. Missing credentials are replaced with placeholders.
func dryRun(ctx context.Context, out io.Writer, req threads.PostRequest) error {
	if req.UserID == "" {
		req.UserID = "me"
	}
	if req.AccessToken == "" {
		req.AccessToken = "dry-run"
	}
	if err := threads.NewValidator(threads.WithoutProbe()).Validate(ctx, req); err != nil {
		return err
	}
	plan, err := threads.BuildPlan(req)
	if err != nil {
		return err
	}
	printPlan(out, plan)
	return nil
}

func printPlan(out io.Writer, plan threads.CreationPlan) {
	fmt.Fprintf(out, "[dry-run] %s post as %s: %d container(s) to create\n", plan.MediaType, plan.Credentials, plan.Steps())
	if plan.Wrapped() {
		fmt.Fprintf(out, "[dry-run] item:  %s\n", plan.Item)
		fmt.Fprintf(out, "[dry-run] outer: %s\n", plan.OuterFor("<item id>"))
	} else {
		fmt.Fprintf(out, "[dry-run] outer: %s\n", plan.Outer)
	}
	fmt.Fprintln(out, "[dry-run] then: wait for FINISHED, publish")
}
