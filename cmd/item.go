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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blacktop/threadpost/internal/threads"
)

type itemFlags struct {
	imageURL string
	videoURL string
	altText  string
}

func newItemCommand() *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Create a carousel item container and print its id",
		Long: "item creates an IMAGE or VIDEO container marked as a carousel item. " +
			"Pass two or more of the printed ids to --child to publish a carousel.",
		Args: cobra.NoArgs,
		Example: `  threadpost item --image https://example.com/a.jpg --alt-text "first"
  threadpost item --video https://example.com/b.mp4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			item, err := f.carouselItem()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForPosting(); err != nil {
				return err
			}
			publisher, _ := newPublisher(cfg, nil)
			id, err := publisher.CreateCarouselItem(ctx, cfg.Credentials(), item)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.imageURL, "image", "", "Public URL of the image")
	cmd.Flags().StringVar(&f.videoURL, "video", "", "Public URL of the video")
	cmd.Flags().StringVar(&f.altText, "alt-text", "", "Alternative text for the item")
	cmd.MarkFlagsMutuallyExclusive("image", "video")
	cmd.MarkFlagsOneRequired("image", "video")
	return cmd
}

func (f itemFlags) carouselItem() (threads.CarouselItem, error) {
	switch {
	case f.imageURL != "" && f.videoURL != "":
		return threads.CarouselItem{}, fmt.Errorf("--image and --video cannot be combined")
	case f.imageURL != "":
		return threads.CarouselItem{MediaType: threads.MediaImage, ImageURL: f.imageURL, AltText: f.altText}, nil
	case f.videoURL != "":
		return threads.CarouselItem{MediaType: threads.MediaVideo, VideoURL: f.videoURL, AltText: f.altText}, nil
	}
	return threads.CarouselItem{}, fmt.Errorf("one of --image or --video is required")
}
