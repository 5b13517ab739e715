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
	"io"

	"github.com/spf13/cobra"

	"github.com/blacktop/threadpost/internal/logutil"
	"github.com/blacktop/threadpost/internal/threads"
)

func newQuotaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show the account's publishing quota usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForPosting(); err != nil {
				return err
			}
			_, client := newPublisher(cfg, nil)
			snap, err := threads.NewAdvisor(client).CurrentUsage(ctx, cfg.Credentials())
			if err != nil {
				return err
			}
			printQuota(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func printQuota(out io.Writer, snap threads.QuotaSnapshot) {
	rows := []struct {
		name  string
		usage threads.QuotaUsage
	}{
		{"posts", snap.Post},
		{"replies", snap.Reply},
		{"deletes", snap.Delete},
		{"location searches", snap.LocationSearch},
	}
	for _, r := range rows {
		if r.usage.Total == 0 {
			fmt.Fprintf(out, "%-18s %d used (no limit reported)\n", r.name+":", r.usage.Usage)
			continue
		}
		fmt.Fprintf(out, "%-18s %d/%d used, %d remaining per %s\n",
			r.name+":", r.usage.Usage, r.usage.Total, r.usage.Remaining(), r.usage.Window)
	}
}

// quotaPreflight fails when the quota req draws on is used up. An unreadable
// quota only warns; the publish call reports the real limit.
func quotaPreflight(ctx context.Context, advisor *threads.Advisor, req threads.PostRequest) error {
	snap, err := advisor.CurrentUsage(ctx, req.Credentials())
	if err != nil {
		logutil.Warnf("skipping quota check: %v", err)
		return nil
	}
	if snap.Allows(req) {
		return nil
	}
	name, usage := "post", snap.Post
	if req.ReplyToID != "" {
		name, usage = "reply", snap.Reply
	}
	return fmt.Errorf("%s quota exhausted: %d/%d used per %s", name, usage.Usage, usage.Total, usage.Window)
}
