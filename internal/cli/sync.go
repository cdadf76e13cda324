package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"ContractsOrchestrator/internal/app"
	"ContractsOrchestrator/internal/usecase"
)

type syncFlags struct {
	postedFrom string
	postedTo   string
	keywords   string
	naics      string
	state      string
	limit      int
	offset     int
}

func (f syncFlags) request(cmd *cobra.Command) usecase.SyncRequest {
	req := usecase.SyncRequest{
		PostedFrom: f.postedFrom,
		PostedTo:   f.postedTo,
		Keywords:   f.keywords,
		NAICS:      f.naics,
		State:      f.state,
	}
	if cmd.Flags().Changed("limit") {
		limit := f.limit
		req.Limit = &limit
	}
	if cmd.Flags().Changed("offset") {
		offset := f.offset
		req.Offset = &offset
	}
	return req
}

func newSyncCmd(flags *GlobalFlags) *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch one page of SAM.gov opportunities and upsert it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = application.Close(context.Background()) }()

			res, err := application.SyncOnce(ctx, f.request(cmd))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Total    int `json:"total"`
				Received int `json:"received"`
			}{Total: res.Total, Received: len(res.Items)})
		},
	}
	cmd.Flags().StringVar(&f.postedFrom, "posted-from", "", "window start (YYYY-MM-DD or MM/DD/YYYY); default 29 days ago")
	cmd.Flags().StringVar(&f.postedTo, "posted-to", "", "window end; default today")
	cmd.Flags().StringVar(&f.keywords, "keywords", "", "title keywords")
	cmd.Flags().StringVar(&f.naics, "naics", "", "NAICS code")
	cmd.Flags().StringVar(&f.state, "state", "", "place of performance state")
	cmd.Flags().IntVar(&f.limit, "limit", 50, "page size (1-1000)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "page offset")
	return cmd
}
