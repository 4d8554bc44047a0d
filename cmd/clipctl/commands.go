package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	"github.com/veranemoloko/clip-downloader/internal/service"
)

var (
	mark      string
	secUserID string
	text      string
	earliest  string
	latest    string
	mixID     string
	detailID  string
	paging    domain.Paging
)

func addPagingFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&paging.Cursor, "cursor", 0, "cursor of the first page")
	cmd.Flags().IntVar(&paging.Count, "count", 0, "items per page (0 uses the platform default)")
	cmd.Flags().IntVar(&paging.Pages, "pages", 0, "page limit (0 uses CD_MAX_PAGES)")
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&earliest, "earliest", "", "earliest publish date, e.g. 2024-01-01 or an epoch")
	cmd.Flags().StringVar(&latest, "latest", "", "latest publish date, inclusive")
}

var shareCmd = &cobra.Command{
	Use:   "share <text>",
	Short: "Download whatever a share text points at",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := domain.ShareRequest{
			Text:       strings.Join(args, " "),
			Mark:       mark,
			Paging:     paging,
			Connection: connection(),
		}
		return runOutcome(cmd, req, (*service.Orchestrator).DownloadShare)
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite",
	Short: "Download an account's liked works",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := accountRequest(domain.TabFavorite)
		if err != nil {
			return err
		}
		return runOutcome(cmd, req, (*service.Orchestrator).DownloadFavorite)
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Download an account's published works",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := accountRequest(domain.TabPost)
		if err != nil {
			return err
		}
		return runOutcome(cmd, req, (*service.Orchestrator).DownloadAccount)
	},
}

func accountRequest(tab domain.Tab) (domain.AccountRequest, error) {
	lo, err := domain.ParseDateBound(earliest)
	if err != nil {
		return domain.AccountRequest{}, err
	}
	hi, err := domain.ParseDateBound(latest)
	if err != nil {
		return domain.AccountRequest{}, err
	}
	return domain.AccountRequest{
		Text:       text,
		SecUserID:  secUserID,
		Tab:        tab,
		Mark:       mark,
		Earliest:   lo,
		Latest:     hi,
		Paging:     paging,
		Connection: connection(),
	}, nil
}

var mixCmd = &cobra.Command{
	Use:   "mix",
	Short: "Download a collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := domain.MixRequest{
			MixID:      mixID,
			DetailID:   detailID,
			Text:       text,
			Mark:       mark,
			Paging:     paging,
			Connection: connection(),
		}
		return runOutcome(cmd, req, (*service.Orchestrator).DownloadMix)
	},
}

var detailCmd = &cobra.Command{
	Use:   "detail <id>...",
	Short: "Download individual works by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := domain.DetailRequest{DetailIDs: args, Connection: connection()}
		return runOutcome(cmd, req, (*service.Orchestrator).DownloadDetail)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <text>",
	Short: "Print the canonical URL behind a share text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := domain.ResolveRequest{Text: strings.Join(args, " "), Proxy: proxyURL}
		return runOutcome(cmd, req, (*service.Orchestrator).ResolveShare)
	},
}

func init() {
	shareCmd.Flags().StringVar(&mark, "mark", "", "folder label")
	addPagingFlags(shareCmd)

	for _, c := range []*cobra.Command{favoriteCmd, accountCmd} {
		c.Flags().StringVar(&secUserID, "sec-user-id", "", "account sec_user_id")
		c.Flags().StringVar(&text, "text", "", "share text containing an account link")
		c.Flags().StringVar(&mark, "mark", "", "folder label")
		addRangeFlags(c)
		addPagingFlags(c)
	}

	mixCmd.Flags().StringVar(&mixID, "mix-id", "", "collection id")
	mixCmd.Flags().StringVar(&detailID, "detail-id", "", "id of a work in the collection")
	mixCmd.Flags().StringVar(&text, "text", "", "share text containing collection or work links")
	mixCmd.Flags().StringVar(&mark, "mark", "", "folder label")
	addPagingFlags(mixCmd)
}
