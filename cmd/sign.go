package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/joinpass/internal/session"
	"github.com/teemow/joinpass/internal/zoom"
)

func newSignCmd() *cobra.Command {
	var (
		zf            zoomFlags
		meetingNumber string
		role          string
		tokenOnly     bool
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Issue a Zoom SDK join token",
		Long: `Sign a Zoom Meeting SDK join token for an existing meeting with the
configured SDK key and secret. No rate limit applies; use it for testing and
scripting.`,
		Example: `  ZOOM_SDK_KEY=abc ZOOM_SDK_SECRET_FILE=/run/secrets/zoom joinpass sign --meeting-number 85746065432 --role host`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := zf.loadEnv(cmd); err != nil {
				return err
			}
			cfg, err := zf.config()
			if err != nil {
				return err
			}
			issuer, err := zoom.NewIssuer(cfg)
			if err != nil {
				return err
			}

			r, err := session.ParseRole(role)
			if err != nil {
				return err
			}
			cred, err := issuer.Issue(meetingNumber, r)
			if err != nil {
				return err
			}

			if tokenOnly {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), cred.Token)
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cred)
		},
	}

	zf.register(cmd)
	cmd.Flags().StringVar(&meetingNumber, "meeting-number", "", fmt.Sprintf("Zoom meeting number (up to %d digits, spaces are ignored)", session.MaxMeetingNumberLen))
	cmd.Flags().StringVar(&role, "role", "participant", "Role: host or participant")
	cmd.Flags().BoolVar(&tokenOnly, "token-only", false, "Print only the encoded token")
	_ = cmd.MarkFlagRequired("meeting-number")

	return cmd
}
