package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/joinpass/internal/zoom"
)

func newVerifyCmd() *cobra.Command {
	var (
		zf         zoomFlags
		fresh      bool
		decodeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Check a Zoom SDK join token",
		Long: `Decode a Zoom Meeting SDK join token and check its signature against the
configured SDK key and secret. With --fresh the token must also lie within the
validity window. With --decode-only the fields are printed without any check
and no secret is needed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := args[0]

			var (
				claims *zoom.Claims
				err    error
			)
			if decodeOnly {
				claims, err = zoom.Decode(token)
			} else {
				claims, err = verifyToken(cmd, &zf, token, fresh)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*zoom.Claims
				IssuedAt string `json:"issued_at"`
				Verified bool   `json:"verified"`
			}{
				Claims:   claims,
				IssuedAt: claims.IssuedAt().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
				Verified: !decodeOnly,
			})
		},
	}

	zf.register(cmd)
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Also reject tokens outside the validity window")
	cmd.Flags().BoolVar(&decodeOnly, "decode-only", false, "Print the token fields without checking the signature")

	return cmd
}

func verifyToken(cmd *cobra.Command, zf *zoomFlags, token string, fresh bool) (*zoom.Claims, error) {
	if err := zf.loadEnv(cmd); err != nil {
		return nil, err
	}
	cfg, err := zf.config()
	if err != nil {
		return nil, err
	}
	issuer, err := zoom.NewIssuer(cfg)
	if err != nil {
		return nil, err
	}
	if fresh {
		claims, err := issuer.VerifyFresh(token)
		if err != nil {
			return nil, fmt.Errorf("token rejected: %w", err)
		}
		return claims, nil
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("token rejected: %w", err)
	}
	return claims, nil
}
