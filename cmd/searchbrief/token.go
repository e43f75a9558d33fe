package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/searchbrief/config"
	"github.com/mohammad-safakhou/searchbrief/internal/runtime"
)

func tokenCMD() *cobra.Command {
	var cfgPath string
	var ttl time.Duration

	var token = &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a development JWT for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			secret, err := runtime.LoadJWTSecret(cfg)
			if err != nil {
				return err
			}
			tok, err := runtime.SignJWT(args[0], secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	token.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return token
}
