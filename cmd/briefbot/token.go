package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/briefbot/config"
	"github.com/mohammad-safakhou/briefbot/internal/runtime"
)

// tokenCMD mints an ops JWT for the protected endpoints.
func tokenCMD() *cobra.Command {
	var cfgPath string
	var subject string
	var ttl time.Duration

	var token = &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for the ops endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if cfg.Ops.JWTSecret == "" {
				return fmt.Errorf("ops.jwt_secret not configured")
			}
			tok, err := runtime.SignJWT(subject, []byte(cfg.Ops.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	token.Flags().StringVar(&subject, "subject", "ops", "token subject")
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	token.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return token
}
