package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect and revoke tokens",
	}
	cmd.AddCommand(newTokensIssuedCmd())
	cmd.AddCommand(newTokensObtainedCmd())
	cmd.AddCommand(newTokensCountCmd())
	cmd.AddCommand(newTokensRevokeCmd())
	return cmd
}

func newTokensIssuedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issued",
		Short: "List live access tokens granted against the user's account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.ListIssuedTokens(asUser)
			if err != nil {
				return err
			}
			for _, it := range list {
				fmt.Printf("%s\t%s\t%s\n", it.Token, it.ConsumerKey, it.ApplicationTitle)
			}
			return nil
		},
	}
}

func newTokensObtainedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "obtained",
		Short: "List live access tokens the user holds on remote servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.ListServerTokens(asUser)
			if err != nil {
				return err
			}
			for _, st := range list {
				fmt.Printf("%s\t%s\t%s%s\n", st.Token, st.ConsumerKey, st.ServerURIHost, st.ServerURIPath)
			}
			return nil
		},
	}
}

func newTokensCountCmd() *cobra.Command {
	var obtained bool
	cmd := &cobra.Command{
		Use:   "count <consumer-key>",
		Short: "Count live access tokens for a consumer key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var (
				n    int
				err2 error
			)
			if obtained {
				n, err2 = s.CountServerTokens(args[0])
			} else {
				n, err2 = s.CountAccessTokens(args[0])
			}
			if err2 != nil {
				return err2
			}
			fmt.Println(n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&obtained, "obtained", false, "Count tokens obtained from a remote server instead of issued ones")
	return cmd
}

func newTokensRevokeCmd() *cobra.Command {
	var serverKey string
	cmd := &cobra.Command{
		Use:   "revoke <token>",
		Short: "Revoke an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if serverKey != "" {
				return s.DeleteServerToken(serverKey, args[0], asUser, asAdmin)
			}
			return s.DeleteAccessToken(args[0], asUser, asAdmin)
		},
	}
	cmd.Flags().StringVar(&serverKey, "server", "", "Treat the token as obtained from this remote server key")
	return cmd
}
