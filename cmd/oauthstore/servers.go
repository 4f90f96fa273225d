package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tandemlab/oauthstore"
)

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage remote OAuth servers this installation calls",
	}
	cmd.AddCommand(newServersListCmd())
	cmd.AddCommand(newServersAddCmd())
	cmd.AddCommand(newServersRmCmd())
	cmd.AddCommand(newServersResolveCmd())
	return cmd
}

func newServersListCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List server registrations visible to the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.ListServers(search, asUser)
			if err != nil {
				return err
			}
			for _, srv := range list {
				owner := "public"
				if srv.UserID != nil {
					owner = fmt.Sprintf("user %d", *srv.UserID)
				}
				fmt.Printf("%s\t%s\t%s\n", srv.ConsumerKey, srv.ServerURI, owner)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Substring filter on key, URI, host or path")
	return cmd
}

func newServersAddCmd() *cobra.Command {
	var (
		key     string
		secret  string
		uri     string
		reqURI  string
		authURI string
		accURI  string
		methods string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a remote OAuth server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var sigMethods []string
			for _, m := range strings.Split(methods, ",") {
				if m = strings.TrimSpace(m); m != "" {
					sigMethods = append(sigMethods, m)
				}
			}
			_, err = s.UpsertServer(&oauthstore.ServerUpdate{
				ConsumerKey:      key,
				ConsumerSecret:   secret,
				ServerURI:        uri,
				RequestTokenURI:  reqURI,
				AuthorizeURI:     authURI,
				AccessTokenURI:   accURI,
				SignatureMethods: sigMethods,
			}, asUser, asAdmin)
			return err
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Consumer key issued by the remote server")
	cmd.Flags().StringVar(&secret, "secret", "", "Consumer secret issued by the remote server")
	cmd.Flags().StringVar(&uri, "uri", "", "Base URI covered by this registration")
	cmd.Flags().StringVar(&reqURI, "request-token-uri", "", "Request token endpoint")
	cmd.Flags().StringVar(&authURI, "authorize-uri", "", "Authorization endpoint")
	cmd.Flags().StringVar(&accURI, "access-token-uri", "", "Access token endpoint")
	cmd.Flags().StringVar(&methods, "signature-methods", "HMAC-SHA1", "Comma-separated signature methods")
	return cmd
}

func newServersRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <consumer-key>",
		Short: "Delete a server registration and its obtained tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.DeleteServer(args[0], asUser, asAdmin)
		},
	}
}

func newServersResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <uri>",
		Short: "Show which registration would sign a request to the URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			srv, err := s.ServerForURI(args[0], asUser)
			if err != nil {
				return err
			}
			fmt.Printf("consumer_key: %s\n", srv.ConsumerKey)
			fmt.Printf("server_uri:   %s\n", srv.ServerURI)
			fmt.Printf("matched path: %s%s\n", srv.ServerURIHost, srv.ServerURIPath)
			return nil
		},
	}
}
