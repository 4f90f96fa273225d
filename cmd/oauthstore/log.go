package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tandemlab/oauthstore"
)

func newLogCmd() *cobra.Command {
	var (
		serverKey   string
		serverToken string
		clientKey   string
		clientToken string
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the newest audit log entries visible to the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.ListLog(oauthstore.LogFilter{
				ServerConsumerKey: serverKey,
				ServerToken:       serverToken,
				ClientConsumerKey: clientKey,
				ClientToken:       clientToken,
			}, asUser)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%d\t%s\t%s\t%s\n",
					e.ID, e.Timestamp.Format("2006-01-02 15:04:05"), e.RemoteIP, e.Notes)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverKey, "server-key", "", "Filter on the inbound consumer key")
	cmd.Flags().StringVar(&serverToken, "server-token", "", "Filter on the inbound token")
	cmd.Flags().StringVar(&clientKey, "client-key", "", "Filter on the outbound consumer key")
	cmd.Flags().StringVar(&clientToken, "client-token", "", "Filter on the outbound token")
	return cmd
}
