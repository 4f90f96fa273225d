package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tandemlab/oauthstore"
)

func newConsumersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consumers",
		Short: "Manage consumers registered with this installation",
	}
	cmd.AddCommand(newConsumersListCmd())
	cmd.AddCommand(newConsumersAddCmd())
	cmd.AddCommand(newConsumersGetCmd())
	cmd.AddCommand(newConsumersRmCmd())
	cmd.AddCommand(newConsumersStaticCmd())
	return cmd
}

func newConsumersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List consumers visible to the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.ListConsumers(asUser)
			if err != nil {
				return err
			}
			for _, c := range list {
				owner := "public"
				if c.UserID != nil {
					owner = fmt.Sprintf("user %d", *c.UserID)
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", c.ConsumerKey, c.Status, owner, c.ApplicationTitle)
			}
			return nil
		},
	}
}

func newConsumersAddCmd() *cobra.Command {
	var (
		name       string
		email      string
		title      string
		descr      string
		appURI     string
		callback   string
		commercial bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new consumer and print its key and secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			key, err := s.UpsertConsumer(&oauthstore.ConsumerUpdate{
				RequesterName:         name,
				RequesterEmail:        email,
				ApplicationTitle:      title,
				ApplicationDescr:      descr,
				ApplicationURI:        appURI,
				CallbackURI:           callback,
				ApplicationCommercial: commercial,
			}, asUser, asAdmin)
			if err != nil {
				return err
			}
			c, err := s.GetConsumer(key, asUser, asAdmin)
			if err != nil {
				return err
			}
			fmt.Printf("consumer_key:    %s\n", c.ConsumerKey)
			fmt.Printf("consumer_secret: %s\n", c.ConsumerSecret)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "requester-name", "", "Name of the person requesting the key")
	cmd.Flags().StringVar(&email, "requester-email", "", "Email of the person requesting the key")
	cmd.Flags().StringVar(&title, "title", "", "Application title")
	cmd.Flags().StringVar(&descr, "descr", "", "Application description")
	cmd.Flags().StringVar(&appURI, "uri", "", "Application URI")
	cmd.Flags().StringVar(&callback, "callback", "", "OAuth callback URI")
	cmd.Flags().BoolVar(&commercial, "commercial", false, "Mark the application as commercial")
	return cmd
}

func newConsumersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <consumer-key>",
		Short: "Show one consumer registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := s.GetConsumer(args[0], asUser, asAdmin)
			if err != nil {
				return err
			}
			fmt.Printf("consumer_key:    %s\n", c.ConsumerKey)
			fmt.Printf("consumer_secret: %s\n", c.ConsumerSecret)
			fmt.Printf("enabled:         %v\n", c.Enabled)
			fmt.Printf("status:          %s\n", c.Status)
			fmt.Printf("title:           %s\n", c.ApplicationTitle)
			fmt.Printf("requester:       %s <%s>\n", c.RequesterName, c.RequesterEmail)
			fmt.Printf("issued:          %s\n", c.IssueDate.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newConsumersRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <consumer-key>",
		Short: "Delete a consumer registration and its tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.DeleteConsumer(args[0], asUser, asAdmin)
		},
	}
}

func newConsumersStaticCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "static",
		Short: "Print the shared installation key, creating it when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			key, err := s.StaticConsumer()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
}
