package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/briefq/client"
)

func newSubmitCmd() *cobra.Command {
	var date, from, subject, body, replyRef string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Enqueue a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c := client.New(serverURL(cfg), client.WithAPIKey(flagAPIKey))
			msg, err := c.Submit(context.Background(), client.Message{
				Date:     date,
				From:     from,
				Subject:  subject,
				Body:     body,
				ReplyRef: replyRef,
			})
			if err != nil {
				return err
			}
			fmt.Printf("submitted %s (%s)\n", msg.ID, msg.Date)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "briefing date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&from, "from", "", "sender name")
	cmd.Flags().StringVar(&subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&body, "body", "", "message body")
	cmd.Flags().StringVar(&replyRef, "reply-to", "", "referenced message id")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a date's queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			}
			c := client.New(serverURL(cfg), client.WithAPIKey(flagAPIKey))
			msgs, err := c.Messages(context.Background(), date)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Printf("no messages for %s\n", date)
				return nil
			}
			counts := map[string]int{}
			for _, m := range msgs {
				counts[m.Status]++
				owner := ""
				if m.AgentID != "" {
					owner = " @" + m.AgentID
				}
				detail := ""
				switch {
				case m.AgentState != "":
					detail = " (" + m.AgentState + ")"
				case m.Error != "":
					detail = " (" + m.Error + ")"
				}
				fmt.Printf("%-10s %s  %s%s%s\n", m.Status, m.ID, m.Subject, owner, detail)
			}
			fmt.Printf("%d total: %d pending, %d in progress, %d completed, %d failed\n",
				len(msgs), counts["pending"], counts["claimed"]+counts["processing"],
				counts["completed"], counts["failed"])
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "briefing date YYYY-MM-DD (default: today)")
	return cmd
}

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List agents with a recent heartbeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c := client.New(serverURL(cfg), client.WithAPIKey(flagAPIKey))
			agents, err := c.Agents(context.Background())
			if err != nil {
				return err
			}
			if len(agents) == 0 {
				fmt.Println("no active agents")
				return nil
			}
			for _, a := range agents {
				if a.ActiveMessageID == "" {
					fmt.Printf("%s  idle  (heartbeat %s)\n", a.ID, a.LastHeartbeat)
				} else {
					fmt.Printf("%s  working on %s  (heartbeat %s)\n", a.ID, a.ActiveMessageID, a.LastHeartbeat)
				}
			}
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	var agent string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream queue events to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if agent == "" {
				agent = "watch"
			}
			ctx := cmd.Context()
			wsc := client.NewWSClient(serverURL(cfg), agent, client.WithWSAPIKey(flagAPIKey))
			wsc.OnEvent(func(e client.Event) {
				switch {
				case e.Message != nil:
					fmt.Printf("%s  %s  %s\n", e.Type, e.Message.ID, e.Message.Subject)
				case e.Agent != nil:
					fmt.Printf("%s  %s\n", e.Type, e.Agent.ID)
				default:
					fmt.Println(e.Type)
				}
			})
			if err := wsc.Connect(ctx); err != nil {
				return err
			}
			defer wsc.Close()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "subscribe as this agent (default: watch)")
	return cmd
}
