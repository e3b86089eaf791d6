package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/briefq/client"
	"github.com/mistakeknot/briefq/internal/core"
	"github.com/mistakeknot/briefq/internal/names"
	"github.com/mistakeknot/briefq/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	var (
		name      string
		command   []string
		poll      time.Duration
		heartbeat time.Duration
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker that claims and processes messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if name == "" {
				name = names.Generate()
			}
			if len(command) == 0 {
				return fmt.Errorf("--exec is required")
			}
			if poll == 0 {
				poll = cfg.PollInterval()
			}
			if heartbeat == 0 {
				heartbeat = cfg.HeartbeatInterval()
			}

			ops := &remoteOps{c: client.New(serverURL(cfg), client.WithAPIKey(flagAPIKey))}
			handler := worker.CommandHandler(command[0], command[1:]...)
			w := worker.New(ops, name, handler, poll, heartbeat)
			log.Printf("worker %s polling %s", name, serverURL(cfg))
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "worker identity (default: generated)")
	cmd.Flags().StringSliceVar(&command, "exec", nil, "command to run per message; message JSON on stdin, result on stdout")
	cmd.Flags().DurationVar(&poll, "poll", 0, "poll interval (default: from config)")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 0, "heartbeat interval (default: from config)")
	return cmd
}

// remoteOps adapts the HTTP client to the worker's Operations interface.
type remoteOps struct {
	c *client.Client
}

func (r *remoteOps) Claim(ctx context.Context, agentID string) (*core.Message, error) {
	msg, err := r.c.Claim(ctx, agentID)
	if err != nil || msg == nil {
		return nil, err
	}
	return toCore(msg), nil
}

func (r *remoteOps) Progress(ctx context.Context, id, state string) (*core.Message, error) {
	msg, err := r.c.Progress(ctx, id, state)
	if err != nil || msg == nil {
		return nil, err
	}
	return toCore(msg), nil
}

func (r *remoteOps) Complete(ctx context.Context, id, result string) (*core.Message, error) {
	msg, err := r.c.Complete(ctx, id, result)
	if err != nil || msg == nil {
		return nil, err
	}
	return toCore(msg), nil
}

func (r *remoteOps) Fail(ctx context.Context, id, errMsg string) (*core.Message, error) {
	msg, err := r.c.Fail(ctx, id, errMsg)
	if err != nil || msg == nil {
		return nil, err
	}
	return toCore(msg), nil
}

func (r *remoteOps) Heartbeat(ctx context.Context, agentID, activeMessageID string) (core.Agent, error) {
	agent, err := r.c.Heartbeat(ctx, agentID, activeMessageID)
	if err != nil {
		return core.Agent{}, err
	}
	last, _ := time.Parse(time.RFC3339Nano, agent.LastHeartbeat)
	return core.Agent{ID: agent.ID, ActiveMessageID: agent.ActiveMessageID, LastHeartbeat: last}, nil
}

func toCore(m *client.Message) *core.Message {
	createdAt, _ := time.Parse(time.RFC3339Nano, m.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, m.UpdatedAt)
	return &core.Message{
		ID:         m.ID,
		Date:       m.Date,
		From:       m.From,
		Subject:    m.Subject,
		Body:       m.Body,
		ReplyRef:   m.ReplyRef,
		Status:     core.Status(m.Status),
		AgentID:    m.AgentID,
		AgentState: m.AgentState,
		Result:     m.Result,
		Error:      m.Error,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}
