package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server liveness and version",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var agentCardCmd = &cobra.Command{
	Use:   "agent-card",
	Short: "Print the server's agent card",
	Args:  cobra.NoArgs,
	RunE:  runAgentCard,
}

func runHealth(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.client.Health(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), h)
	}
	uptime := time.Duration(h.Uptime * float64(time.Second)).Round(time.Second)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s  version %s  up %s\n",
		colorGreen.Sprint("●"), h.Status, h.Version, uptime)
	return nil
}

func runAgentCard(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	card, err := s.client.AgentCard(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), card)
}
