package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jask/ledgerchat/internal/api"
	"github.com/jask/ledgerchat/internal/chat"
	"github.com/jask/ledgerchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat screen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		assistant, err := e.assistant()
		if err != nil {
			return err
		}
		return tui.Run(cmd.Context(), assistant, e.store)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		assistant, err := e.assistant()
		if err != nil {
			return err
		}

		reply, err := assistant.Ask(cmd.Context(), strings.Join(args, " "), chat.NewSession())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, reply.Text)
		printTransactions(out, reply.Transactions, 10)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the budget REST API and the chat WebSocket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		assistant, err := e.assistant()
		if err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = e.cfg.Server.Addr
		}
		handler := api.NewHandler(e.store, assistant, api.Options{
			MaxTransactions: e.cfg.Chat.MaxTransactions,
			Logger:          e.log,
		})
		return api.Serve(cmd.Context(), addr, handler, e.log)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(chatCmd, askCmd, serveCmd)
}
