package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"Aarogya/middleware"
	"Aarogya/pkg/client"
	"Aarogya/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
	query     string
	tokenTTL  time.Duration
	interval  time.Duration

	rootCmd = &cobra.Command{
		Use:   "chat",
		Short: "Talk to the Aarogya medical assistant from the terminal",
		Long: `chat manages your Aarogya conversations and sends prompts to the
assistant. Set AAROGYA_TOKEN (or --token) to a session token issued by
your identity provider, or run "chat token" against a development server.`,
		SilenceUsage: true,
	}

	tokenCmd = &cobra.Command{
		Use:   "token [user-id]",
		Short: "Mint a development session token signed with JWT_SECRET_KEY",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	}
	listCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		RunE:    runList,
	}
	newCmd = &cobra.Command{
		Use:   "new [name]",
		Short: "Create a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runNew,
	}
	showCmd = &cobra.Command{
		Use:   "show [conversation-id]",
		Short: "Print every message in a conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	sendCmd = &cobra.Command{
		Use:   "send [conversation-id] [prompt...]",
		Short: "Send one prompt and print the reply",
		Long:  `Send one prompt. Use "-" as the conversation id to start a new conversation.`,
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSend,
	}
	renameCmd = &cobra.Command{
		Use:   "rename [conversation-id] [name...]",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runRename,
	}
	deleteCmd = &cobra.Command{
		Use:     "delete [conversation-id]",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE:    runDelete,
	}
	deleteAllCmd = &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every conversation you own",
		RunE:  runDeleteAll,
	}
	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current session token",
		RunE:  runLogout,
	}
	replCmd = &cobra.Command{
		Use:   "repl [conversation-id]",
		Short: "Interactive chat; replies are revealed word by word",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRepl,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("AAROGYA_URL", "http://localhost:5000"), "base URL of the chat service")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("AAROGYA_TOKEN"), "session token")
	rootCmd.PersistentFlags().DurationVar(&interval, "reveal-interval", 60*time.Millisecond, "delay between revealed words")
	listCmd.Flags().StringVarP(&query, "query", "q", "", "only conversations whose name contains this text")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(tokenCmd, listCmd, newCmd, showCmd, sendCmd, renameCmd, deleteCmd, deleteAllCmd, logoutCmd, replCmd)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// newSession builds a signed-in session from --token.
func newSession(opts ...client.Option) (*client.Session, error) {
	if token == "" {
		return nil, errors.New("no session token; pass --token or set AAROGYA_TOKEN")
	}
	// the server verifies the signature, the client only needs the subject
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	s := client.NewSession(client.NewHTTPClient(serverURL, token), append([]client.Option{client.WithRevealInterval(interval)}, opts...)...)
	s.SignIn(claims.Subject)
	return s, nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.IsProduction {
			return errors.New("JWT_SECRET_KEY is not set")
		}
		secret = config.DevJWTSecret
	}
	tok, err := middleware.MintToken(secret, cfg.JWTIssuer, args[0], tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	if err := s.Refresh(cmd.Context(), query); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	list := s.List()
	if len(list) == 0 {
		fmt.Fprintln(out, "no conversations")
		return nil
	}
	for _, c := range list {
		fmt.Fprintf(out, "%s  %-32s  %3d msgs  %s\n", c.ID, c.Name, c.MessagesCount, c.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func runNew(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	c, err := s.NewConversation(cmd.Context(), name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", c.ID, c.Name)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	if err := s.Select(cmd.Context(), args[0]); err != nil {
		return err
	}
	c := s.Active()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s\n\n", c.Name)
	for _, m := range c.Messages {
		fmt.Fprintf(out, "[%s] %s\n\n", m.Role, m.Content)
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	w := newRevealWriter(cmd.OutOrStdout())
	s, err := newSession(client.WithNotifier(w.onEvent))
	if err != nil {
		return err
	}
	w.session = s
	if args[0] != "-" {
		if err := s.Select(cmd.Context(), args[0]); err != nil {
			return err
		}
	}
	return sendAndWait(cmd.Context(), s, w, strings.Join(args[1:], " "))
}

func sendAndWait(ctx context.Context, s *client.Session, w *revealWriter, prompt string) error {
	w.reset()
	p, err := s.Send(ctx, prompt)
	if err != nil {
		return err
	}
	p.Wait()
	w.finish()
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	name := strings.Join(args[1:], " ")
	if err := s.Rename(cmd.Context(), args[0], name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %q\n", args[0], name)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	if err := s.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func runDeleteAll(cmd *cobra.Command, _ []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	n, err := s.DeleteAll(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d conversations\n", n)
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	if err := s.SignOut(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "session revoked")
	return nil
}
