package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/config"
	"github.com/young1lin/chatbridge/internal/handler"
	"github.com/young1lin/chatbridge/internal/search"
	"github.com/young1lin/chatbridge/internal/tools"
	"github.com/young1lin/chatbridge/internal/websearch"
	"github.com/young1lin/chatbridge/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile string
	port    int
	showVer bool
)

var rootCmd = &cobra.Command{
	Use:   "chatbridge",
	Short: "Tool bridge and conversation post-processing for chat models",
	Long: `chatbridge connects a chat model to MCP tool servers and web search,
and derives conversation titles and icons from model output.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVer {
			fmt.Printf("chatbridge %s (built %s)\n", Version, BuildDate)
			return nil
		}
		return cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		// Override config with command line flags
		if port > 0 {
			cfg.Server.Port = port
		}

		logger.Info("starting server",
			zap.String("version", Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)
		return startServer(cmd.Context(), cfg)
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and call tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the function definitions offered to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return printJSON(a.registry.Definitions(cmd.Context()))
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <name> [arguments-json]",
	Short: "Call a tool and print its folded output",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		var opts []tools.RegistryOption
		if !cfg.Tools.SkipConfirmation {
			opts = append(opts, tools.WithConfirmer(promptConfirmer))
		}
		a, err := newApp(cmd.Context(), cfg, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		tool, ok := a.registry.Find(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("tool not found: %s", args[0])
		}
		var arguments string
		if len(args) == 2 {
			arguments = args[1]
		}
		out, err := a.registry.Perform(cmd.Context(), tool, arguments)
		if err != nil {
			return err
		}
		fmt.Println(out.Text)
		if n := len(out.ImageAttachments) + len(out.AudioAttachments); n > 0 {
			fmt.Fprintf(os.Stderr, "%d attachment(s) omitted\n", n)
		}
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <conversation-id>",
	Short: "Generate a title and icon for a stored conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		conv, err := a.renamer.UpdateTitleAndIcon(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", conv.Icon, conv.Title)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the web and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		statuses := make(chan websearch.Status)
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			for s := range statuses {
				fmt.Fprintf(os.Stderr, "\r%3.0f%%  sources %d/%d  websites %d",
					s.ProcessProgress*100, s.CurrentSource, s.NumberOfSource, s.NumberOfWebsites)
			}
		}()
		result, err := a.search.Search(cmd.Context(), strings.Join(args, " "), statuses)
		close(statuses)
		<-printed
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		fmt.Print(search.FormatResults(result))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.Flags().BoolVarP(&showVer, "version", "v", false, "show version")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")

	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
	rootCmd.AddCommand(serveCmd, toolsCmd, renameCmd, searchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// promptConfirmer asks on the terminal before a tool runs
func promptConfirmer(_ context.Context, _ tools.Tool, prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s\n\nAllow? [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func startServer(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	h := handler.New(handler.Deps{
		Registry: a.registry,
		Store:    a.store,
		Runner:   a.runner,
		Renamer:  a.renamer,
		Search:   a.search,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
