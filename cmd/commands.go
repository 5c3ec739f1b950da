package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tax-rag/internal/api/handlers"
	"tax-rag/internal/chat"
	"tax-rag/internal/helper"
	"tax-rag/internal/server"
	"tax-rag/internal/tui"
	"tax-rag/internal/watcher"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides server.port)")
	cmd.Flags().String("watch-dir", "", "Ingest documents written to this directory")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)
	defer a.Close()

	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	pipeline, err := a.pipeline(store)
	if err != nil {
		return err
	}
	ing, err := a.ingester(ctx, store)
	if err != nil {
		return err
	}

	if dir, _ := cmd.Flags().GetString("watch-dir"); dir != "" {
		if err := ing.EnsureCollection(ctx); err != nil {
			return err
		}
		w, err := watcher.New(ing, 0)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer w.Close()
		go func() {
			if err := w.Run(ctx, dir); err != nil {
				log.Error().Err(err).Str("dir", dir).Msg("Watcher stopped")
			}
		}()
	}

	router := server.NewRouter(server.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RAGHandler:     handlers.NewRAGHandler(pipeline, ing),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited")
	return nil
}

func populateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "populate [files...]",
		Short: "Ingest the given files, or populate.files from the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a := newApp(cfg)
			defer a.Close()

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			ing, err := a.ingester(ctx, store)
			if err != nil {
				return err
			}

			result, err := ing.Populate(ctx, args)
			if result != nil {
				helper.PrettyPrint(result)
			}
			return err
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a := newApp(cfg)
			defer a.Close()

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			ing, err := a.ingester(ctx, store)
			if err != nil {
				return err
			}
			if err := ing.EnsureCollection(ctx); err != nil {
				return err
			}

			n, err := ing.IngestFile(ctx, args[0])
			log.Info().Str("file", args[0]).Int("ingested", n).Msg("Ingest finished")
			return err
		},
	}
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the statutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a := newApp(cfg)
			defer a.Close()

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			pipeline, err := a.pipeline(store)
			if err != nil {
				return err
			}

			resp, err := pipeline.Query(ctx, args[0])
			if err != nil {
				return err
			}

			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				helper.PrettyPrint(resp)
				return nil
			}
			fmt.Printf("%s\n", resp.Content)
			return nil
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "Print the plan and passages with the answer")
	return cmd
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// the TUI owns the terminal, logs go to a file
			logFile, err := os.OpenFile("tax-rag-chat.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer logFile.Close()
			setupLogger(cfg.Log, logFile)

			ctx := cmd.Context()
			a := newApp(cfg)
			defer a.Close()

			var conversation chat.Conversation
			title := "Chat"
			if useRAG, _ := cmd.Flags().GetBool("rag"); useRAG {
				store, err := a.store(ctx)
				if err != nil {
					return err
				}
				pipeline, err := a.pipeline(store)
				if err != nil {
					return err
				}
				conversation = chat.NewRAGSession(pipeline)
				title = "Tanya Jawab Peraturan Pajak"
			} else {
				llm, err := a.llm()
				if err != nil {
					return err
				}
				conversation = chat.NewSession(llm)
			}

			_, err = tea.NewProgram(tui.New(ctx, conversation, title), tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().Bool("rag", false, "Answer from the statutes instead of free chat")
	return cmd
}
