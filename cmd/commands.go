package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/pkg/ingest"
	"github.com/xhad/mmrag/pkg/rag"
	"github.com/xhad/mmrag/pkg/retriever"
	"github.com/xhad/mmrag/server"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>",
		Short: "Index a file or every supported file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			var opts []rag.Option
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				bar := getProgressBar(ingest.CountFiles(path), "Ingesting "+filepath.Base(path))
				defer bar.Finish()
				opts = append(opts, rag.WithProgress(func(p string) {
					bar.Describe(color.BlueString("Ingesting %s", filepath.Base(p)))
					_ = bar.Add(1)
				}))
			}

			p, err := openPipeline(ctx, false, opts...)
			if err != nil {
				return err
			}
			defer p.Close()

			report, err := p.Ingest(ctx, path)
			if report != nil {
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}
}

func newIngestYTCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-yt <url>",
		Short: "Index the transcript of a YouTube video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openPipeline(ctx, false)
			if err != nil {
				return err
			}
			defer p.Close()

			spinner := getSpinner(" Fetching transcript...")
			res, err := p.IngestYouTube(ctx, args[0])
			_ = spinner.Finish()
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}
}

func newAskCmd() *cobra.Command {
	var (
		topK        int
		only        string
		file        string
		urlContains string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := retriever.ScopeFromOnly(only, file, urlContains)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := openPipeline(ctx, false)
			if err != nil {
				return err
			}
			defer p.Close()

			answer, err := p.Ask(ctx, args[0], topK, scope)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), answer)
		},
	}
	cmd.Flags().IntVar(&topK, "top_k", retriever.DefaultTopK, "Number of chunks to retrieve")
	cmd.Flags().StringVar(&only, "only", retriever.OnlyAll, "Restrict to all, audio, video, images or youtube")
	cmd.Flags().StringVar(&file, "file", "", "Only use chunks whose path contains this text")
	cmd.Flags().StringVar(&urlContains, "url_contains", "", "Only use chunks whose URL contains this text")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <doc_id>",
		Aliases: []string{"rm"},
		Short:   "Delete every chunk of a document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openPipeline(ctx, false)
			if err != nil {
				return err
			}
			defer p.Close()

			n := p.Delete(ctx, args[0])
			return printJSON(cmd.OutOrStdout(), server.DeleteResult{DocID: args[0], Deleted: n})
		},
	}
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			p, err := rag.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			return server.NewWSServer(p, server.Config{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				IngestRoot:     cfg.Server.IngestRoot,
			}).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr, :8080)")
	return cmd
}

func newChatCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openPipeline(ctx, false)
			if err != nil {
				return err
			}
			defer p.Close()

			color.Cyan("\nChat with your knowledge base (type 'exit' to quit)")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			userPrompt := color.New(color.FgGreen).PrintfFunc()
			assistantPrompt := color.New(color.FgCyan).PrintfFunc()

			for {
				userPrompt("\nYou: ")
				if !scanner.Scan() {
					break
				}

				query := strings.TrimSpace(scanner.Text())
				if strings.ToLower(query) == "exit" {
					break
				}
				if query == "" {
					continue
				}

				spinner := getSpinner(" Searching...")
				answer, err := p.Ask(ctx, query, topK, models.Scope{})
				_ = spinner.Finish()
				fmt.Fprint(os.Stderr, "\r")

				if err != nil {
					if errors.Is(err, ctx.Err()) {
						return err
					}
					color.Red("Error: %v\n", err)
					continue
				}
				assistantPrompt("\nAssistant: %s\n", answer.Answer)
				for _, c := range answer.Contexts {
					color.HiBlack("  - %s", sourceLabel(c.Metadata))
				}
			}
			return scanner.Err()
		},
	}
	cmd.Flags().IntVar(&topK, "top_k", retriever.DefaultTopK, "Number of chunks to retrieve")
	return cmd
}

func sourceLabel(m models.Metadata) string {
	if m.URL != "" {
		return m.URL
	}
	return fmt.Sprintf("%s#%d", m.Path, m.Chunk)
}
