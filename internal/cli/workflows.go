package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mihaimyh/promptstudio/internal/app"
	"github.com/mihaimyh/promptstudio/pkg/pipeline"
)

func joined(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// status prints the outcome message of a run on stderr.
func status(cmd *cobra.Command, oc pipeline.Outcome) {
	fmt.Fprintln(cmd.ErrOrStderr(), oc.Message)
}

func newImageCmd(opts *rootOptions) *cobra.Command {
	var count int
	var outDir string

	cmd := &cobra.Command{
		Use:   "image PROMPT...",
		Short: "Generate images from a prompt",
		Long:  "Generate up to --count images (1-8) and write them as PNG files to --out. The prompt and the images are saved to the libraries.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.CreateImages(ctx, joined(args), count)
				if err != nil {
					return err
				}
				if outDir != "" {
					if err := os.MkdirAll(outDir, 0o755); err != nil {
						return err
					}
					for i, img := range res.Images {
						name := fmt.Sprintf("image-%d.png", i+1)
						if i < len(res.Saved) {
							name = res.Saved[i].ID + ".png"
						}
						path := filepath.Join(outDir, name)
						if err := writeImage(path, img); err != nil {
							return err
						}
						fmt.Fprintln(cmd.OutOrStdout(), path)
					}
				}
				status(cmd, res.Outcome)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", pipeline.DefaultImageCount, "number of images (1-8)")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for the PNG files (empty to skip writing)")

	return cmd
}

func writeImage(path, b64 string) error {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func newTranslateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "translate TEXT...",
		Short: "Detect the language of a prompt and translate it into the other two",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.Translate(ctx, joined(args))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, lang := range pipeline.Languages {
					marker := ""
					if lang == res.Source {
						marker = " (source)"
					}
					fmt.Fprintf(out, "%s%s:\n%s\n\n", lang, marker, res.Translations[lang])
				}
				status(cmd, res.Outcome)
				return nil
			})
		},
	}
}

func printPrompt(w io.Writer, res *pipeline.PromptResult) {
	fmt.Fprintln(w, res.Prompt)
	if res.Translation != "" {
		fmt.Fprintf(w, "\n%s:\n%s\n", pipeline.TraditionalChinese, res.Translation)
	}
}

func newIdeaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "idea IDEA...",
		Short: "Expand a short idea into a detailed English prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.IdeaToPrompt(ctx, joined(args))
				if err != nil {
					return err
				}
				printPrompt(cmd.OutOrStdout(), res)
				status(cmd, res.Outcome)
				return nil
			})
		},
	}
}

func newRandomCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Generate a random prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.RandomPrompt(ctx)
				if err != nil {
					return err
				}
				printPrompt(cmd.OutOrStdout(), res)
				status(cmd, res.Outcome)
				return nil
			})
		},
	}
}

var languageShortcuts = map[string]pipeline.Language{
	"vi": pipeline.Vietnamese,
	"en": pipeline.English,
	"zh": pipeline.TraditionalChinese,
}

func parseLanguageFlag(s string) (pipeline.Language, error) {
	if l, ok := languageShortcuts[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	if l, ok := pipeline.ParseLanguage(s); ok {
		return l, nil
	}
	return "", fmt.Errorf("unknown language %q (use vi, en or zh)", s)
}

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "optimize TEXT...",
		Short: "Turn an edited Vietnamese or Chinese prompt into an English hybrid prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseLanguageFlag(from)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.OptimizePrompt(ctx, source, joined(args))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Prompt)
				status(cmd, res.Outcome)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "vi", "language of the text: vi or zh")

	return cmd
}

func newDetailedCmd(opts *rootOptions) *cobra.Command {
	var form pipeline.DetailedForm

	cmd := &cobra.Command{
		Use:   "detailed",
		Short: "Compose a prompt from structured parts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.DetailedPrompt(ctx, form)
				if err != nil {
					return err
				}
				printPrompt(cmd.OutOrStdout(), res)
				status(cmd, res.Outcome)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&form.Subject, "subject", "", "main subject (required)")
	f.StringVar(&form.Action, "action", "", "action, or none")
	f.StringVar(&form.ActionText, "action-text", "", "free-text action, overrides --action")
	f.StringVar(&form.Setting, "setting", "", "where the scene takes place")
	f.StringVar(&form.Style, "style", "", "art style, or none")
	f.StringVar(&form.StyleText, "style-text", "", "free-text style, overrides --style")
	f.StringVar(&form.Lighting, "lighting", "", "lighting, or none")
	f.StringVar(&form.LightingText, "lighting-text", "", "free-text lighting, overrides --lighting")
	f.StringVar(&form.Composition, "composition", "", "composition, or none")
	f.StringVar(&form.CompositionText, "composition-text", "", "free-text composition, overrides --composition")
	f.StringVar(&form.Details, "details", "", "extra details")
	f.StringVar(&form.NegativePrompt, "negative", "", "things to exclude, appended as --no")
	f.BoolVar(&form.Mature, "mature", false, "mark the prompt as mature content")
	f.StringVar(&form.MatureStyle, "mature-style", "", "mature content style, or none")

	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check PROMPT...",
		Short: "Critique a prompt and suggest an optimized rewrite",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.CheckPrompt(ctx, joined(args))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Analysis)
				if res.Found {
					fmt.Fprintf(out, "\n%s\n%s\n", pipeline.OptimizedHeading, res.Optimized)
				}
				status(cmd, res.Outcome)
				return nil
			})
		},
	}
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "chat [MESSAGE...]",
		Short: "Ask the assistant, or turn an image into a prompt with --image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if imagePath == "" && len(args) == 0 {
				return fmt.Errorf("a message or --image is required")
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var (
					res *pipeline.ChatResult
					err error
				)
				if imagePath != "" {
					data, rerr := os.ReadFile(imagePath)
					if rerr != nil {
						return rerr
					}
					res, err = a.Orchestrator.DescribeImage(ctx, data, imageType(imagePath, data))
				} else {
					res, err = a.Orchestrator.Chat(ctx, joined(args))
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
				status(cmd, res.Outcome)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "image file to describe as a prompt")

	return cmd
}

func imageType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
