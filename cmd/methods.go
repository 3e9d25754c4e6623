package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/mailwarm/internal/dispatch"
	"github.com/teemow/mailwarm/internal/server"
)

func newMethodsCmd() *cobra.Command {
	var (
		format     string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List the registered methods and their parameters",
		Long: `List every registered method with its parameters, as JSON or markdown.
The list is generated from the method definitions, so it is always in sync
with what the dispatcher accepts. No credentials are needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := runMethods(out, format); err != nil {
				return err
			}
			if outputFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to: %s\n", outputFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or markdown")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runMethods(w io.Writer, format string) error {
	// The method list only reads schemas; the session is never initialized.
	d := dispatch.New(server.NewSession(server.SessionConfig{}), dispatch.Options{})
	methods := d.MethodList()

	switch strings.ToLower(format) {
	case "json":
		return writeJSON(w, map[string]any{
			"name":    dispatch.ModuleName,
			"version": dispatch.ModuleVersion,
			"methods": methods,
		})
	case "markdown", "md":
		_, err := io.WriteString(w, generateMethodsMarkdown(methods))
		return err
	default:
		return fmt.Errorf("unsupported format %q (supported: json, markdown)", format)
	}
}

func generateMethodsMarkdown(methods []dispatch.MethodInfo) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Methods Reference\n\n")
	sb.WriteString(fmt.Sprintf("This document lists every method of the `%s` module (version %s).\n\n", dispatch.ModuleName, dispatch.ModuleVersion))
	sb.WriteString("**Note:** This documentation is automatically generated from the method definitions.\n\n")

	// Table of contents
	sb.WriteString("## Table of Contents\n\n")
	for _, m := range methods {
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", m.Name, methodAnchor(m.Name)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Responses\n\n")
	sb.WriteString("Every call answers with an envelope: `{\"ok\": true, \"result\": {...}}` on success, ")
	sb.WriteString("`{\"ok\": false, \"error\": {\"code\": ..., \"message\": ...}}` on failure.\n\n")

	sb.WriteString("## Methods\n\n")
	for _, m := range methods {
		sb.WriteString(generateMethodMarkdown(m))
		sb.WriteString("\n")
	}

	return sb.String()
}

func generateMethodMarkdown(m dispatch.MethodInfo) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("### %s\n\n", m.Name))
	if m.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", m.Description))
	}

	if len(m.Params) == 0 {
		sb.WriteString("**Parameters:** None\n")
		return sb.String()
	}

	sb.WriteString("**Parameters:**\n")
	for _, p := range m.Params {
		requiredStr := "optional"
		if p.Required {
			requiredStr = "required"
		}
		sb.WriteString(fmt.Sprintf("- `%s` (%s, %s): ", p.Name, p.Type, requiredStr))
		if p.Description != "" {
			sb.WriteString(p.Description)
		} else {
			sb.WriteString(fmt.Sprintf("%s parameter", p.Type))
		}
		if p.Default != nil {
			sb.WriteString(fmt.Sprintf(" (default: `%v`)", p.Default))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// methodAnchor mirrors how markdown renderers slug a heading.
func methodAnchor(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), ".", "")
}
