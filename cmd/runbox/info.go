package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/runbox"
	"github.com/happyhackingspace/runbox/pkg/langdetect"
)

func newDetectCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Detect the language of a program",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filename string
			switch {
			case code != "":
			case len(args) > 0:
				filename = args[0]
				src, err := readFile(filename)
				if err != nil {
					return err
				}
				code = src
			default:
				src, err := readPiped(cmd.InOrStdin())
				if err != nil {
					return err
				}
				code = src
			}
			if strings.TrimSpace(code) == "" {
				return fmt.Errorf("no program: pass a file, --code or pipe source on stdin")
			}

			result := runbox.DetectLanguage(code, filename)
			if result.Language == "" {
				name := result.Name
				if name == "" {
					name = "unknown"
				}
				return fmt.Errorf("%w: looks like %s", runbox.ErrLanguageNotSupported, name)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Language:   %s\n", result.Language)
			fmt.Fprintf(out, "Confidence: %.2f\n", result.Confidence)
			fmt.Fprintf(out, "Method:     %s\n", result.Method)
			if info, ok := langdetect.Lookup(result.Language); ok {
				fmt.Fprintf(out, "Extension:  %s\n", info.FileExt)
				fmt.Fprintf(out, "Docker:     %s\n", info.DockerImage)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&code, "code", "c", "", "Program source")
	return cmd
}

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LANGUAGE\tEXT\tCOMPILED\tFIXTURES\tDOCKER IMAGE")
			for _, id := range runbox.SupportedLanguages() {
				info, ok := langdetect.Lookup(id)
				if !ok {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, info.FileExt, yesNo(info.Compiled), yesNo(info.Fixtures), info.DockerImage)
			}
			w.Flush()
		},
	}
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and their capabilities",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tISOLATED\tEXACT SIGNALS\tSTREAMING")
			for _, name := range runbox.ListProviders() {
				caps, err := runbox.ProviderCapabilities(name)
				if err != nil {
					fmt.Fprintf(w, "%s\t-\t-\t- (%v)\n", name, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, yesNo(caps.Isolated), yesNo(caps.ExactSignals), yesNo(caps.SupportsStreaming))
			}
			w.Flush()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "runbox version %s\n", version)
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
