package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tickle-go/internal/diagnostics"
	"tickle-go/internal/inspect"

	"github.com/spf13/cobra"
)

var inspectSave bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <site>",
	Short: "Show how a site's page is structured",
	Long: `Load one site and print its frames, Streamlit markers, wake-up buttons
and whether the expected content is present. Use it to choose must_contain
and is_streamlit for a new site.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		site, err := findSite(args[0])
		if err != nil {
			return err
		}

		chrome, err := newBrowser(ctx)
		if err != nil {
			return err
		}
		defer chrome.Close()

		opts := settings.MonitorOptions(true)
		inspectOpts := inspect.Options{
			NavigationTimeout: opts.NavigationTimeout,
			LoadTimeout:       opts.LoadTimeout,
			RenderDelay:       opts.RenderDelay,
			FrameIdleTimeout:  opts.FrameIdleTimeout,
			Logger:            logger,
		}
		if inspectSave {
			inspectOpts.Dumper = diagnostics.NewDumper(settings.DumpDir, logger)
		}

		s, err := inspect.Run(ctx, chrome, site, inspectOpts)
		if err != nil {
			return exitWith(ExitErrorConnection, err)
		}

		printStructure(s)
		return nil
	},
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func printStructure(s inspect.Structure) {
	fmt.Printf("=== %s ===\n", s.Site)
	fmt.Printf("URL:   %s\n", s.URL)
	fmt.Printf("Title: %s\n", s.Title)

	fmt.Printf("\nFrames (%d):\n", len(s.Frames))
	for i, f := range s.Frames {
		fmt.Printf("  %d: title='%s' src='%s'\n", i, f.Title, f.Src)
	}

	fmt.Println("\nStreamlit markers:")
	for _, m := range s.Markers {
		fmt.Printf("  %s %s\n", mark(m.Found), m.Selector)
	}

	fmt.Println("\nWake-up buttons:")
	if len(s.Controls) == 0 {
		fmt.Println("  none")
	}
	for _, c := range s.Controls {
		fmt.Printf("  %s -> '%s'\n", c.Selector, c.Text)
	}

	fmt.Println("\nExpected content:")
	fmt.Printf("  %s in page\n", mark(s.ContainsExpected))
	if s.AppFrameRead {
		fmt.Printf("  %s in app frame (%d chars)\n", mark(s.AppFrameContainsExpected), s.AppFrameLength)
	} else {
		fmt.Printf("  app frame not read: %s\n", s.AppFrameError)
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectSave, "save", false, "Save the page and frame HTML to the dump directory")
}
