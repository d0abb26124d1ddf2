package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pagevault/internal/app"
	"pagevault/internal/config"
	"pagevault/internal/pv"
)

// Exit codes for the error kinds of the store.
const (
	exitError         = 1
	exitInvalidName   = 2
	exitNotFound      = 3
	exitAlreadyExists = 4
	exitConflict      = 5
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, pv.ErrInvalidName):
		return exitInvalidName
	case errors.Is(err, pv.ErrNotFound):
		return exitNotFound
	case errors.Is(err, pv.ErrAlreadyExists):
		return exitAlreadyExists
	case errors.Is(err, pv.ErrConflict):
		return exitConflict
	default:
		return exitError
	}
}

var verbose bool

// newApp reads the config and creates a PVApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "PutPage", "ImportDirectory").
func newApp(ctx context.Context, operation string, args []string) (*app.PVApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewPVApp(ctx, cfg, operation, args, app.Options{
		Passphrase: readPassphrase,
		Console:    os.Stderr,
		LogLevel:   consoleLevel(verbose),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// consoleLevel is the minimum level logged to stderr; --verbose shows debug output.
func consoleLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// readPassphrase takes the passphrase from PV_PASSPHRASE or prompts on the terminal.
func readPassphrase() (string, error) {
	if p, ok := os.LookupEnv("PV_PASSPHRASE"); ok {
		return p, nil
	}
	return promptPassphrase("Passphrase: ")
}

func promptPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; set PV_PASSPHRASE")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readContent reads a page body from path, or from stdin when path is "" or "-".
func readContent(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printProject(p *pv.Project) {
	fmt.Printf("%s  %s  %d page(s)\n", p.Ref(), p.CreatedAt.Local().Format("2006-01-02 15:04:05"), len(p.Pages))
}

var rootCmd = &cobra.Command{
	Use:          "pv",
	Short:        "Versioned, content-addressed project store",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		if cfg.Blobs.Encrypted {
			fmt.Printf("Blobs:      %s (encrypted)\n", cfg.Blobs.Type)
		} else {
			fmt.Printf("Blobs:      %s\n", cfg.Blobs.Type)
		}
		fmt.Printf("Catalog:    %s\n", cfg.Catalog.Type)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the key pair for encrypted content",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "SetupEncryption", args)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, ok := os.LookupEnv("PV_PASSPHRASE")
		if !ok {
			if passphrase, err = promptPassphrase("New passphrase: "); err != nil {
				return err
			}
			confirm, err := promptPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return errors.New("passphrases do not match")
			}
		}
		if passphrase == "" {
			return errors.New("passphrase must not be empty")
		}

		if err := a.SetupEncryption(passphrase); err != nil {
			return err
		}
		fmt.Println("Encryption keys created.")
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the content store is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ValidateSetup", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateSetup(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil
	},
}

// project command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create NAME [FILE...]",
	Short: "Create a project, one page per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CreateProject", args)
		if err != nil {
			return err
		}
		defer a.Close()

		var pages []pv.PageInput
		for _, path := range args[1:] {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading page file: %w", err)
			}
			base := filepath.Base(path)
			pages = append(pages, pv.PageInput{
				Name:    strings.TrimSuffix(base, filepath.Ext(base)),
				Content: content,
			})
		}

		p, err := a.CreateProject(cmd.Context(), args[0], pages)
		if err != nil {
			return err
		}
		printProject(p)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		withVersions, _ := cmd.Flags().GetBool("versions")

		a, err := newApp(cmd.Context(), "ListProjects", args)
		if err != nil {
			return err
		}
		defer a.Close()

		projects, err := a.ListProjects(cmd.Context(), withVersions)
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects.")
			return nil
		}
		for _, p := range projects {
			printProject(p)
		}
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show PROJECT[_VERSION]",
	Short: "Show the pages of a project version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "LoadProject", args)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.LoadProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printProject(p)
		for _, pg := range p.Pages {
			fmt.Printf("  %-20s  %s  %s\n", pg.Name, pg.ContentHash, pg.Title)
		}
		return nil
	},
}

var projectVersionsCmd = &cobra.Command{
	Use:   "versions NAME",
	Short: "List the versions of a project, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListProjectVersions", args)
		if err != nil {
			return err
		}
		defer a.Close()

		versions, err := a.ListProjectVersions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Println(v)
		}
		return nil
	},
}

// page command
var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Manage pages",
}

var pagePutCmd = &cobra.Command{
	Use:   "put PROJECT PAGE [FILE|-]",
	Short: "Create or update a page from a file or stdin",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 3 {
			path = args[2]
		}
		content, err := readContent(path)
		if err != nil {
			return fmt.Errorf("reading content: %w", err)
		}

		a, err := newApp(cmd.Context(), "PutPage", args)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.PutPage(cmd.Context(), args[0], args[1], content)
		if err != nil {
			return err
		}
		printProject(p)
		return nil
	},
}

var pageRmCmd = &cobra.Command{
	Use:   "rm PROJECT PAGE",
	Short: "Remove a page from the latest version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeletePage", args)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.DeletePage(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		printProject(p)
		return nil
	},
}

var pageCatCmd = &cobra.Command{
	Use:   "cat PROJECT[_VERSION] [PAGE]",
	Short: "Print a page's content (default page: index)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var page string
		if len(args) == 2 {
			page = args[1]
		}

		a, err := newApp(cmd.Context(), "ReadPage", args)
		if err != nil {
			return err
		}
		defer a.Close()

		_, content, err := a.ReadPage(cmd.Context(), args[0], page)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(content)
		return err
	},
}

// content command
var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Access content blobs",
}

var contentCatCmd = &cobra.Command{
	Use:   "cat PROJECT HASH",
	Short: "Print the blob stored under HASH",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "LoadContent", args)
		if err != nil {
			return err
		}
		defer a.Close()

		content, err := a.LoadContent(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(content)
		return err
	},
}

// catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Maintain the version catalog",
}

var catalogBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a copy of the sqlite catalog to DEST",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "BackupCatalog", args)
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := a.BackupCatalog(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Catalog backed up to %s\n", dest)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import DIR...",
	Short: "Create one project per directory, one page per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ImportDirectory", args)
		if err != nil {
			return err
		}
		defer a.Close()

		var errs []error
		for _, dir := range args {
			p, err := a.ImportDirectory(cmd.Context(), dir)
			if err != nil {
				errs = append(errs, fmt.Errorf("importing %s: %w", dir, err))
				continue
			}
			printProject(p)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configCheckCmd)

	// project subcommands
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectListCmd.Flags().Bool("versions", false, "Include every version, newest first")
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectVersionsCmd)

	// page subcommands
	pageCmd.AddCommand(pagePutCmd)
	pageCmd.AddCommand(pageRmCmd)
	pageCmd.AddCommand(pageCatCmd)

	contentCmd.AddCommand(contentCatCmd)
	catalogCmd.AddCommand(catalogBackupCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(importCmd)
}
