package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"driftfs/internal/app"
	"driftfs/internal/config"
	"driftfs/internal/contentstore"
	"driftfs/internal/database"
	"driftfs/internal/database/migrations"
	"driftfs/internal/drift"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config from the default (or overridden) location.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp builds a fully wired App. The caller must defer a.Close().
func newApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "driftfs",
	Short: "Per-wallet personal filesystem on a content-addressed object store",
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
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Content Mode: %s\n", cfg.Content.Mode)
		fmt.Printf("Repo Dir:     %s\n", cfg.Content.RepoDir)
		return nil
	},
}

// keys command

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the block encryption key",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a block encryption key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		keyPath := cfg.Content.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(cfg.BaseDir, "keys", "block.key")
		}
		if err := contentstore.GenerateKeyFile(keyPath); err != nil {
			return err
		}
		fmt.Printf("Key written to %s\n", keyPath)
		if cfg.Content.KeyPath == "" {
			fmt.Printf("Set content.key_path = %q in the config to enable at-rest encryption.\n", keyPath)
		}
		return nil
	},
}

var keysExportCmd = &cobra.Command{
	Use:   "export DEST",
	Short: "Write a passphrase-protected backup of the key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Content.KeyPath == "" {
			return fmt.Errorf("content.key_path is not set")
		}

		fmt.Print("Passphrase: ")
		passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if len(passphrase) == 0 {
			return fmt.Errorf("passphrase must not be empty")
		}

		if err := contentstore.ExportKeyFile(cfg.Content.KeyPath, args[0], string(passphrase)); err != nil {
			return err
		}
		fmt.Printf("Encrypted key backup written to %s\n", args[0])
		return nil
	},
}

// serve command

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storage core until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := a.Start(ctx); err != nil {
			return err
		}

		info := a.Content().NodeInfo()
		fmt.Printf("driftfs running (mode=%s)\n", info.Mode)
		if info.ID != "" {
			fmt.Printf("Node ID: %s\n", info.ID)
			for _, addr := range info.ListenAddresses {
				fmt.Printf("Listening: %s\n", addr)
			}
		}

		<-ctx.Done()
		fmt.Println("shutting down")
		return nil
	},
}

// status command

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check database schema and repository state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		meta, err := database.NewStoreFromConfig(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer meta.Close()

		sqlStore, ok := meta.(*database.SQLiteStore)
		if !ok {
			return fmt.Errorf("database type %s does not support status", cfg.Database.Type)
		}
		if err := migrations.Status(sqlStore.DB()); err != nil {
			fmt.Printf("Schema:  %v\n", err)
		} else {
			fmt.Println("Schema:  up to date")
		}
		fmt.Printf("Repo:    %s\n", cfg.Content.RepoDir)
		fmt.Printf("Mode:    %s\n", cfg.Content.Mode)
		return nil
	},
}

// fs command group: direct access to the path layer for one wallet.

var walletFlag string

var fsCmd = &cobra.Command{
	Use:   "fs",
	Short: "Operate on a wallet's filesystem",
}

// withApp runs fn against a started App and tears everything down after.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.Content().Initialize(ctx); err != nil {
		return fmt.Errorf("initializing content store: %w", err)
	}
	return fn(ctx, a)
}

var fsWriteCmd = &cobra.Command{
	Use:   "write PATH LOCAL_FILE",
	Short: "Store a local file at a path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			entry, err := a.Filesystem().Write(ctx, args[0], data, walletFlag, drift.WriteOptions{})
			if err != nil {
				return err
			}
			fmt.Printf("%s  %d bytes  %s\n", entry.Path, entry.Size, *entry.ContentID)
			return nil
		})
	},
}

var fsReadCmd = &cobra.Command{
	Use:   "read PATH",
	Short: "Print a file's bytes to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			data, err := a.Filesystem().Read(ctx, args[0], walletFlag)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		})
	},
}

var fsLsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) > 0 {
			path = args[0]
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			entries, err := a.Filesystem().ListDirectory(path, walletFlag)
			if err != nil {
				return err
			}
			for _, e := range entries {
				kind := "-"
				if e.IsDir {
					kind = "d"
				}
				public := " "
				if e.IsPublic {
					public = "p"
				}
				fmt.Printf("%s%s %10d  %s\n", kind, public, e.Size, e.Path)
			}
			return nil
		})
	},
}

var fsMkdirCmd = &cobra.Command{
	Use:   "mkdir PATH",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			entry, err := a.Filesystem().CreateDirectory(args[0], walletFlag)
			if err != nil {
				return err
			}
			fmt.Println(entry.Path)
			return nil
		})
	},
}

var fsRmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Delete a file or empty directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.Filesystem().Delete(ctx, args[0], walletFlag)
		})
	},
}

var fsMvCmd = &cobra.Command{
	Use:   "mv OLD NEW",
	Short: "Move or rename an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.Filesystem().Move(ctx, args[0], args[1], walletFlag)
		})
	},
}

var fsCpCmd = &cobra.Command{
	Use:   "cp SRC DST",
	Short: "Copy a file (metadata only, content is shared)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			entry, err := a.Filesystem().Copy(ctx, args[0], args[1], walletFlag)
			if err != nil {
				return err
			}
			fmt.Println(entry.Path)
			return nil
		})
	},
}

var fsSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search paths and indexed text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(func(ctx context.Context, a *app.App) error {
			entries, err := a.Metadata().SearchFiles(walletFlag, args[0], limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Println(e.Path)
			}
			return nil
		})
	},
}

var fsVersionsCmd = &cobra.Command{
	Use:   "versions PATH",
	Short: "List a file's version history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			versions, err := a.Metadata().ListFileVersions(drift.NormalizePath(args[0]), walletFlag)
			if err != nil {
				return err
			}
			for _, v := range versions {
				comment := ""
				if v.Comment != nil {
					comment = "  " + *v.Comment
				}
				fmt.Printf("v%d  %s  %d bytes  %s%s\n",
					v.VersionNumber, v.CreatedAt.Format("2006-01-02 15:04:05"), v.Size, v.ContentID, comment)
			}
			return nil
		})
	},
}

var fsRestoreCmd = &cobra.Command{
	Use:   "restore PATH VERSION",
	Short: "Restore a file to a recorded version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var n int64
		if _, err := fmt.Sscanf(args[1], "%d", &n); err != nil {
			return fmt.Errorf("invalid version number %q", args[1])
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			entry, err := a.Filesystem().RestoreVersion(ctx, args[0], walletFlag, n)
			if err != nil {
				return err
			}
			fmt.Printf("%s restored to version %d\n", entry.Path, n)
			return nil
		})
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)
	keysCmd.AddCommand(keysExportCmd)

	fsCmd.PersistentFlags().StringVar(&walletFlag, "wallet", "", "wallet address owning the filesystem")
	fsCmd.MarkPersistentFlagRequired("wallet")
	fsSearchCmd.Flags().Int("limit", 20, "maximum results")

	fsCmd.AddCommand(fsWriteCmd)
	fsCmd.AddCommand(fsReadCmd)
	fsCmd.AddCommand(fsLsCmd)
	fsCmd.AddCommand(fsMkdirCmd)
	fsCmd.AddCommand(fsRmCmd)
	fsCmd.AddCommand(fsMvCmd)
	fsCmd.AddCommand(fsCpCmd)
	fsCmd.AddCommand(fsSearchCmd)
	fsCmd.AddCommand(fsVersionsCmd)
	fsCmd.AddCommand(fsRestoreCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fsCmd)
}
