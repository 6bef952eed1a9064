package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jira369/Leben-in-Deutschland/internal/i18n"
	"github.com/jira369/Leben-in-Deutschland/internal/logging"
	"github.com/jira369/Leben-in-Deutschland/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "einbuergerung",
		Short:        "Practice for the German citizenship test \"Leben in Deutschland\"",
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.String("db", "einbuergerung.db", "SQLite database path or postgres:// URL")
	f.StringP("lang", "l", i18n.DefaultLanguage, "UI language (de, en)")
	f.Bool("no-color", false, "Disable colored output")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json, pretty)")

	root.AddCommand(
		importCmd(),
		quizCmd(),
		practiceCmd(),
		statsCmd(),
		historyCmd(),
		settingsCmd(),
		markCmd(),
		mistakesCmd(),
		categoriesCmd(),
		exportCmd(),
		explainCmd(),
	)
	return root
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EINBUERGERUNG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("einbuergerung")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/einbuergerung")
	v.AddConfigPath("/etc/einbuergerung")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// app is the state shared by a single command invocation.
type app struct {
	v   *viper.Viper
	db  *store.Store
	ctx context.Context
	out io.Writer
}

// setup configures logging and translations from the command's flags and opens the database.
func setup(cmd *cobra.Command) (*app, error) {
	v := viperForCmd(cmd)
	if err := logging.Setup(os.Stderr, v.GetString("log-level"), v.GetString("log-format")); err != nil {
		return nil, err
	}

	// German is the fallback for languages without a locale file.
	if err := i18n.Init(i18n.DefaultLanguage); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	lang := v.GetString("lang")

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Debug("opened database", "dsn", redactDSN(v.GetString("db")), "lang", lang)

	return &app{
		v:   v,
		db:  db,
		ctx: i18n.WithLanguage(cmd.Context(), lang),
		out: cmd.OutOrStdout(),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

// say prints a translated message on its own line.
func (a *app) say(msgID string, data map[string]any) {
	if data == nil {
		fmt.Fprintln(a.out, i18n.T(a.ctx, msgID))
		return
	}
	fmt.Fprintln(a.out, i18n.Td(a.ctx, msgID, data))
}

// redactDSN hides the password of a postgres URL.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if user, _, ok := strings.Cut(creds, ":"); ok {
		return dsn[:scheme+3] + user + ":***" + dsn[at:]
	}
	return dsn
}
