package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tagquery "github.com/grindlemire/go-tagquery"
	"github.com/grindlemire/go-tagquery/internal/lex"
	"github.com/grindlemire/go-tagquery/internal/logutil"
	"github.com/grindlemire/go-tagquery/internal/metrics"
	"github.com/grindlemire/go-tagquery/pkg/alias"
	"github.com/grindlemire/go-tagquery/pkg/config"
	"github.com/grindlemire/go-tagquery/pkg/driver"
	"github.com/grindlemire/go-tagquery/pkg/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type flags struct {
	configPath        string
	logLevel          string
	aliasDSN          string
	noAliases         bool
	safeMode          bool
	alwaysShowDeleted bool
	maxTags           int
	freeTags          int
	verbose           bool
	esURL             string
	index             string
	page              int
	perPage           int
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           "tagquery",
		Short:         "tagquery compiles tag searches into elasticsearch queries.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "path to a toml config file")
	pf.StringVar(&f.logLevel, "log-level", "", "override the configured log level")
	pf.StringVar(&f.aliasDSN, "alias-dsn", "", "mysql dsn to load tag aliases from, overrides the config")
	pf.BoolVar(&f.noAliases, "no-aliases", false, "do not resolve tag aliases")
	pf.BoolVar(&f.safeMode, "safe-mode", false, "only match rating:s")
	pf.BoolVar(&f.alwaysShowDeleted, "always-show-deleted", false, "never hide deleted posts")
	pf.IntVar(&f.maxTags, "max-tags", -1, "tag quota, -1 uses the config and 0 disables it")
	pf.IntVar(&f.freeTags, "free-tags", 0, "part of the tag quota already used")

	rootCmd.AddCommand(
		newTokensCommand(),
		newIRCommand(f),
		newCompileCommand(f),
		newSearchCommand(f),
	)
	return rootCmd
}

func newTokensCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <query>",
		Short: "print the tokens of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, tok := range lex.Scan(args[0]) {
				cmd.Printf("%d\t%s\t%s\n", tok.Pos, tok.Typ, tok.Val)
			}
			return nil
		},
	}
}

func newIRCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ir <query>",
		Short: "print the parsed and alias resolved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := f.compiler(cmd.Context())
			if err != nil {
				return err
			}
			q, err := c.Parse(args[0])
			if err != nil {
				return err
			}
			if f.verbose {
				cmd.Println(q.Verbose())
				return nil
			}
			cmd.Println(q.String())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print node kinds")
	return cmd
}

func newCompileCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <query>",
		Short: "print the elasticsearch request body of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := f.compiler(cmd.Context())
			if err != nil {
				return err
			}
			s, err := c.Compile(args[0])
			if err != nil {
				return err
			}
			return printSource(cmd, s)
		},
	}
}

func newSearchCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "run queries against the post index and print the matching ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := f.compiler(cmd.Context())
			if err != nil {
				return err
			}

			searches := make([]*driver.Search, 0, len(args))
			for _, query := range args {
				s, err := c.Compile(query)
				if err != nil {
					return err
				}
				searches = append(searches, s)
			}

			url, index := cfg.Elastic.URL, cfg.Elastic.Index
			if f.esURL != "" {
				url = f.esURL
			}
			if f.index != "" {
				index = f.index
			}
			client, err := search.NewClient(url)
			if err != nil {
				return err
			}
			searcher := search.New(client, index, nil)

			var pages []*search.Page
			if len(searches) == 1 {
				p, err := searcher.Search(cmd.Context(), searches[0], f.page, f.perPage)
				if err != nil {
					return err
				}
				pages = []*search.Page{p}
			} else {
				pages, err = searcher.SearchAll(cmd.Context(), searches, f.perPage)
				if err != nil {
					return err
				}
			}

			for i, p := range pages {
				ids := make([]string, 0, len(p.IDs))
				for _, id := range p.IDs {
					ids = append(ids, fmt.Sprint(id))
				}
				cmd.Printf("%s\t%d\t%s\n", args[i], p.Total, strings.Join(ids, ","))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.esURL, "url", "", "elasticsearch url, overrides the config")
	cmd.Flags().StringVar(&f.index, "index", "", "index to search, overrides the config")
	cmd.Flags().IntVar(&f.page, "page", 1, "page to fetch when a single query is given")
	cmd.Flags().IntVar(&f.perPage, "per-page", search.DefaultPageSize, "results per page")
	return cmd
}

func (f *flags) config() (*config.Config, error) {
	if f.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(f.configPath)
}

// compiler builds a compiler from the config and flags. The alias table is loaded once when a
// dsn is configured.
func (f *flags) compiler(ctx context.Context) (*tagquery.Compiler, *config.Config, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	logger, err := logutil.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	m := metrics.New("tagquery")
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, nil, err
	}

	opts := []tagquery.Option{
		tagquery.WithLogger(logger),
		tagquery.WithMetrics(m),
		tagquery.WithSafeMode(f.safeMode),
		tagquery.WithAlwaysShowDeleted(f.alwaysShowDeleted),
		tagquery.WithFreeTagsCount(f.freeTags),
	}
	if f.maxTags >= 0 {
		opts = append(opts, tagquery.WithMaxTags(f.maxTags))
	}
	if f.noAliases {
		opts = append(opts, tagquery.WithoutAliasResolution())
	}

	dsn := cfg.Alias.DSN
	if f.aliasDSN != "" {
		dsn = f.aliasDSN
	}
	if dsn != "" && !f.noAliases {
		loader, err := alias.OpenMySQL(dsn)
		if err != nil {
			return nil, nil, err
		}
		table := alias.NewTable(loader, cfg.Alias.TTL, cfg.Alias.Capacity,
			alias.WithLogger(logger),
			alias.WithMetrics(m),
		)
		if err := table.Refresh(ctx); err != nil {
			logger.Warn("continuing without aliases", zap.Error(err))
		}
		opts = append(opts, tagquery.WithResolver(table))
	}

	return tagquery.NewCompiler(cfg, opts...), cfg, nil
}

func printSource(cmd *cobra.Command, s *driver.Search) error {
	src, err := s.Source()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(b))
	return nil
}
