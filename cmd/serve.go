package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"ad_copy_planner/catalog"
	"ad_copy_planner/config"
	"ad_copy_planner/generator"
	"ad_copy_planner/server"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.addr)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts := server.Options{
		History:   openHistory(cfg),
		JWTSecret: cfg.Auth.JWTSecret,
	}

	// 缺少 API key 时仍然启动，只有依赖模型的接口返回 503。
	agent, err := buildAgent(cfg)
	switch {
	case errors.Is(err, generator.ErrMissingCredential):
		log.Warn().Str("provider", cfg.LLM.Provider).Msg("llm api key not configured, generation endpoints disabled")
		opts.AgentErr = err
	case err != nil:
		return err
	default:
		opts.Agent = agent
	}

	store, closeStore, err := openCatalog(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	opts.Catalog = store

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	listen := cfg.Server.Addr
	if addr := c.String("addr"); addr != "" {
		listen = addr
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("auth.jwt_secret not set, all requests use the local tenant")
	}
	log.Info().Str("addr", listen).Str("provider", cfg.LLM.Provider).Msg("starting web server")
	return http.ListenAndServe(listen, srv.Routes())
}

// openCatalog 配置了 database.url 时使用 Postgres，否则使用内存存储。
func openCatalog(ctx context.Context, cfg *config.Config) (catalog.Store, func(), error) {
	if cfg.Database.URL == "" {
		log.Info().Msg("database.url not set, using in-memory catalog")
		return catalog.NewMemoryStore(), func() {}, nil
	}
	pg, err := catalog.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return pg, pg.Close, nil
}
