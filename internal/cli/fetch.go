package cli

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tlind/bulkcat/pkg/cache"
	"github.com/tlind/bulkcat/pkg/client"
	"github.com/tlind/bulkcat/pkg/ratelimit"
)

func newFetchCmd() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "fetch <path>",
		Short: "Fetch one catalog resource, served from the lookup cache when possible",
		Long: "Performs a single read against the catalog API. With cache.enabled and a\n" +
			"reachable redis, repeated fetches of the same path cost no rate budget.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Catalog.BaseURL == "" {
				return fmt.Errorf("catalog.base_url is required (set it in bulkcat.yaml or BULKCAT_CATALOG_BASE_URL)")
			}

			var manager *cache.Manager
			if cfg.Cache.Enabled && !noCache {
				manager = cache.NewManager(redis.NewClient(&redis.Options{
					Addr: cfg.Cache.RedisAddr,
				}))
			}

			headers := map[string]string{}
			if cfg.Catalog.AuthToken != "" {
				headers["Authorization"] = "Bearer " + cfg.Catalog.AuthToken
			}

			bucket := ratelimit.NewBucket(cfg.Engine.Rate, 1)
			h, err := client.New(client.Config{
				BaseURL:  cfg.Catalog.BaseURL,
				Headers:  headers,
				Timeout:  cfg.Catalog.Timeout,
				Bucket:   bucket,
				Cache:    manager,
				CacheTTL: cfg.Cache.TTL,
			})
			if err != nil {
				return err
			}

			res, err := h.Get(cmd.Context(), path)
			if err != nil {
				return err
			}
			if res.StatusCode >= 400 {
				return fmt.Errorf("catalog returned status %d: %s", res.StatusCode, res.Body)
			}

			cmd.Println(res.Body)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the lookup cache")
	return cmd
}
