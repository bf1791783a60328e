// Package main provides a container health check for the log viewer.
//
// It exits 0 when GET /health on the configured web port answers 200 and 1
// otherwise.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/inetmon/inetmon/internal/config"
)

const timeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	// A missing or unreadable config falls back to the default port.
	port := config.Default().Web.Port
	if cfg, _, err := config.Load(config.ResolvePath(*configPath)); cfg != nil && err == nil {
		port = cfg.Web.Port
	}

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/health"
	if err := check(url); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed for %s: %v\n", url, err)
		os.Exit(1)
	}
}

func check(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status %d", resp.StatusCode)
	}
	return nil
}
