// Command proxyd runs the HTTP caching forward proxy: a cobra-driven
// entrypoint that opens the log file, builds the cache store and proxy
// engine, and serves connections until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zack890924/httpcacheproxy/pkg/cache"
	"github.com/zack890924/httpcacheproxy/pkg/connection"
	"github.com/zack890924/httpcacheproxy/pkg/constants"
	"github.com/zack890924/httpcacheproxy/pkg/logging"
	"github.com/zack890924/httpcacheproxy/pkg/proxy"
	"github.com/zack890924/httpcacheproxy/pkg/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	port := defaultPort()

	cmd := &cobra.Command{
		Use:   constants.ProxyName,
		Short: "HTTP/1.1 caching forward proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", port, "port to listen on (all interfaces)")
	return cmd
}

// defaultPort mirrors server.cpp's hardcoded 12345, made overridable by a
// PROXY_PORT environment variable before the --port flag gets a chance to
// override it again.
func defaultPort() int {
	if v := os.Getenv("PROXY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return constants.DefaultListenPort
}

func run(port int) error {
	logPath := "/var/log/" + constants.ProxyName + "/proxy.log"
	logger, err := logging.Open(logPath)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logger.Close()

	store := cache.New(constants.DefaultCacheCapacity)
	engine := proxy.NewEngine(store, logger)
	driver := connection.New(engine, logger)
	pool := server.NewPool(constants.DefaultWorkerCount, driver.Handle)

	acceptor, err := server.Listen(port, pool)
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}

	fmt.Printf("Proxy server listening on port %d\n", port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		fmt.Println("shutting down")
	}()

	return acceptor.Serve(ctx)
}
