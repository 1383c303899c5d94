// Command ordercore 下单与支付对账 HTTP 服务
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ordercore/cmd"
	"ordercore/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	checkOnly := flag.Bool("check-config", false, "Load and validate config, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if *checkOnly {
		fmt.Printf("%s %s (%s): database=%s port=%s\n",
			cfg.App.Name, cfg.App.Version, cfg.App.Env, cfg.Database.Type, cfg.Server.Port)
		return
	}

	app, err := cmd.NewBuilder(cfg).Build(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "server exited: %v\n", err)
		os.Exit(1)
	}
}
