/*
Copyright 2024 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/prometheus"
)

var cfgFile, activeSite, passiveSite, metricsAddr string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "grctl",
	Short: "CLI tool for EO Geographical Redundancy.",
	Long: "A CLI tool driving switchover, recovery and status checks of a two site " +
		"EO Geographical Redundancy deployment through the Deployment Manager.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetLoggerLevel(logger.LogLevel(os.Getenv(logger.EnvLoggerLevel)))
		prometheus.GRInfo.WithLabelValues(cmd.Root().Version).Set(1)
		if metricsAddr != "" {
			startMetricsServer(cmd.Context(), metricsAddr)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("grctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range []string{"config", "active-site", "passive-site", "metrics-addr"} {
		if err := viper.BindEnv(key); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}
	viper.AutomaticEnv() // read in environment variables that match
}

// InitRoot helps initialize grctl commands
func InitRoot(version string) {
	initViper()
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", viper.GetString("config"),
		"GR config file (alternatively use GRCTL_CONFIG or GR_CONFIG env variable)")
	rootCmd.PersistentFlags().StringVar(&activeSite, "active-site", viper.GetString("active-site"),
		"name of the active site (alternatively use GRCTL_ACTIVE_SITE or ACTIVE_SITE env variable)")
	rootCmd.PersistentFlags().StringVar(&passiveSite, "passive-site", viper.GetString("passive-site"),
		"name of the passive site (alternatively use GRCTL_PASSIVE_SITE or PASSIVE_SITE env variable)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", viper.GetString("metrics-addr"),
		"address serving prometheus metrics, disabled when empty")
	InitStatus(rootCmd)
	InitAvailability(rootCmd)
	InitSwitchover(rootCmd)
	InitRecovery(rootCmd)
	InitRegistrySync(rootCmd)
	InitHealthcheck(rootCmd)
	InitCollectLogs(rootCmd)
	InitBurEnv(rootCmd)
	InitMonitor(rootCmd)
}

func startMetricsServer(ctx context.Context, addr string) {
	log := logger.GetLogger(ctx)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infof("Serving metrics on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server stopped. err=%v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
}
