// Command netwatchd is the network-observability daemon (C14): it parses
// flags (optionally layered over a YAML config and a .env file), builds an
// internal/engine.Engine, and runs it until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vishvananda/netlink"

	"github.com/hwkim3330/netwatch/internal/appconfig"
	"github.com/hwkim3330/netwatch/internal/engine"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	ifaceFlag      string
	portFlag       int
	promiscFlag    bool
	bufferSizeFlag int
	ringCapFlag    int
	configFlag     string
	logJSONFlag    bool
	verboseFlag    bool
	versionFlag    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "netwatchd",
		Short: "Live network capture, dissection, and observability daemon",
		RunE:  runDaemon,
	}

	cmd.Flags().StringVar(&ifaceFlag, "interface", "", "capture interface (default: first non-loopback interface)")
	cmd.Flags().IntVar(&portFlag, "port", 8080, "HTTP API listen port")
	cmd.Flags().BoolVar(&promiscFlag, "promiscuous", false, "enable promiscuous mode")
	cmd.Flags().IntVar(&bufferSizeFlag, "buffer-size", 64, "capture buffer size in MB")
	cmd.Flags().IntVar(&ringCapFlag, "ring-capacity", 0, "in-memory packet ring capacity (0 = default)")
	cmd.Flags().StringVar(&configFlag, "config", "", "optional YAML file supplying flag defaults")
	cmd.Flags().BoolVar(&logJSONFlag, "log-json", false, "emit structured JSON logs instead of colorized console output")
	cmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&versionFlag, "version", false, "print version and exit")

	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if versionFlag {
		fmt.Printf("netwatchd %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}

	_ = godotenv.Load()

	file, err := appconfig.Load(configFlag)
	if err != nil {
		return err
	}
	applyFileDefaults(cmd, file)

	log := newLogger(verboseFlag, logJSONFlag)

	iface := ifaceFlag
	if iface == "" {
		iface, err = defaultInterface()
		if err != nil {
			log.Warn("no capture interface specified and auto-detection failed; starting without capture", "error", err)
			iface = ""
		} else {
			log.Info("auto-detected capture interface", "interface", iface)
		}
	}

	e := engine.New(log, engine.Config{
		Interface:    iface,
		Promiscuous:  promiscFlag,
		BufferSizeMB: bufferSizeFlag,
		Addr:         fmt.Sprintf(":%d", portFlag),
		RingCapacity: ringCapFlag,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("netwatchd starting", "interface", iface, "port", portFlag, "promiscuous", promiscFlag)
	return e.Run(ctx)
}

// applyFileDefaults fills in any flag the user didn't set explicitly from
// the parsed YAML config, so CLI flags always win over the file.
func applyFileDefaults(cmd *cobra.Command, f appconfig.File) {
	flags := cmd.Flags()
	if !flags.Changed("interface") && f.Interface != "" {
		ifaceFlag = f.Interface
	}
	if !flags.Changed("port") && f.Port != 0 {
		portFlag = f.Port
	}
	if !flags.Changed("promiscuous") && f.Promiscuous {
		promiscFlag = f.Promiscuous
	}
	if !flags.Changed("buffer-size") && f.BufferSizeMB != 0 {
		bufferSizeFlag = f.BufferSizeMB
	}
	if !flags.Changed("ring-capacity") && f.RingCapacity != 0 {
		ringCapFlag = f.RingCapacity
	}
	if !flags.Changed("log-json") && f.LogJSON {
		logJSONFlag = f.LogJSON
	}
}

// defaultInterface picks the first up, non-loopback interface with at
// least one address, mirroring the kind of link-enumeration done in
// telemetry/global-monitor/internal/netlink/netlink_linux.go.
func defaultInterface() (string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, link := range links {
		attrs := link.Attrs()
		if attrs.Flags&net.FlagLoopback != 0 {
			continue
		}
		if attrs.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
		if err != nil || len(addrs) == 0 {
			continue
		}
		return attrs.Name, nil
	}
	return "", fmt.Errorf("no suitable interface found")
}

// newLogger builds the console logger (lmittmann/tint, colorized) by
// default, or a JSON handler under --log-json, matching
// controlplane/telemetry/internal/data/cli/root.go's newLogger shape.
func newLogger(verbose, jsonOutput bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
