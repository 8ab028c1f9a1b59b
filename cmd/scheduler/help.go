package main

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var helpCmd = &cobra.Command{
	Use:   "help [command]",
	Short: "Get help and guidance for the scheduler",
	Long:  "Detailed help, examples, and troubleshooting guidance for the scheduler CLI.",
	RunE:  runHelp,
}

var (
	helpExamples bool
	helpTrouble  bool
)

func initHelpCommands() {
	helpCmd.Flags().BoolVar(&helpExamples, "examples", false, "Show common usage examples")
	helpCmd.Flags().BoolVar(&helpTrouble, "troubleshoot", false, "Show troubleshooting guide")

	rootCmd.AddCommand(helpCmd)
	rootCmd.AddCommand(versionCmd)
}

func runHelp(cmd *cobra.Command, args []string) error {
	if helpExamples {
		return showExamples()
	}
	if helpTrouble {
		return showTroubleshooting()
	}
	return showComprehensiveHelp()
}

func showComprehensiveHelp() error {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow, color.Bold)

	fmt.Println()
	cyan.Println("scheduler - per-organisation task scheduling engine")
	cyan.Println("====================================================")
	fmt.Println()

	green.Println("Schedules boefje (data-collection) and normalizer (post-processing)")
	green.Println("tasks per organisation, dispatching them to the worker fabric.")
	fmt.Println()

	yellow.Println("Main commands:")
	fmt.Println("  start       Start the scheduler process")
	fmt.Println("  help        Show this help")
	fmt.Println("  version     Show version information")
	fmt.Println()

	yellow.Println("Admin HTTP surface:")
	fmt.Println("  GET  /              process status")
	fmt.Println("  GET  /health        process liveness and version (no per-service checks)")
	fmt.Println("  GET  /queues        list queue IDs")
	fmt.Println("  GET  /queues/:id    queue snapshot")
	fmt.Println("  GET  /queues/:id/pop   pop the highest-priority item")
	fmt.Println("  POST /queues/:id/push  push an item at a given priority")
	fmt.Println("  GET  /metrics       Prometheus metrics")
	fmt.Println()

	yellow.Println("Get more help:")
	fmt.Println("  scheduler help --examples       Usage examples")
	fmt.Println("  scheduler help --troubleshoot   Troubleshooting")
	fmt.Println("  scheduler [command] --help      Command-specific help")
	fmt.Println()

	return nil
}

func showExamples() error {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	fmt.Println()
	cyan.Println("scheduler usage examples")
	cyan.Println("========================")
	fmt.Println()

	yellow.Println("Starting:")
	fmt.Println("  scheduler start")
	fmt.Println("  scheduler start --config production.yaml")
	fmt.Println("  scheduler start --log-level debug --pretty-log")
	fmt.Println()

	yellow.Println("Inspecting queues:")
	fmt.Println("  curl http://localhost:8004/queues")
	fmt.Println("  curl http://localhost:8004/queues/boefje-org1")
	fmt.Println("  curl http://localhost:8004/queues/boefje-org1/pop")
	fmt.Println(`  curl -X POST http://localhost:8004/queues/normalizer-org1/push \`)
	fmt.Println(`    -d '{"priority":50,"item":{...}}'`)
	fmt.Println()

	return nil
}

func showTroubleshooting() error {
	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)

	fmt.Println()
	cyan.Println("scheduler troubleshooting")
	cyan.Println("=========================")
	fmt.Println()

	red.Println("Common issues:")
	fmt.Println()

	yellow.Println("Process won't start:")
	fmt.Println("  - Check config values: scheduler start --config config.yaml --log-level debug")
	fmt.Println("  - Verify the admin port is free: lsof -i :8004")
	fmt.Println()

	yellow.Println("No tasks appear on a queue:")
	fmt.Println("  - Check the startup log for catalogue/octopoes/bytes reachability warnings")
	fmt.Println("  - Confirm the organisation's plugins are enabled in the catalogue")
	fmt.Println("  - Confirm scan levels and grace period aren't filtering everything out")
	fmt.Println()

	green.Println("Diagnostics:")
	fmt.Printf("  OS: %s, Arch: %s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println("  curl http://localhost:8004/health")
	fmt.Println("  curl http://localhost:8004/metrics")
	fmt.Println()

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)

	fmt.Println()
	cyan.Println("scheduler version information")
	fmt.Println()
	green.Printf("Version:    %s\n", version)
	green.Printf("Go Version: %s\n", runtime.Version())
	green.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println()
	return nil
}
