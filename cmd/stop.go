/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"curvebond/domain/config"

	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stops the ledger service",
	Long:  `Stops the service started previously by 'start' command, by signaling the process in the pid file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := readPidFile(config.GetPidFile())
		if err != nil {
			return err
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return err
		}
		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("signaling process %d: %w", pid, err)
		}

		fmt.Printf("stop signal sent to %d.\n", pid)
		return nil
	},
}

func readPidFile(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading pid file, is the service running? %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %v", path)
	}
	return pid, nil
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
