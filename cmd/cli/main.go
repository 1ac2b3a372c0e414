package main

import (
	"fmt"
	"os"

	"github.com/himanishpuri/SonicMatch/pkg/logger"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Printf("\n❌ %v\n", err)
		logger.GetLogger().Errorf("Command failed: %v", err)
		os.Exit(1)
	}
}
