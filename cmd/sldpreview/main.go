package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"sldpreview/cmd/sldpreview/commands"
)

func main() {
	if err := commands.NewRoot(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
