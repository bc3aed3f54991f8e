package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "briefbot"}

	root.AddCommand(serveCMD(), migrateCMD(), triggerCMD(), inspectCMD(), tokenCMD())
	_ = root.Execute()
}
