package main

import "github.com/awesomeDataTool/genie/cmd/genie-agent/cmd"

func main() {
	cmd.Execute()
}
