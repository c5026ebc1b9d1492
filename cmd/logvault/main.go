package main

import "logvault/internal/cmd"

func main() {
	cmd.Execute()
}
