package main

import "aireg-cli/cmd"

func main() {
	cmd.Execute()
}
