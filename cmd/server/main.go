package main

import "github.com/altamira-asset/indexes-server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
