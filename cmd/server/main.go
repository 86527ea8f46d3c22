package main

import "github.com/wryteon/wryteon/cmd/server/cmd"

func main() {
	cmd.Execute()
}
