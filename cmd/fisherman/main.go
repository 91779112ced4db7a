package main

import "github.com/haatos/fisherman/cmd/fisherman/cmd"

func main() {
	cmd.Execute()
}
