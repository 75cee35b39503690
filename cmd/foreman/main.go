package main

import "github.com/marcus/foreman/cmd/foreman/commands"

func main() {
	commands.Execute()
}
