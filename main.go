package main

import "github.com/fakeyudi/pomosync/cmd"

func main() {
	cmd.Execute()
}
