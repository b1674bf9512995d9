package main

import "github.com/example/courtsniper/cmd"

func main() {
	cmd.Execute()
}
