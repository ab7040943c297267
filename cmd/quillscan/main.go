package main

import "github.com/quillscan/quillscan/cmd/quillscan/cmd"

func main() {
	cmd.Execute()
}
