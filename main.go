package main

import "github.com/kralovic/faceattend/cmd"

func main() {
	cmd.Execute()
}
