package main

import "github.com/nfrund/sigrelay/cmd/sigrelay/cmd"

func main() {
	cmd.Execute()
}
