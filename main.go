package main

import "github.com/Yates-Labs/partimento/cmd"

func main() {
	cmd.Execute()
}
