package main

import "bim-reconciler/cmd"

func main() {
	cmd.Execute()
}
