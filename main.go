package main

import "curvebond/cmd"

func main() {
	cmd.Execute()
}
