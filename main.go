package main

import "github.com/sharehunt/shares-sniper/cmd"

func main() {
	cmd.Execute()
}
