package main

import "github.com/ValentinKolb/keel/cmd"

func main() {
	cmd.Execute()
}
