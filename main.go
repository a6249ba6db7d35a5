package main

import "github.com/ValentinKolb/dsock/cmd"

func main() {
	cmd.Execute()
}
