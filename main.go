package main

import "github.com/mselser95/exchange-settlement/cmd"

func main() {
	cmd.Execute()
}
