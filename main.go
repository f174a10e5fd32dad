package main

import "github.com/vantage-solutions/ms-go-accounts/cmd"

func main() {
	cmd.Execute()
}
